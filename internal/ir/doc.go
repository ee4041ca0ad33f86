// Package ir provides the shared value and spec types for fsmnet.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps IR the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Value is a sealed union; guards compare Values, never raw Go types
//   - Canonical JSON (sorted keys, NFC strings) backs every fingerprint
//   - Logical sequence numbers order events, never wall-clock time
//   - All JSON tags use snake_case
package ir
