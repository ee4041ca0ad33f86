package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainGraph     = "fsmnet/graph/v1"
	DomainNode      = "fsmnet/node/v1"
	DomainNamespace = "fsmnet/namespace/v1"
	DomainEvent     = "fsmnet/event/v1"
)

// Fingerprint computes a SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func Fingerprint(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NamespaceHash identifies a namespace definition. It is recorded next to
// every logged transition so a log can be matched to the spec that
// produced it.
func NamespaceHash(regs []Registration) (string, error) {
	arr := make(Array, len(regs))
	for i, r := range regs {
		arr[i] = Object{
			"event":   String(r.EventClass),
			"machine": String(r.Machine),
			"from":    String(r.From),
			"to":      String(r.To),
			"guard":   String(r.Guard),
			"action":  String(r.Action),
		}
	}

	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("NamespaceHash: failed to marshal: %w", err)
	}
	return Fingerprint(DomainNamespace, canonical), nil
}

// EventID computes a content-addressed ID for an event from its class,
// attributes and logical sequence number.
func EventID(namespace, class string, attrs Object, seq int64) (string, error) {
	if attrs == nil {
		attrs = Object{}
	}
	obj := Object{
		"namespace": String(namespace),
		"class":     String(class),
		"attrs":     attrs,
		"seq":       Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return Fingerprint(DomainEvent, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(namespace, class string, attrs Object, seq int64) string {
	id, err := EventID(namespace, class, attrs, seq)
	if err != nil {
		panic(err)
	}
	return id
}
