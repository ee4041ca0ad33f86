// Package guard parses guard expressions: the "if" clauses attached to FSM
// transitions.
//
// A guard compares event attributes and FSM state variables against each
// other or against literals, combined with and, or, ! and parentheses:
//
//	count > 3 and @state == :idle
//	(door.open or !locked) and kind != "test"
//
// Bare names (optionally dotted) reference attributes of the event being
// delivered. Names prefixed with @ reference state variables of the machine
// instance the transition belongs to. Literals are numbers, double-quoted
// strings, :symbols and the keywords true and false.
//
// Parse only checks syntax. Binding names to event classes and machines
// happens in the compiler.
package guard
