// Package faults defines the fatal error classes the correlation engine
// raises when a classified line arrives at a state machine that cannot
// handle it. None of these are recovered from: the design in spec.md §7
// prefers loud failure over quiet mis-correlation.
package faults

import "fmt"

// UnexpectedEvent reports a classified rule arriving at a state machine
// while it is in a state that does not admit that rule.
type UnexpectedEvent struct {
	Machine string
	State   string
	Rule    string
	Line    string
}

func (e *UnexpectedEvent) Error() string {
	return fmt.Sprintf("%s: unexpected event %q in state %q, input: %s", e.Machine, e.Rule, e.State, e.Line)
}

// UnhandledState reports a state machine holding a state value its own
// dispatcher doesn't cover. This is always an internal-bug class error,
// never a consequence of bad input.
type UnhandledState struct {
	Machine string
	State   string
}

func (e *UnhandledState) Error() string {
	return fmt.Sprintf("%s: unhandled state %q", e.Machine, e.State)
}

// InvariantViolation reports a second, conflicting write to a
// write-once field (mail_from, newqueueid, the relay triple).
type InvariantViolation struct {
	Field    string
	Previous string
	Attempt  string
	Line     string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s already set to %q, rejecting %q, input: %s", e.Field, e.Previous, e.Attempt, e.Line)
}

// UnknownCommand reports a daemon or message state machine returning a
// command value the outer dispatcher does not recognize.
type UnknownCommand struct {
	Machine string
	Command string
}

func (e *UnknownCommand) Error() string {
	return fmt.Sprintf("%s: unknown command %q", e.Machine, e.Command)
}
