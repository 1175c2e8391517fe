package models

import "github.com/pkg/errors"

var (
	// ErrInvalidAddress means the input matches no chain family's address format.
	ErrInvalidAddress = errors.New("invalid address: expected 0x... (40 hex) or T... (34 chars)")
	// ErrUpstreamUnavailable covers network, timeout and HTTP failures on a required call.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrTokenFetch marks a single token balance query that failed. Always absorbed.
	ErrTokenFetch = errors.New("token balance fetch failed")
	// ErrStateInvariant is a programming error: a transition outside the session's invariants.
	ErrStateInvariant = errors.New("session state invariant violation")
	// ErrStale is returned when a request finished after its session was replaced.
	ErrStale = errors.New("stale request")
	// ErrBadCallback is returned for button data the controller does not understand.
	ErrBadCallback = errors.New("unrecognized callback")
	// ErrNoSession is returned for callbacks that arrive before any address was submitted.
	ErrNoSession = errors.New("no active session")
)
