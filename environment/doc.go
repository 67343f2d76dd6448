// Package environment drives one remote gym environment over a single
// connection.
//
// A Session moves through a fixed lifecycle:
//
//	Unconnected -> Connected -> Made -> Ready <-> Stepping -> Closed
//
// Make selects the environment and negotiates both spaces, Reset starts an
// episode and Step advances it. Done is reported, never acted on: callers
// decide when to Reset. Operations called from a state that does not permit
// them fail with an error matching ErrInvalidState, and every operation after
// Close fails with ErrSessionClosed.
//
// Sessions are safe for concurrent use, but the protocol has no pipelining so
// operations on one Session are serialised. Run one Session per worker to
// interact with several environments at once.
package environment
