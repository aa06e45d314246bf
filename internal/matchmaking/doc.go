// Package matchmaking holds the pairing rules shared by every lobby backend:
// the presence registry, the single waiting slot and the liveness sweep.
//
// Nothing here is safe for concurrent use. Callers serialize access to a
// Registry and WaitingSlot pair behind one lock (or one transaction, or one
// server-side script) so that a join's read-check-write of the slot is a
// single atomic step. Time is always passed in, never read from the clock.
package matchmaking
