// Package booking holds the rules that govern rent requests: how a
// booked window is derived from a duration, when two windows collide,
// which fields each party may change and how a request moves through
// its lifecycle.  Everything here is pure; persistence and locking live
// in the repository and service packages.
package booking
