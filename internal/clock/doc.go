// Package clock provides version vectors and dots for tracking causality
// between replicas. A VersionVector summarizes how many events a replica has
// observed from every other replica; a Dot names one of those events.
// Comparing vectors tells whether one state happened before another or
// whether they are concurrent. The package only detects conflicts; it never
// resolves them, and it does no locking of its own.
package clock
