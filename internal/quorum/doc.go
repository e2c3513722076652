// Package quorum provides fan-out coordination for calls made to several
// peers at once. It handles parallel dispatch, per-peer timeouts, and
// quorum validation.
package quorum
