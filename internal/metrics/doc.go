// Package metrics defines the Prometheus metrics exported by a dotclock node
// and the HTTP server that exposes them.
package metrics
