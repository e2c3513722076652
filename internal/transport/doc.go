// Package transport exposes a node's clock and sibling store over gRPC as the
// dotclock.Clock service, and provides the matching client. Messages travel
// with the dotclock codec, so no generated code is involved.
package transport
