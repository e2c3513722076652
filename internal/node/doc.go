// Package node wires a single dotclock process together: the node clock,
// the sibling store, the gRPC service, gossip membership, the anti-entropy
// loop and the metrics endpoint.
package node
