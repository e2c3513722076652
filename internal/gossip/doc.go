// Package gossip disseminates the node clock over hashicorp/memberlist.
// Clock changes are broadcast to the cluster, full clocks are exchanged on
// push/pull, and each member's metadata carries its gRPC address so the
// membership list doubles as the anti-entropy peer source.
package gossip
