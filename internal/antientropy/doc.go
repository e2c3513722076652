// Package antientropy runs the periodic clock exchange between a node and
// its peers. Each round pulls the peers' clocks, merges them into the local
// clock, pushes the merged clock back to peers that are behind, and pulls the
// state of every key the peers store.
package antientropy
