// Package repair reconciles the clocks reported by several replicas. It
// computes the maximal set of non-dominated clocks, identifies the replicas
// that are behind, and pushes the merged clock back to them.
package repair
