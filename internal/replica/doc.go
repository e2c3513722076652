// Package replica holds the clock of a single node. The clock values
// themselves are immutable; Clock serializes updates and swaps the stored
// vector so readers always see a complete value.
package replica
