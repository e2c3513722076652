// Package storage provides the local key-value storage interface and
// in-memory implementation. Every key carries a causal context (a version
// vector) and the set of siblings written concurrently under it; each sibling
// is identified by the dot that created it. Conflicts are detected and kept,
// never resolved.
package storage
