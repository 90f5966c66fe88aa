// Package storage persists the run log: one entry per firing decision
// (what played, which shutdown permissions applied, how the dispatch went).
// Two drivers: a dependency-free jsonl file backend and SQLite.
package storage
