// Package storage persists what operators teach the bot (triggers, edits,
// jokes) and the snapshots components keep across restarts.
//
// Two drivers are available:
//   - "sqlite": modernc.org/sqlite database file (default)
//   - "file": a JSON document rewritten atomically on every change
package storage
