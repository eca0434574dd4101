// Package eventlog persists the events published by the timeline decoder so
// runs can be audited after the fact. Three backends share the Store
// interface: a plain JSONL file, a size-rotated JSONL file and SQLite.
package eventlog
