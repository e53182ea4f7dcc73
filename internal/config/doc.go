// Package config loads the factbase run configuration.
//
// The file is CUE, unified with an embedded schema (schema.cue) that
// supplies defaults and rejects unknown fields. FACTBASE_DB overrides
// the database path; the GitHub token is only ever read from the
// environment variable the file names.
package config
