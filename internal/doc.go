// Package internal contains shared types and utilities for gitdocs.
//
// It provides configuration parsing, cleanup orchestration, and I/O
// abstractions used across the store and api packages.
package internal
