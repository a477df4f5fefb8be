package service

import "time"

// Timeout constants for service operations
const (
	// DefaultQueryTimeout bounds short read-only git queries (status, stash list, diff, rev-parse)
	DefaultQueryTimeout = 30 * time.Second
	// DefaultMutationTimeout of zero leaves mutating git commands unbounded
	DefaultMutationTimeout = time.Duration(0)
)
