// Package api provides the interface and error types for collection schedule sources.
package api

import (
	"context"

	"github.com/andygrunwald/bin-collection/internal/models"
)

// Fetcher defines the interface for collection schedule sources.
type Fetcher interface {
	// Name returns the source identifier.
	Name() string

	// Fetch returns the decoded upstream response for a premises and the raw body.
	// Failures are reported as *BlockedError, *TransientError, *StatusError or a
	// wrapped decode error.
	Fetch(ctx context.Context, uprn string) (*models.UpstreamResponse, []byte, error)
}
