package jobsearch

import (
	"context"
	"errors"
)

// ErrSearchUnavailable signals that a single query could not be served
// (timeout, quota, transport error). The query is skipped, never the session.
var ErrSearchUnavailable = errors.New("job search capability unavailable")

// Provider fetches raw job postings for a query. Implementations must be
// stateless so multiple sessions can share one instance.
type Provider interface {
	Search(ctx context.Context, query, location string) (*Postings, error)
}
