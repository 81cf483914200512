// Package stack turns a contiguous chain of local commits into linked
// review units.
//
// The flow is strictly sequential: the Resolver partitions the commit range
// into a push-list and a reparent-list, the Planner diffs local metadata
// against remote snapshots into per-commit transaction lists, and the
// Rewriter publishes each unit and recreates the chain in ancestry order,
// finishing with a compare-and-swap move of the target reference.
package stack

import (
	"context"

	"github.com/stacktools/stackup/internal/core/bugzilla"
	"github.com/stacktools/stackup/internal/core/conduit"
)

// Reviews is the slice of the review-service API the stack logic consumes.
// *conduit.Client satisfies it.
type Reviews interface {
	RepositorySearch(ctx context.Context, callsign string) (*conduit.Repository, error)
	RevisionSearch(ctx context.Context, id int) (*conduit.Revision, error)
	UserSearch(ctx context.Context, username string) (*conduit.User, error)
	CreateRawDiff(ctx context.Context, diff, repositoryPHID string) (*conduit.RawDiff, error)
	EditRevision(ctx context.Context, objectID int, txns []conduit.Transaction) (int, error)
	RevisionURI(id int) string
}

// Bugs is the bug tracker lookup the stack logic consumes. *bugzilla.Client
// satisfies it.
type Bugs interface {
	Bug(ctx context.Context, id int) (*bugzilla.Info, error)
}
