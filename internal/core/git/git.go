// Package git provides an abstraction for git operations.
package git

import "context"

// Ref is one entry from a reference listing.
type Ref struct {
	Hash string
	Name string
}

// Fields holds the raw metadata of a single commit as reported by git.
type Fields struct {
	Abbrev         string   // abbreviated hash
	Hash           string   // full hash
	Tree           string   // tree hash
	Parents        []string // parent hashes, in order
	AuthorName     string
	AuthorEmail    string
	AuthorDate     string // raw format, e.g. "1700000000 +0100"
	CommitterName  string
	CommitterEmail string
	CommitterDate  string
	Subject        string
	Body           string
	Raw            string // full unmodified message
}

// CommitTreeOptions describes a commit object to create.
type CommitTreeOptions struct {
	Tree    string
	Parent  string // empty for a root commit
	Message string

	AuthorName     string
	AuthorEmail    string
	AuthorDate     string
	CommitterName  string
	CommitterEmail string
	CommitterDate  string
}

// Git defines the git operations needed by stackup.
type Git interface {
	// ResolveCommit resolves any commit identifier (short hash, symbolic
	// ref, "HEAD") to its full hash.
	ResolveCommit(ctx context.Context, rev string) (string, error)
	// ShowRef lists references matching name, optionally restricted to
	// branch refs. A missing reference yields an empty list, not an error.
	ShowRef(ctx context.Context, name string, headsOnly bool) ([]Ref, error)
	// LogFields fetches the metadata of a single commit in one query.
	LogFields(ctx context.Context, hash string) (Fields, error)
	// Diff returns the unified diff of a commit against its parent with
	// full context.
	Diff(ctx context.Context, hash string) (string, error)
	// CommitTree creates a commit object and returns its hash.
	CommitTree(ctx context.Context, opts CommitTreeOptions) (string, error)
	// UpdateRef moves ref from oldHash to newHash, failing if the ref no
	// longer points at oldHash. The reason is recorded in the reflog.
	UpdateRef(ctx context.Context, ref, newHash, oldHash, reason string) error
}
