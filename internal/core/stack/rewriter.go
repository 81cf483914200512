package stack

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stacktools/stackup/internal/core/conduit"
	"github.com/stacktools/stackup/internal/core/git"
	"github.com/stacktools/stackup/internal/core/logging"
)

// Rewriter publishes each planned commit and rebuilds the local chain on top
// of the results. It threads a running parent through the push-list and then
// the reparent-list, so every rewritten commit is chained to the freshly
// created identity of its predecessor. Trees are never touched; only parent
// linkage and, for newly created units, the message footer change.
type Rewriter struct {
	reg  *Registry
	repo *conduit.Repository
	log  zerolog.Logger
}

// NewRewriter creates a rewriter targeting the given repository.
func NewRewriter(reg *Registry, repo *conduit.Repository) *Rewriter {
	return &Rewriter{reg: reg, repo: repo, log: logging.Component("rewrite")}
}

// Rewrite publishes the push-list in ancestry order, relinks the
// reparent-list, and returns the final commit of the rebuilt chain. Remote
// mutation starts here; a failure partway leaves already published units in
// place and the target reference untouched.
func (w *Rewriter) Rewrite(ctx context.Context, chain *Chain) (*Commit, error) {
	parent := chain.Start

	for _, c := range chain.Push {
		next, err := w.publish(ctx, c, parent)
		if err != nil {
			return nil, err
		}
		parent = next
	}

	for _, c := range chain.Reparent {
		// Reparent commits keep their message, so a commit already sitting
		// on the right parent passes through unchanged.
		if len(c.Parents) == 1 && c.Parents[0] == parent.Hash {
			parent = c
			continue
		}
		next, err := w.rebuild(ctx, c, parent, c.Raw)
		if err != nil {
			return nil, err
		}
		w.log.Debug().Str("commit", c.Abbrev).Str("rewritten", next.Abbrev).Msg("reparented commit")
		parent = next
	}

	return parent, nil
}

// publish submits one commit's diff and transaction batch, then rebuilds the
// commit on the running parent. Newly created units get the revision footer
// appended to the message.
func (w *Rewriter) publish(ctx context.Context, c, parent *Commit) (*Commit, error) {
	// The planner's summary was speculative when the parent's revision did
	// not exist yet; by now the parent is published, so recompute against
	// the real chain.
	summary, err := c.SummaryWith(ctx, parent)
	if err != nil {
		return nil, err
	}
	c.replaceTxn("summary", summary)

	diff, err := w.reg.git.Diff(ctx, c.Hash)
	if err != nil {
		return nil, err
	}
	raw, err := w.reg.reviews.CreateRawDiff(ctx, diff, w.repo.PHID)
	if err != nil {
		return nil, err
	}
	c.queue("update", raw.PHID)

	objectID := 0
	if c.Revision() != nil {
		objectID = c.Revision().ID
	}
	id, err := w.reg.reviews.EditRevision(ctx, objectID, c.Transactions())
	if err != nil {
		return nil, err
	}

	message := c.Raw
	if c.Revision() == nil {
		c.bindRevision(w.reg.Revision(id))
		message += "\n\nDifferential Revision: " + w.reg.reviews.RevisionURI(id)
	}

	next, err := w.rebuild(ctx, c, parent, message)
	if err != nil {
		return nil, err
	}

	w.log.Info().
		Str("commit", c.Abbrev).
		Str("revision", w.reg.reviews.RevisionURI(id)).
		Msg("published commit")
	return next, nil
}

// rebuild creates a commit carrying c's tree and identity metadata, chained
// to parent (nil for a root commit), with the given message.
func (w *Rewriter) rebuild(ctx context.Context, c, parent *Commit, message string) (*Commit, error) {
	opts := git.CommitTreeOptions{
		Tree:           c.Tree,
		Message:        message,
		AuthorName:     c.AuthorName,
		AuthorEmail:    c.AuthorEmail,
		AuthorDate:     c.AuthorDate,
		CommitterName:  c.CommitterName,
		CommitterEmail: c.CommitterEmail,
		CommitterDate:  c.CommitterDate,
	}
	if parent != nil {
		opts.Parent = parent.Hash
	}

	hash, err := w.reg.git.CommitTree(ctx, opts)
	if err != nil {
		return nil, err
	}
	return w.reg.Commit(ctx, hash)
}
