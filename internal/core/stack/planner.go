package stack

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/stacktools/stackup/internal/core/conduit"
	"github.com/stacktools/stackup/internal/core/logging"
	"github.com/stacktools/stackup/pkg/usererr"
)

// Planner diffs each push-list commit's local metadata against the remote
// snapshot of its bound revision and queues the minimal transaction list on
// the commit. Planning performs only reads; nothing is sent until the
// rewriter runs.
type Planner struct {
	reg  *Registry
	repo *conduit.Repository
	log  zerolog.Logger
}

// NewPlanner creates a planner targeting the given repository.
func NewPlanner(reg *Registry, repo *conduit.Repository) *Planner {
	return &Planner{reg: reg, repo: repo, log: logging.Component("plan")}
}

// Plan queues transactions for every push-list commit in ancestry order.
// Commits bound to a revision in a different repository, and commits with no
// bug number, are fatal errors before any mutation happens.
func (p *Planner) Plan(ctx context.Context, chain *Chain) error {
	inPush := make(map[string]bool, len(chain.Push))
	for _, c := range chain.Push {
		inPush[c.Hash] = true
	}

	for _, c := range chain.Push {
		if err := p.planCommit(ctx, c, inPush); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) planCommit(ctx context.Context, c *Commit, inPush map[string]bool) error {
	if c.Bug() == nil {
		return usererr.Errorf("commit %s has no bug number", c.Abbrev)
	}

	var remote conduit.Revision
	if c.Revision() == nil {
		c.queue("repositoryPHID", p.repo.PHID)
	} else {
		snap, err := c.Revision().Fetch(ctx)
		if err != nil {
			return err
		}
		if snap.RepositoryPHID != p.repo.PHID {
			return usererr.Errorf("revision D%d is not in repository %s", c.Revision().ID, p.repo.Callsign)
		}
		remote = *snap
	}

	if c.Subject != remote.Title {
		c.queue("title", c.Subject)
	}

	// The dependency footer may reference a parent that is only published
	// later in this same run; a placeholder is allowed whenever the parent
	// is part of the push-list.
	allowPending := len(c.Parents) == 1 && inPush[c.Parents[0]]
	summary, err := c.Summary(ctx, allowPending)
	if err != nil {
		return err
	}
	if summary != remote.Summary {
		c.queue("summary", summary)
	}

	info, err := c.Bug().Info(ctx)
	if err != nil {
		return err
	}
	bug := strconv.Itoa(info.ID)
	if bug != remote.BugID {
		c.queue("bugzilla.bug-id", bug)
	}

	if err := p.planReviewers(ctx, c, remote.ReviewerPHIDs); err != nil {
		return err
	}

	p.log.Debug().
		Str("commit", c.Abbrev).
		Int("transactions", len(c.Transactions())).
		Bool("create", c.Revision() == nil).
		Msg("planned commit")
	return nil
}

// planReviewers queues a single reviewers.add transaction with the PHIDs of
// annotated reviewers not already attached to the remote revision.
func (p *Planner) planReviewers(ctx context.Context, c *Commit, remote []string) error {
	attached := make(map[string]bool, len(remote))
	for _, phid := range remote {
		attached[phid] = true
	}

	var add []string
	for _, handle := range c.Reviewers() {
		phid, err := p.reg.User(handle).PHID(ctx)
		if err != nil {
			return err
		}
		if !attached[phid] {
			attached[phid] = true
			add = append(add, phid)
		}
	}

	if len(add) > 0 {
		c.queue("reviewers.add", add)
	}
	return nil
}
