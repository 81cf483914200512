package stack

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stacktools/stackup/internal/core/conduit"
	"github.com/stacktools/stackup/internal/core/logging"
)

// Options selects what to publish.
type Options struct {
	// Branch is the target reference to track and move, "HEAD" by default.
	Branch string
	// Range is the commit range expression; empty publishes the branch tip.
	Range string
	// Repository is the target repository callsign.
	Repository string
}

// ActionKind describes what will happen to one chain commit.
type ActionKind int

const (
	// ActionCreate publishes the commit as a new review unit.
	ActionCreate ActionKind = iota
	// ActionUpdate updates the commit's existing review unit.
	ActionUpdate
	// ActionReparent relinks the commit without publishing.
	ActionReparent
)

// Action is one row of the publish preview.
type Action struct {
	Kind   ActionKind
	Commit *Commit
	// RevisionID is set for updates.
	RevisionID int
	// Changes counts the queued field transactions.
	Changes int
}

// Plan is the reviewed-and-confirmed unit of work: the resolved chain, the
// target repository, and the per-commit actions. Prepare builds it with
// reads only; Execute performs all mutation.
type Plan struct {
	Chain   *Chain
	Repo    *conduit.Repository
	Actions []Action
}

// Publisher drives the full publish flow.
type Publisher struct {
	reg *Registry
	log zerolog.Logger
}

// NewPublisher creates a publisher over the registry.
func NewPublisher(reg *Registry) *Publisher {
	return &Publisher{reg: reg, log: logging.Component("publish")}
}

// Prepare resolves the chain, plans every transaction, and returns the plan
// for confirmation. No remote state is modified.
func (p *Publisher) Prepare(ctx context.Context, opts Options) (*Plan, error) {
	repo, err := p.reg.reviews.RepositorySearch(ctx, opts.Repository)
	if err != nil {
		return nil, err
	}

	chain, err := NewResolver(p.reg).Resolve(ctx, opts.Branch, opts.Range)
	if err != nil {
		return nil, err
	}

	if err := NewPlanner(p.reg, repo).Plan(ctx, chain); err != nil {
		return nil, err
	}

	plan := &Plan{Chain: chain, Repo: repo}
	for _, c := range chain.Push {
		action := Action{Kind: ActionCreate, Commit: c, Changes: len(c.Transactions())}
		if c.Revision() != nil {
			action.Kind = ActionUpdate
			action.RevisionID = c.Revision().ID
		}
		plan.Actions = append(plan.Actions, action)
	}
	for _, c := range chain.Reparent {
		plan.Actions = append(plan.Actions, Action{Kind: ActionReparent, Commit: c})
	}
	return plan, nil
}

// Execute publishes the plan and moves the target reference onto the
// rebuilt chain. The reference moves only after every commit succeeded, and
// only if it still points where Prepare observed it.
func (p *Publisher) Execute(ctx context.Context, plan *Plan) error {
	final, err := NewRewriter(p.reg, plan.Repo).Rewrite(ctx, plan.Chain)
	if err != nil {
		return err
	}

	if final.Hash == plan.Chain.RefHash {
		p.log.Info().Str("ref", plan.Chain.RefName).Msg("chain unchanged, reference not moved")
		return nil
	}

	noun := "revisions"
	if len(plan.Chain.Push) == 1 {
		noun = "revision"
	}
	reason := fmt.Sprintf("stackup: publish %d %s", len(plan.Chain.Push), noun)
	if err := p.reg.git.UpdateRef(ctx, plan.Chain.RefName, final.Hash, plan.Chain.RefHash, reason); err != nil {
		return err
	}

	p.log.Info().
		Str("ref", plan.Chain.RefName).
		Str("old", plan.Chain.RefHash).
		Str("new", final.Hash).
		Msg("reference updated")
	return nil
}
