package stack

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stacktools/stackup/internal/core/logging"
	"github.com/stacktools/stackup/pkg/usererr"
)

// Chain is the resolved publish range: the commits to publish in ancestry
// order, plus the descendants sitting between the range and the target
// reference that only need rebasing onto the rewritten chain.
type Chain struct {
	// Start is the commit just below the range, nil when the range reaches
	// the root.
	Start *Commit
	// Push holds the commits to publish, oldest first.
	Push []*Commit
	// Reparent holds the descendants of the range up to the target
	// reference, oldest first.
	Reparent []*Commit

	// RefName and RefHash identify the target reference and the value it
	// held when resolved, used for the final compare-and-swap move.
	RefName string
	RefHash string
}

// Resolver turns a branch name and a range expression into a Chain.
type Resolver struct {
	reg *Registry
	log zerolog.Logger
}

// NewResolver creates a resolver over the registry.
func NewResolver(reg *Registry) *Resolver {
	return &Resolver{reg: reg, log: logging.Component("resolve")}
}

// Resolve locates the target reference and partitions its history into the
// push-list and reparent-list for rangeExpr. The expression is either a
// single endpoint whose parent becomes the range start, or "start..end"
// publishing the commits strictly after start up to and including end. An
// empty expression is the target reference itself.
func (r *Resolver) Resolve(ctx context.Context, branch, rangeExpr string) (*Chain, error) {
	refName, refHash, err := r.resolveRef(ctx, branch)
	if err != nil {
		return nil, err
	}

	target, err := r.reg.Commit(ctx, refHash)
	if err != nil {
		return nil, err
	}

	start, end, err := r.resolveRange(ctx, rangeExpr, target)
	if err != nil {
		return nil, err
	}
	if start != nil && start.Hash == end.Hash {
		return nil, usererr.New("no commits specified")
	}

	reparent, err := r.walk(ctx, target, end, refName)
	if err != nil {
		return nil, err
	}

	push, err := r.walk(ctx, end, start, end.Abbrev)
	if err != nil {
		return nil, err
	}
	if len(push) == 0 {
		return nil, usererr.New("no commits specified")
	}

	r.log.Debug().
		Str("ref", refName).
		Int("push", len(push)).
		Int("reparent", len(reparent)).
		Msg("resolved chain")

	return &Chain{
		Start:    start,
		Push:     push,
		Reparent: reparent,
		RefName:  refName,
		RefHash:  refHash,
	}, nil
}

// resolveRef maps the branch argument to a reference name and its current
// hash. "HEAD" is taken as-is; names containing '/' are matched against all
// references, bare names against branches only. Exactly one reference must
// match.
func (r *Resolver) resolveRef(ctx context.Context, branch string) (string, string, error) {
	if branch == "HEAD" {
		hash, err := r.reg.git.ResolveCommit(ctx, "HEAD")
		if err != nil {
			return "", "", usererr.New("cannot resolve HEAD; is this a git repository?")
		}
		return "HEAD", hash, nil
	}

	refs, err := r.reg.git.ShowRef(ctx, branch, !strings.Contains(branch, "/"))
	if err != nil {
		return "", "", err
	}
	switch len(refs) {
	case 0:
		return "", "", usererr.Errorf("no such branch %q", branch)
	case 1:
		return refs[0].Name, refs[0].Hash, nil
	default:
		names := make([]string, len(refs))
		for i, ref := range refs {
			names[i] = ref.Name
		}
		return "", "", usererr.Errorf("ambiguous branch %q: matches %s", branch, strings.Join(names, ", "))
	}
}

// resolveRange parses rangeExpr into start and end commits. A bare endpoint
// covers the endpoint and everything below it, so start is the endpoint's
// parent, possibly nil at the root.
func (r *Resolver) resolveRange(ctx context.Context, rangeExpr string, target *Commit) (start, end *Commit, err error) {
	if rangeExpr == "" {
		start, err = target.Parent(ctx)
		if err != nil {
			return nil, nil, err
		}
		return start, target, nil
	}

	if from, to, ok := strings.Cut(rangeExpr, ".."); ok {
		if start, err = r.reg.Commit(ctx, from); err != nil {
			return nil, nil, err
		}
		if end, err = r.reg.Commit(ctx, strings.TrimPrefix(to, ".")); err != nil {
			return nil, nil, err
		}
		return start, end, nil
	}

	if end, err = r.reg.Commit(ctx, rangeExpr); err != nil {
		return nil, nil, err
	}
	if start, err = end.Parent(ctx); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

// walk collects the first-parent ancestry of from, exclusive of until,
// oldest first. A nil until walks to the root. Merge commits cannot be
// represented as a linear chain and are rejected; running out of parents
// before reaching until is an ancestry mismatch named after anchor.
func (r *Resolver) walk(ctx context.Context, from, until *Commit, anchor string) ([]*Commit, error) {
	var out []*Commit
	for cur := from; ; {
		if until != nil && cur.Hash == until.Hash {
			break
		}
		if len(cur.Parents) > 1 {
			return nil, usererr.Errorf("cannot publish merge commit %s", cur.Abbrev)
		}

		out = append(out, cur)

		if len(cur.Parents) == 0 {
			if until != nil {
				return nil, usererr.Errorf("%s is not an ancestor of %s", until.Abbrev, anchor)
			}
			break
		}
		next, err := r.reg.Commit(ctx, cur.Parents[0])
		if err != nil {
			return nil, err
		}
		cur = next
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
