package stack

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/stacktools/stackup/internal/core/conduit"
	"github.com/stacktools/stackup/internal/core/git"
	"github.com/stacktools/stackup/pkg/usererr"
)

var (
	// bugPattern matches the first bug number in a subject, e.g.
	// "Bug 123: fix the thing".
	bugPattern = regexp.MustCompile(`(?i)\bbug\s+(\d+)`)

	// reviewerPattern matches a reviewer annotation such as "r=alice" or
	// "r?alice,bob". Additional handles chain with ',', '?', or '='.
	reviewerPattern = regexp.MustCompile(`(?i)\br[=?]([\w.-]+(?:[,?=][\w.-]+)*)`)

	reviewerSep = regexp.MustCompile(`[,?=]`)

	// revisionPattern matches a full "Differential Revision:" footer line,
	// with or without a URL prefix before the D<number> token.
	revisionPattern = regexp.MustCompile(`(?im)^[ \t]*Differential Revision:[ \t]*(\S*?)D(\d+)[ \t]*$`)
)

// Commit is one local commit plus the review metadata derived from its
// message. Derivations are computed once at construction; the transaction
// queue and revision binding are mutated by the planner and rewriter.
type Commit struct {
	git.Fields

	reg *Registry

	bug       *Bug
	reviewers []string
	revision  *Revision
	summary   string
	txns      []conduit.Transaction
}

func newCommit(reg *Registry, fields git.Fields) *Commit {
	c := &Commit{Fields: fields, reg: reg}

	if m := bugPattern.FindStringSubmatch(fields.Subject); m != nil {
		c.bug = reg.Bug(atoi(m[1]))
	}

	for _, m := range reviewerPattern.FindAllStringSubmatch(fields.Subject, -1) {
		c.reviewers = append(c.reviewers, reviewerSep.Split(m[1], -1)...)
	}

	c.summary = fields.Body
	if m := revisionPattern.FindStringSubmatchIndex(fields.Body); m != nil {
		c.revision = reg.Revision(atoi(fields.Body[m[4]:m[5]]))
		c.summary = strings.TrimSpace(fields.Body[:m[0]] + fields.Body[m[1]:])
	}

	return c
}

// Bug returns the bug referenced by the subject, or nil.
func (c *Commit) Bug() *Bug { return c.bug }

// Reviewers returns the reviewer handles in subject order.
func (c *Commit) Reviewers() []string { return c.reviewers }

// Revision returns the review unit this commit is bound to, or nil when the
// commit has not been published yet.
func (c *Commit) Revision() *Revision { return c.revision }

// bindRevision attaches a freshly created review unit.
func (c *Commit) bindRevision(v *Revision) { c.revision = v }

// Parent returns the single parent commit. Root commits and merge commits
// have no single resolvable parent and yield nil.
func (c *Commit) Parent(ctx context.Context) (*Commit, error) {
	if len(c.Parents) != 1 {
		return nil, nil
	}
	return c.reg.Commit(ctx, c.Parents[0])
}

// Summary returns the cleaned message body with a dependency footer naming
// the parent's review unit. The footer is suppressed when the commit has no
// single parent or when the parent belongs to a different bug, which marks
// the start of an independent series.
//
// When the parent has no review unit yet, allowPending substitutes a
// placeholder that the rewriter resolves once the parent is published;
// otherwise the missing unit is a fatal user error.
func (c *Commit) Summary(ctx context.Context, allowPending bool) (string, error) {
	parent, err := c.Parent(ctx)
	if err != nil {
		return "", err
	}
	return c.summaryWith(ctx, parent, allowPending)
}

// SummaryWith is Summary against an explicit parent, used by the rewriter
// once the real published parent is known. A nil parent yields no footer.
func (c *Commit) SummaryWith(ctx context.Context, parent *Commit) (string, error) {
	return c.summaryWith(ctx, parent, false)
}

func (c *Commit) summaryWith(_ context.Context, parent *Commit, allowPending bool) (string, error) {
	if parent == nil || bugID(parent) != bugID(c) {
		return c.summary, nil
	}

	dep := "<pending>"
	switch {
	case parent.revision != nil:
		dep = strconv.Itoa(parent.revision.ID)
	case !allowPending:
		return "", usererr.Errorf("parent commit %s has no associated revision", parent.Abbrev)
	}

	footer := "Depends on D" + dep
	if c.summary == "" {
		return footer, nil
	}
	return c.summary + "\n\n" + footer, nil
}

// queue appends a pending field-change transaction.
func (c *Commit) queue(txnType string, value any) {
	c.txns = append(c.txns, conduit.Transaction{Type: txnType, Value: value})
}

// replaceTxn swaps the value of an already queued transaction type. It
// reports whether a transaction of that type was queued.
func (c *Commit) replaceTxn(txnType string, value any) bool {
	for i := range c.txns {
		if c.txns[i].Type == txnType {
			c.txns[i].Value = value
			return true
		}
	}
	return false
}

// Transactions returns the queued field changes in queue order.
func (c *Commit) Transactions() []conduit.Transaction { return c.txns }

func bugID(c *Commit) int {
	if c.bug == nil {
		return 0
	}
	return c.bug.ID
}

// atoi converts digits already matched by a \d+ group.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
