package stack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stacktools/stackup/internal/core/bugzilla"
	"github.com/stacktools/stackup/internal/core/conduit"
	"github.com/stacktools/stackup/internal/core/git"
	"github.com/stacktools/stackup/pkg/usererr"
)

// fakeGit is an in-memory commit DAG. Commit hashes are content-addressed
// like the real thing, so recreating an identical commit yields the same
// hash.
type fakeGit struct {
	commits map[string]git.CommitTreeOptions
	refs    map[string]string
	updates []refUpdate
}

type refUpdate struct {
	ref, newHash, oldHash, reason string
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		commits: map[string]git.CommitTreeOptions{},
		refs:    map[string]string{},
	}
}

const (
	testAuthor = "Pat Doe"
	testEmail  = "pat@example.com"
	testDate   = "1700000000 +0000"
)

// commit stores a commit with default identity fields and returns its hash.
func (g *fakeGit) commit(tree, parent, message string) string {
	hash, _ := g.CommitTree(context.Background(), git.CommitTreeOptions{
		Tree:           tree,
		Parent:         parent,
		Message:        message,
		AuthorName:     testAuthor,
		AuthorEmail:    testEmail,
		AuthorDate:     testDate,
		CommitterName:  testAuthor,
		CommitterEmail: testEmail,
		CommitterDate:  testDate,
	})
	return hash
}

// merge stores a two-parent commit, which CommitTree cannot express.
func (g *fakeGit) merge(tree, parent1, parent2, message string) string {
	opts := git.CommitTreeOptions{Tree: tree, Parent: parent1 + " " + parent2, Message: message}
	hash := contentHash(opts)
	g.commits[hash] = opts
	return hash
}

func contentHash(opts git.CommitTreeOptions) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		opts.Tree, opts.Parent, opts.Message,
		opts.AuthorName, opts.AuthorEmail, opts.AuthorDate,
		opts.CommitterName, opts.CommitterEmail, opts.CommitterDate,
	}, "\x00")))
	return hex.EncodeToString(sum[:])
}

func (g *fakeGit) ResolveCommit(_ context.Context, rev string) (string, error) {
	if hash, ok := g.refs[rev]; ok {
		return hash, nil
	}
	if _, ok := g.commits[rev]; ok {
		return rev, nil
	}
	return "", errors.New("unknown revision")
}

func (g *fakeGit) ShowRef(_ context.Context, name string, headsOnly bool) ([]git.Ref, error) {
	var out []git.Ref
	for ref, hash := range g.refs {
		if ref == "HEAD" {
			continue
		}
		if headsOnly && !strings.HasPrefix(ref, "refs/heads/") {
			continue
		}
		if ref == name || strings.HasSuffix(ref, "/"+name) {
			out = append(out, git.Ref{Hash: hash, Name: ref})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (g *fakeGit) LogFields(_ context.Context, hash string) (git.Fields, error) {
	opts, ok := g.commits[hash]
	if !ok {
		return git.Fields{}, fmt.Errorf("no such commit %s", hash)
	}

	subject, rest, _ := strings.Cut(opts.Message, "\n")
	body := strings.TrimPrefix(rest, "\n")

	f := git.Fields{
		Abbrev:         hash[:7],
		Hash:           hash,
		Tree:           opts.Tree,
		AuthorName:     opts.AuthorName,
		AuthorEmail:    opts.AuthorEmail,
		AuthorDate:     opts.AuthorDate,
		CommitterName:  opts.CommitterName,
		CommitterEmail: opts.CommitterEmail,
		CommitterDate:  opts.CommitterDate,
		Subject:        subject,
		Body:           body,
		Raw:            opts.Message,
	}
	if opts.Parent != "" {
		f.Parents = strings.Fields(opts.Parent)
	}
	return f, nil
}

func (g *fakeGit) Diff(_ context.Context, hash string) (string, error) {
	if _, ok := g.commits[hash]; !ok {
		return "", fmt.Errorf("no such commit %s", hash)
	}
	return "diff --git " + hash, nil
}

func (g *fakeGit) CommitTree(_ context.Context, opts git.CommitTreeOptions) (string, error) {
	hash := contentHash(opts)
	g.commits[hash] = opts
	return hash, nil
}

func (g *fakeGit) UpdateRef(_ context.Context, ref, newHash, oldHash, reason string) error {
	if g.refs[ref] != oldHash {
		return fmt.Errorf("ref %s moved: expected %s, have %s", ref, oldHash, g.refs[ref])
	}
	g.refs[ref] = newHash
	g.updates = append(g.updates, refUpdate{ref: ref, newHash: newHash, oldHash: oldHash, reason: reason})
	return nil
}

// fakeReviews is an in-memory review service.
type fakeReviews struct {
	repo         *conduit.Repository
	revisions    map[int]*conduit.Revision
	users        map[string]*conduit.User
	nextRevision int

	diffs []string
	edits []editCall
}

type editCall struct {
	objectID int
	txns     []conduit.Transaction
}

func newFakeReviews() *fakeReviews {
	return &fakeReviews{
		repo:         &conduit.Repository{ID: 1, PHID: "PHID-REPO-stk", Callsign: "STK", Name: "stackup"},
		revisions:    map[int]*conduit.Revision{},
		users:        map[string]*conduit.User{},
		nextRevision: 100,
	}
}

func (f *fakeReviews) addUser(handle, phid string) {
	f.users[strings.ToLower(handle)] = &conduit.User{PHID: phid, Username: handle}
}

func (f *fakeReviews) RepositorySearch(_ context.Context, callsign string) (*conduit.Repository, error) {
	if callsign != f.repo.Callsign {
		return nil, usererr.Errorf("no repository %q found", callsign)
	}
	return f.repo, nil
}

func (f *fakeReviews) RevisionSearch(_ context.Context, id int) (*conduit.Revision, error) {
	rev, ok := f.revisions[id]
	if !ok {
		return nil, usererr.Errorf("no revision D%d found", id)
	}
	return rev, nil
}

func (f *fakeReviews) UserSearch(_ context.Context, username string) (*conduit.User, error) {
	u, ok := f.users[strings.ToLower(username)]
	if !ok {
		return nil, usererr.Errorf("no user %q found", username)
	}
	return u, nil
}

func (f *fakeReviews) CreateRawDiff(_ context.Context, diff, _ string) (*conduit.RawDiff, error) {
	f.diffs = append(f.diffs, diff)
	id := len(f.diffs)
	return &conduit.RawDiff{ID: id, PHID: fmt.Sprintf("PHID-DIFF-%d", id)}, nil
}

func (f *fakeReviews) EditRevision(_ context.Context, objectID int, txns []conduit.Transaction) (int, error) {
	f.edits = append(f.edits, editCall{objectID: objectID, txns: append([]conduit.Transaction(nil), txns...)})
	if objectID > 0 {
		return objectID, nil
	}
	f.nextRevision++
	return f.nextRevision, nil
}

func (f *fakeReviews) RevisionURI(id int) string {
	return fmt.Sprintf("https://phab.test/D%d", id)
}

// fakeBugs is an in-memory bug tracker.
type fakeBugs struct {
	bugs map[int]*bugzilla.Info
}

func newFakeBugs(ids ...int) *fakeBugs {
	f := &fakeBugs{bugs: map[int]*bugzilla.Info{}}
	for _, id := range ids {
		f.bugs[id] = &bugzilla.Info{ID: id, Status: "NEW", Summary: fmt.Sprintf("bug %d", id)}
	}
	return f
}

func (f *fakeBugs) Bug(_ context.Context, id int) (*bugzilla.Info, error) {
	info, ok := f.bugs[id]
	if !ok {
		return nil, usererr.Errorf("no bug %d found", id)
	}
	return info, nil
}

// world bundles the fakes behind a fresh registry.
type world struct {
	git     *fakeGit
	reviews *fakeReviews
	bugs    *fakeBugs
	reg     *Registry
}

func newWorld() *world {
	w := &world{
		git:     newFakeGit(),
		reviews: newFakeReviews(),
		bugs:    newFakeBugs(7, 99),
	}
	w.reg = NewRegistry(w.git, w.reviews, w.bugs)
	return w
}

// txnTypes extracts the transaction type sequence.
func txnTypes(txns []conduit.Transaction) []string {
	out := make([]string, len(txns))
	for i, txn := range txns {
		out[i] = txn.Type
	}
	return out
}

// txnValue returns the value of the first transaction of the given type.
func txnValue(txns []conduit.Transaction, txnType string) any {
	for _, txn := range txns {
		if txn.Type == txnType {
			return txn.Value
		}
	}
	return nil
}
