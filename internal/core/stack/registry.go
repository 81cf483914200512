package stack

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stacktools/stackup/internal/core/bugzilla"
	"github.com/stacktools/stackup/internal/core/conduit"
	"github.com/stacktools/stackup/internal/core/git"
	"github.com/stacktools/stackup/internal/core/logging"
	"github.com/stacktools/stackup/pkg/usererr"
)

// Registry is the identity cache for everything the publish flow touches.
// Each commit, revision, bug, and user is represented by exactly one object
// per run, so state attached during planning (queued transactions, newly
// created revisions) is visible to every later stage that looks the same
// entity up again.
type Registry struct {
	git     git.Git
	reviews Reviews
	bugs    Bugs
	log     zerolog.Logger

	commits   map[string]*Commit
	revisions map[int]*Revision
	bugCache  map[int]*Bug
	users     map[string]*User
}

// NewRegistry creates an empty registry over the given collaborators.
func NewRegistry(g git.Git, reviews Reviews, bugs Bugs) *Registry {
	return &Registry{
		git:       g,
		reviews:   reviews,
		bugs:      bugs,
		log:       logging.Component("stack"),
		commits:   map[string]*Commit{},
		revisions: map[int]*Revision{},
		bugCache:  map[int]*Bug{},
		users:     map[string]*User{},
	}
}

// Commit returns the commit object for rev, which may be any revision
// expression git understands. The expression is canonicalized to a full hash
// before cache lookup, so "HEAD", a branch name, and the full hash all yield
// the same object.
func (r *Registry) Commit(ctx context.Context, rev string) (*Commit, error) {
	hash, err := r.git.ResolveCommit(ctx, rev)
	if err != nil {
		return nil, usererr.Errorf("unknown revision %q", rev)
	}

	if c, ok := r.commits[hash]; ok {
		return c, nil
	}

	fields, err := r.git.LogFields(ctx, hash)
	if err != nil {
		return nil, err
	}

	c := newCommit(r, fields)
	r.commits[hash] = c
	r.log.Debug().Str("commit", c.Abbrev).Str("subject", c.Subject).Msg("loaded commit")
	return c, nil
}

// Revision returns the lazy handle for revision id. No I/O happens until
// Fetch is called.
func (r *Registry) Revision(id int) *Revision {
	if v, ok := r.revisions[id]; ok {
		return v
	}
	v := &Revision{reg: r, ID: id}
	r.revisions[id] = v
	return v
}

// Bug returns the lazy handle for bug id.
func (r *Registry) Bug(id int) *Bug {
	if b, ok := r.bugCache[id]; ok {
		return b
	}
	b := &Bug{reg: r, ID: id}
	r.bugCache[id] = b
	return b
}

// User returns the lazy handle for a reviewer handle. Handles are
// case-insensitive.
func (r *Registry) User(handle string) *User {
	key := strings.ToLower(handle)
	if u, ok := r.users[key]; ok {
		return u
	}
	u := &User{reg: r, Handle: handle}
	r.users[key] = u
	return u
}

// Revision is a review unit on the remote service. The snapshot is fetched
// at most once per run; edits made later in the same run do not refresh it.
type Revision struct {
	reg *Registry
	ID  int

	fetched  bool
	snapshot *conduit.Revision
}

// Fetch returns the remote snapshot, querying the service on first call.
func (v *Revision) Fetch(ctx context.Context) (*conduit.Revision, error) {
	if v.fetched {
		return v.snapshot, nil
	}
	snap, err := v.reg.reviews.RevisionSearch(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	v.fetched = true
	v.snapshot = snap
	return snap, nil
}

// Bug is a bug tracker issue, fetched at most once per run.
type Bug struct {
	reg *Registry
	ID  int

	fetched bool
	info    *bugzilla.Info
}

// Info returns the tracker record, querying on first call.
func (b *Bug) Info(ctx context.Context) (*bugzilla.Info, error) {
	if b.fetched {
		return b.info, nil
	}
	info, err := b.reg.bugs.Bug(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.fetched = true
	b.info = info
	return info, nil
}

// User is a reviewer account on the remote service, fetched at most once per
// run.
type User struct {
	reg    *Registry
	Handle string

	fetched bool
	profile *conduit.User
}

// PHID returns the service identifier for the user, querying on first call.
func (u *User) PHID(ctx context.Context) (string, error) {
	if u.fetched {
		return u.profile.PHID, nil
	}
	profile, err := u.reg.reviews.UserSearch(ctx, u.Handle)
	if err != nil {
		return "", err
	}
	u.fetched = true
	u.profile = profile
	return profile.PHID, nil
}
