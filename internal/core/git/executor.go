package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/stacktools/stackup/pkg/executil"
)

// logFormat fetches all commit fields in one query. NUL separators cannot
// appear in commit messages, so splitting is unambiguous.
const logFormat = "%h%x00%H%x00%T%x00%P%x00%an%x00%ae%x00%ad%x00%cn%x00%ce%x00%cd%x00%s%x00%b%x00%B"

const numLogFields = 13

// Executor implements Git using the git command-line tool.
type Executor struct {
	gitPath string
	exec    executil.Executor
}

// NewExecutor creates a new git executor with the specified git binary path.
func NewExecutor(gitPath string, exec executil.Executor) *Executor {
	return &Executor{gitPath: gitPath, exec: exec}
}

func (e *Executor) ResolveCommit(ctx context.Context, rev string) (string, error) {
	out, err := e.exec.Run(ctx, e.gitPath, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", rev, err)
	}
	hash := strings.TrimSpace(string(out))
	if hash == "" {
		return "", fmt.Errorf("resolve %s: no commit", rev)
	}
	return hash, nil
}

func (e *Executor) ShowRef(ctx context.Context, name string, headsOnly bool) ([]Ref, error) {
	args := []string{"show-ref"}
	if headsOnly {
		args = append(args, "--heads")
	}
	args = append(args, name)

	out, err := e.exec.Run(ctx, e.gitPath, args...)
	if err != nil {
		// show-ref exits 1 with no output when nothing matches.
		if len(strings.TrimSpace(string(out))) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("show-ref %s: %w", name, err)
	}

	var refs []Ref
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		refs = append(refs, Ref{Hash: fields[0], Name: fields[1]})
	}
	return refs, nil
}

func (e *Executor) LogFields(ctx context.Context, hash string) (Fields, error) {
	out, err := e.exec.Run(ctx, e.gitPath, "log", "-1", "--date=raw", "--format="+logFormat, hash)
	if err != nil {
		return Fields{}, fmt.Errorf("log %s: %w", hash, err)
	}
	return parseLogFields(string(out))
}

func parseLogFields(out string) (Fields, error) {
	parts := strings.Split(out, "\x00")
	if len(parts) != numLogFields {
		return Fields{}, fmt.Errorf("parse log output: got %d fields, want %d", len(parts), numLogFields)
	}

	f := Fields{
		Abbrev:         parts[0],
		Hash:           parts[1],
		Tree:           parts[2],
		AuthorName:     parts[4],
		AuthorEmail:    parts[5],
		AuthorDate:     parts[6],
		CommitterName:  parts[7],
		CommitterEmail: parts[8],
		CommitterDate:  parts[9],
		Subject:        parts[10],
		Body:           strings.TrimRight(parts[11], "\n"),
		Raw:            strings.TrimRight(parts[12], "\n"),
	}
	if parents := strings.Fields(parts[3]); len(parents) > 0 {
		f.Parents = parents
	}
	return f, nil
}

func (e *Executor) Diff(ctx context.Context, hash string) (string, error) {
	out, err := e.exec.Run(ctx, e.gitPath,
		"diff-tree", "--patch", "--no-commit-id", "--root",
		"--no-ext-diff", "--no-textconv", "--submodule=short", "--no-color",
		"-U32767", hash)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", hash, err)
	}
	return string(out), nil
}

func (e *Executor) CommitTree(ctx context.Context, opts CommitTreeOptions) (string, error) {
	args := []string{"commit-tree", opts.Tree}
	if opts.Parent != "" {
		args = append(args, "-p", opts.Parent)
	}
	args = append(args, "-m", opts.Message)

	env := []string{
		"GIT_AUTHOR_NAME=" + opts.AuthorName,
		"GIT_AUTHOR_EMAIL=" + opts.AuthorEmail,
		"GIT_AUTHOR_DATE=" + opts.AuthorDate,
		"GIT_COMMITTER_NAME=" + opts.CommitterName,
		"GIT_COMMITTER_EMAIL=" + opts.CommitterEmail,
		"GIT_COMMITTER_DATE=" + opts.CommitterDate,
	}

	out, err := e.exec.RunEnv(ctx, env, e.gitPath, args...)
	if err != nil {
		return "", fmt.Errorf("commit-tree %s: %w", opts.Tree, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (e *Executor) UpdateRef(ctx context.Context, ref, newHash, oldHash, reason string) error {
	if _, err := e.exec.Run(ctx, e.gitPath, "update-ref", "-m", reason, ref, newHash, oldHash); err != nil {
		return fmt.Errorf("update-ref %s: %w", ref, err)
	}
	return nil
}
