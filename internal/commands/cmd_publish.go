package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/stacktools/stackup/internal/core/bugzilla"
	"github.com/stacktools/stackup/internal/core/conduit"
	"github.com/stacktools/stackup/internal/core/stack"
	"github.com/stacktools/stackup/internal/core/styles"
	"github.com/stacktools/stackup/pkg/usererr"
)

type PublishCmd struct {
	flags  *Flags
	branch string
	yes    bool
	dryRun bool
}

// NewPublishCmd creates a new publish command
func NewPublishCmd(flags *Flags) *PublishCmd {
	return &PublishCmd{flags: flags}
}

// Register adds the publish command to the application
func (cmd *PublishCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "publish",
		Usage:     "Publish a chain of commits as linked review revisions",
		UsageText: "stackup publish [options] [commit | start..end]",
		Description: `Publishes each commit in the range as a review revision, linking every
revision to its predecessor so reviewers see the dependency chain. Local
history is then rewritten so each commit message records the revision it
produced, and the branch is moved onto the rewritten chain.

With no range argument the branch tip alone is published. A single commit
publishes that commit; start..end publishes everything after start up to
and including end. Commits above the range are rebased onto the result.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "branch",
				Aliases:     []string{"b"},
				Usage:       "branch to publish and move",
				Value:       "HEAD",
				Destination: &cmd.branch,
			},
			&cli.BoolFlag{
				Name:        "yes",
				Aliases:     []string{"y"},
				Usage:       "skip the confirmation prompt",
				Destination: &cmd.yes,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Aliases:     []string{"n"},
				Usage:       "show the plan without publishing",
				Destination: &cmd.dryRun,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *PublishCmd) run(ctx context.Context, c *cli.Command) error {
	if err := cmd.flags.Ready(); err != nil {
		return err
	}
	cfg := cmd.flags.Config

	token, err := cmd.flags.Tokens.Token(cfg.ConduitURL)
	if err != nil {
		return err
	}

	reviews := conduit.New(cfg.ConduitURL, token)
	reg := stack.NewRegistry(cmd.flags.Git, reviews, bugzilla.New(cfg.BugzillaURL))
	pub := stack.NewPublisher(reg)

	plan, err := pub.Prepare(ctx, stack.Options{
		Branch:     cmd.branch,
		Range:      c.Args().First(),
		Repository: cfg.Repository,
	})
	if err != nil {
		return err
	}

	cmd.renderPlan(os.Stderr, plan)

	if cmd.dryRun {
		return nil
	}

	if !cmd.yes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return usererr.New("standard input is not a terminal; pass --yes to publish")
		}

		var confirmed bool
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Publish %d commit(s) to %s?", len(plan.Chain.Push), plan.Repo.Name)).
			Value(&confirmed).
			Run()
		if err != nil {
			return err
		}
		if !confirmed {
			return usererr.New("publish cancelled")
		}
	}

	if err := pub.Execute(ctx, plan); err != nil {
		return err
	}

	for _, action := range plan.Actions {
		if action.Kind == stack.ActionReparent {
			continue
		}
		rev := action.Commit.Revision()
		fmt.Fprintf(c.Root().Writer, "%s %s\n", reviews.RevisionURI(rev.ID), action.Commit.Subject)
	}

	return nil
}

func (cmd *PublishCmd) renderPlan(w io.Writer, plan *stack.Plan) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.TextPrimaryBoldStyle.Render("Publish plan"))
	_, _ = fmt.Fprintln(w, styles.TextMutedStyle.Render(
		fmt.Sprintf("%s (%s) via %s", plan.Repo.Name, plan.Repo.Callsign, cmd.flags.Config.ConduitURL)))
	_, _ = fmt.Fprintln(w)

	for _, action := range plan.Actions {
		var icon, detail string
		switch action.Kind {
		case stack.ActionCreate:
			icon = styles.TextSuccessStyle.Render(styles.IconCreate)
			detail = styles.TextSuccessStyle.Render("new revision")
		case stack.ActionUpdate:
			icon = styles.TextWarningStyle.Render(styles.IconUpdate)
			detail = styles.TextWarningStyle.Render("D" + strconv.Itoa(action.RevisionID))
			if action.Changes == 0 {
				detail += styles.TextMutedStyle.Render(" (diff only)")
			}
		case stack.ActionReparent:
			icon = styles.TextMutedStyle.Render(styles.IconRelink)
			detail = styles.TextMutedStyle.Render("rebase only")
		}

		_, _ = fmt.Fprintf(w, "  %s %s %s  %s\n",
			icon,
			styles.TextMutedStyle.Render(action.Commit.Abbrev),
			action.Commit.Subject,
			detail,
		)
	}

	_, _ = fmt.Fprintln(w)
}
