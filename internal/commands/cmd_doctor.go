package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/stacktools/stackup/internal/core/config"
	"github.com/stacktools/stackup/internal/core/doctor"
	"github.com/stacktools/stackup/internal/core/styles"
	"github.com/stacktools/stackup/pkg/iojson"
	"github.com/stacktools/stackup/pkg/usererr"
)

type DoctorCmd struct {
	flags  *Flags
	format string
}

// NewDoctorCmd creates a new doctor command
func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

// Register adds the doctor command to the application
func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your stackup setup",
		UsageText:   "stackup doctor [options]",
		Description: "Runs diagnostic checks on configuration, git, and API credentials.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	// The doctor must run against a broken config, so it works from the
	// config path rather than the Before-loaded config.
	cfg := cmd.flags.Config
	if cfg == nil {
		defaults := config.DefaultConfig()
		cfg = &defaults
	}

	checks := []doctor.Check{
		&doctor.ConfigCheck{Path: cmd.flags.ConfigPath},
		&doctor.GitCheck{GitPath: cfg.GitPath, Exec: cmd.flags.Exec},
		&doctor.TokenCheck{ArcrcPath: cfg.ArcrcPath, ConduitURL: cfg.ConduitURL},
	}
	results := doctor.RunAll(ctx, checks)
	_, _, failed := doctor.Summary(results)

	var outErr error
	if cmd.format == "json" {
		outErr = cmd.outputJSON(c, results)
	} else {
		outErr = cmd.outputText(results)
	}
	if outErr != nil {
		return outErr
	}

	if failed > 0 {
		return usererr.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	passed, warned, failed := doctor.Summary(results)

	out := struct {
		Healthy bool            `json:"healthy"`
		Summary summaryJSON     `json:"summary"`
		Checks  []doctor.Result `json:"checks"`
	}{
		Healthy: failed == 0,
		Summary: summaryJSON{Passed: passed, Warned: warned, Failed: failed},
		Checks:  results,
	}

	return iojson.WriteWith(c.Root().Writer, os.Stderr, out)
}

type summaryJSON struct {
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
}

func (cmd *DoctorCmd) outputText(results []doctor.Result) error {
	w := os.Stderr
	divider := styles.DividerStyle.Render(strings.Repeat("─", 40))

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.TextPrimaryBoldStyle.Render("Stackup Doctor"))
	_, _ = fmt.Fprintln(w, divider)
	_, _ = fmt.Fprintln(w)

	for _, result := range results {
		_, _ = fmt.Fprintln(w, styles.TextForegroundBoldStyle.Render(result.Name))

		for _, item := range result.Items {
			var detail string
			if item.Detail != "" {
				detail = " " + styles.TextMutedStyle.Render(item.Detail)
			}

			var icon string
			switch item.Status {
			case doctor.StatusPass:
				icon = styles.TextSuccessStyle.Render(styles.IconPass)
			case doctor.StatusWarn:
				icon = styles.TextWarningStyle.Render(styles.IconWarn)
			case doctor.StatusFail:
				icon = styles.TextErrorStyle.Render(styles.IconFail)
			}

			_, _ = fmt.Fprintf(w, "  %s %s%s\n", icon, item.Label, detail)
		}

		_, _ = fmt.Fprintln(w)
	}

	passed, warned, failed := doctor.Summary(results)
	summary := fmt.Sprintf("%s  %s  %s",
		styles.TextSuccessStyle.Render(fmt.Sprintf("%d passed", passed)),
		styles.TextWarningStyle.Render(fmt.Sprintf("%d warnings", warned)),
		styles.TextErrorStyle.Render(fmt.Sprintf("%d failed", failed)),
	)
	_, _ = fmt.Fprintln(w, divider)
	_, _ = fmt.Fprintln(w, summary)
	_, _ = fmt.Fprintln(w)

	return nil
}
