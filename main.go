package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/stacktools/stackup/internal/commands"
	"github.com/stacktools/stackup/internal/core/config"
	"github.com/stacktools/stackup/internal/core/git"
	"github.com/stacktools/stackup/pkg/executil"
	"github.com/stacktools/stackup/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var logCloser func()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "stackup",
		Usage:     "Publish stacked commits as linked review revisions",
		UsageText: "stackup [global options] command [command options]",
		Description: `Stackup takes a contiguous chain of local commits and publishes each one
as a review revision, wiring up the dependency links between them. After
publishing, local history is rewritten so every commit message carries the
revision it produced, and the branch is moved onto the rewritten chain.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("STACKUP_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (logs to stderr when unset)",
				Sources:     cli.EnvVars("STACKUP_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("STACKUP_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			flags.Exec = &executil.RealExecutor{}

			// A broken config is recorded, not fatal, so doctor can still
			// diagnose it. Commands that need the config check Ready().
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				defaults := config.DefaultConfig()
				cfg = &defaults
				flags.ConfigErr = err
			}
			flags.Config = cfg
			flags.Git = git.NewExecutor(cfg.GitPath, flags.Exec)

			tokens, err := config.LoadTokens(cfg.ArcrcPath)
			if err != nil {
				return ctx, err
			}
			flags.Tokens = tokens

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewPublishCmd(flags).Register(app)
	app = commands.NewDoctorCmd(flags).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
