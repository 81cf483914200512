package doctor

import (
	"context"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/stacktools/stackup/internal/core/config"
	"github.com/stacktools/stackup/pkg/executil"
)

// ConfigCheck verifies the config file loads and carries the required
// fields.
type ConfigCheck struct {
	Path string
}

func (c *ConfigCheck) Name() string { return "Configuration" }

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	cfg, err := config.Load(c.Path)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "config file",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	result.Items = append(result.Items,
		CheckItem{Label: "config file", Status: StatusPass, Detail: c.Path},
		CheckItem{Label: "review host", Status: StatusPass, Detail: cfg.ConduitURL},
		CheckItem{Label: "bug tracker", Status: StatusPass, Detail: cfg.BugzillaURL},
		CheckItem{Label: "repository callsign", Status: StatusPass, Detail: cfg.Repository},
	)
	return result
}

// GitCheck verifies the configured git binary resolves and runs.
type GitCheck struct {
	GitPath string
	Exec    executil.Executor
}

func (c *GitCheck) Name() string { return "Git" }

func (c *GitCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	path, err := exec.LookPath(c.GitPath)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "binary",
			Status: StatusFail,
			Detail: c.GitPath + " not found in PATH",
		})
		return result
	}
	result.Items = append(result.Items, CheckItem{Label: "binary", Status: StatusPass, Detail: path})

	out, err := c.Exec.Run(ctx, c.GitPath, "version")
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "version",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}
	result.Items = append(result.Items, CheckItem{
		Label:  "version",
		Status: StatusPass,
		Detail: strings.TrimSpace(string(out)),
	})
	return result
}

// TokenCheck verifies an API token exists for the review host.
type TokenCheck struct {
	ArcrcPath  string
	ConduitURL string
}

func (c *TokenCheck) Name() string { return "API tokens" }

func (c *TokenCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if _, err := os.Stat(c.ArcrcPath); os.IsNotExist(err) {
		result.Items = append(result.Items, CheckItem{
			Label:  "token file",
			Status: StatusWarn,
			Detail: c.ArcrcPath + " does not exist",
		})
	} else {
		result.Items = append(result.Items, CheckItem{Label: "token file", Status: StatusPass, Detail: c.ArcrcPath})
	}

	store, err := config.LoadTokens(c.ArcrcPath)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "token store",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	if _, err := store.Token(c.ConduitURL); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "review host token",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	host := c.ConduitURL
	if u, err := url.Parse(c.ConduitURL); err == nil && u.Host != "" {
		host = u.Host
	}
	result.Items = append(result.Items, CheckItem{
		Label:  "review host token",
		Status: StatusPass,
		Detail: host,
	})
	return result
}
