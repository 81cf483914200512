package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		path := writeFile(t, "config.yaml", `
conduit_url: https://phab.example.com
bugzilla_url: https://bugzilla.example.com
repository: STK
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "https://phab.example.com", cfg.ConduitURL)
		assert.Equal(t, "STK", cfg.Repository)
		assert.Equal(t, "git", cfg.GitPath, "git path defaults")
		assert.NotEmpty(t, cfg.ArcrcPath, "arcrc path defaults")
	})

	t.Run("missing file fails validation for required fields", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "conduit_url is required")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "conduit_url: [unterminated")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config file")
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		ConduitURL:  "https://phab.example.com",
		BugzillaURL: "https://bugzilla.example.com",
		Repository:  "STK",
		GitPath:     "git",
	}

	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("bad scheme", func(t *testing.T) {
		c := valid
		c.ConduitURL = "ftp://phab.example.com"
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "http or https")
	})

	t.Run("missing repository", func(t *testing.T) {
		c := valid
		c.Repository = ""
		assert.Error(t, c.Validate())
	})

	t.Run("missing bugzilla url", func(t *testing.T) {
		c := valid
		c.BugzillaURL = ""
		assert.Error(t, c.Validate())
	})
}

func TestTokenStore(t *testing.T) {
	t.Run("exact host match", func(t *testing.T) {
		path := writeFile(t, "arcrc", `{
  "hosts": {
    "https://phab.example.com/api/": {"token": "cli-abc"},
    "https://other.example.com/api/": {"token": "cli-other"}
  }
}`)

		store, err := LoadTokens(path)
		require.NoError(t, err)

		tok, err := store.Token("https://phab.example.com")
		require.NoError(t, err)
		assert.Equal(t, "cli-abc", tok)
	})

	t.Run("glob host match", func(t *testing.T) {
		path := writeFile(t, "arcrc", `{
  "hosts": {
    "https://phab.*.example.com/api/": {"token": "cli-glob"}
  }
}`)

		store, err := LoadTokens(path)
		require.NoError(t, err)

		tok, err := store.Token("https://phab.eu.example.com")
		require.NoError(t, err)
		assert.Equal(t, "cli-glob", tok)
	})

	t.Run("exact match wins over glob", func(t *testing.T) {
		path := writeFile(t, "arcrc", `{
  "hosts": {
    "https://*.example.com/api/": {"token": "cli-glob"},
    "https://phab.example.com/api/": {"token": "cli-exact"}
  }
}`)

		store, err := LoadTokens(path)
		require.NoError(t, err)

		tok, err := store.Token("https://phab.example.com")
		require.NoError(t, err)
		assert.Equal(t, "cli-exact", tok)
	})

	t.Run("missing token is a user error naming the host", func(t *testing.T) {
		store, err := LoadTokens(filepath.Join(t.TempDir(), "arcrc"))
		require.NoError(t, err, "missing file is an empty store")

		_, err = store.Token("https://phab.example.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no API token for phab.example.com")
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeFile(t, "arcrc", "{not json")
		_, err := LoadTokens(path)
		require.Error(t, err)
	})
}
