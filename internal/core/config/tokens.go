package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/stacktools/stackup/pkg/usererr"
)

// TokenStore holds API tokens keyed by host URL, read from an arcrc-style
// JSON file:
//
//	{"hosts": {"https://phab.example.com/api/": {"token": "cli-..."}}}
//
// Host keys may use glob patterns in the host portion, e.g.
// "https://phab.*.example.com/api/".
type TokenStore struct {
	path  string
	hosts map[string]hostEntry
}

type hostEntry struct {
	Token string `json:"token"`
}

// LoadTokens reads the token store at path. A missing file yields an empty
// store; the missing token is reported at lookup time instead.
func LoadTokens(path string) (*TokenStore, error) {
	store := &TokenStore{path: path, hosts: map[string]hostEntry{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token store: %w", err)
	}

	var raw struct {
		Hosts map[string]hostEntry `json:"hosts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if raw.Hosts != nil {
		store.hosts = raw.Hosts
	}
	return store, nil
}

// Token returns the API token whose host entry matches the network location
// of serviceURL. Exact host matches win over glob matches.
func (s *TokenStore) Token(serviceURL string) (string, error) {
	target, err := url.Parse(serviceURL)
	if err != nil {
		return "", fmt.Errorf("parse service URL: %w", err)
	}

	var globToken string
	for key, entry := range s.hosts {
		ku, err := url.Parse(strings.TrimSpace(key))
		if err != nil || ku.Host == "" {
			continue
		}
		if ku.Host == target.Host {
			return entry.Token, nil
		}
		if ok, _ := doublestar.Match(ku.Host, target.Host); ok {
			globToken = entry.Token
		}
	}
	if globToken != "" {
		return globToken, nil
	}

	return "", usererr.Errorf("no API token for %s; add an entry to %s", target.Host, s.path)
}
