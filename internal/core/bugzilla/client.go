// Package bugzilla implements the read-only client for the bug tracker.
package bugzilla

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stacktools/stackup/internal/core/logging"
	"github.com/stacktools/stackup/pkg/usererr"
)

// Info is the tracked state of one bug.
type Info struct {
	ID      int    `json:"id"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// Client fetches bug metadata. The tracker requires no token for reads.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a client for the given tracker base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		log:     logging.Component("bugzilla"),
	}
}

// Bug fetches status and summary for the bug with the given numeric id.
func (c *Client) Bug(ctx context.Context, id int) (*Info, error) {
	url := fmt.Sprintf("%s/rest/bug/%d", c.baseURL, id)
	c.log.Debug().Int("bug", id).Msg("fetch bug")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bug %d: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch bug %d: read response: %w", id, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, usererr.Errorf("bug %d: %s", id, resp.Status)
	}

	var out struct {
		Bugs []Info `json:"bugs"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("fetch bug %d: malformed response: %w", id, err)
	}
	if len(out.Bugs) == 0 {
		return nil, usererr.Errorf("no bug %d found", id)
	}
	return &out.Bugs[0], nil
}
