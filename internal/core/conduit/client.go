// Package conduit implements the client for the remote review service API.
//
// Every call is an HTTP POST of form-encoded parameters carrying the API
// token; responses arrive in an envelope whose non-null error code is
// surfaced as a user error. Search calls that must identify exactly one
// object treat zero and multiple results as the same lookup failure.
package conduit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stacktools/stackup/internal/core/logging"
	"github.com/stacktools/stackup/pkg/usererr"
)

// Transaction is one named field-change operation submitted as part of a
// batched edit.
type Transaction struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Repository is the remote repository a review unit targets.
type Repository struct {
	ID       int    `json:"id"`
	PHID     string `json:"phid"`
	Callsign string
	Name     string
}

// Reviewer is one reviewer attached to a revision.
type Reviewer struct {
	ReviewerPHID string `json:"reviewerPHID"`
	Status       string `json:"status"`
}

// Revision is the remote snapshot of one review unit.
type Revision struct {
	ID             int
	PHID           string
	Title          string
	Summary        string
	BugID          string // numeric id as text; empty when unset
	RepositoryPHID string
	ReviewerPHIDs  []string
}

// User is a remote account profile.
type User struct {
	ID       int
	PHID     string
	Username string
	RealName string
}

// RawDiff is the result of submitting unified diff text.
type RawDiff struct {
	ID   int    `json:"id"`
	PHID string `json:"phid"`
	URI  string `json:"uri"`
}

// Client talks to one review service host.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a client for the given base URL (no trailing slash required)
// using the supplied API token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    http.DefaultClient,
		log:     logging.Component("conduit"),
	}
}

// envelope is the standard response wrapper.
type envelope struct {
	Result    json.RawMessage `json:"result"`
	ErrorCode *string         `json:"error_code"`
	ErrorInfo string          `json:"error_info"`
}

func (c *Client) call(ctx context.Context, method string, params map[string]any, result any) error {
	if params == nil {
		params = map[string]any{}
	}
	params["__conduit__"] = map[string]string{"token": c.token}

	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	form := url.Values{
		"params":      {string(encoded)},
		"output":      {"json"},
		"__conduit__": {"true"},
	}

	c.log.Debug().Str("method", method).Msg("api call")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", method, resp.Status)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: malformed response: %w", method, err)
	}
	if env.ErrorCode != nil && *env.ErrorCode != "" {
		return usererr.Errorf("%s: %s (%s)", method, env.ErrorInfo, *env.ErrorCode)
	}

	if result != nil {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("%s: malformed result: %w", method, err)
		}
	}
	return nil
}

// searchData is the shared shape of *.search results.
type searchData struct {
	Data []json.RawMessage `json:"data"`
}

// searchOne runs a search method and requires exactly one result.
func (c *Client) searchOne(ctx context.Context, method string, params map[string]any, what string, target any) error {
	var data searchData
	if err := c.call(ctx, method, params, &data); err != nil {
		return err
	}
	switch len(data.Data) {
	case 0:
		return usererr.Errorf("no %s found", what)
	case 1:
		return json.Unmarshal(data.Data[0], target)
	default:
		return usererr.Errorf("ambiguous %s: %d matches", what, len(data.Data))
	}
}

// RepositorySearch looks up the repository with the given callsign.
func (c *Client) RepositorySearch(ctx context.Context, callsign string) (*Repository, error) {
	var raw struct {
		ID     int    `json:"id"`
		PHID   string `json:"phid"`
		Fields struct {
			Callsign string `json:"callsign"`
			Name     string `json:"name"`
		} `json:"fields"`
	}
	err := c.searchOne(ctx, "diffusion.repository.search", map[string]any{
		"constraints": map[string]any{"callsigns": []string{callsign}},
	}, fmt.Sprintf("repository %q", callsign), &raw)
	if err != nil {
		return nil, err
	}
	return &Repository{ID: raw.ID, PHID: raw.PHID, Callsign: raw.Fields.Callsign, Name: raw.Fields.Name}, nil
}

// RevisionSearch fetches the full field snapshot of revision id, including
// its reviewer list.
func (c *Client) RevisionSearch(ctx context.Context, id int) (*Revision, error) {
	var raw struct {
		ID     int    `json:"id"`
		PHID   string `json:"phid"`
		Fields struct {
			Title          string `json:"title"`
			Summary        string `json:"summary"`
			RepositoryPHID string `json:"repositoryPHID"`
			BugID          string `json:"bugzilla.bug-id"`
		} `json:"fields"`
		Attachments struct {
			Reviewers struct {
				Reviewers []Reviewer `json:"reviewers"`
			} `json:"reviewers"`
		} `json:"attachments"`
	}
	err := c.searchOne(ctx, "differential.revision.search", map[string]any{
		"constraints": map[string]any{"ids": []int{id}},
		"attachments": map[string]any{"reviewers": true},
	}, fmt.Sprintf("revision D%d", id), &raw)
	if err != nil {
		return nil, err
	}

	rev := &Revision{
		ID:             raw.ID,
		PHID:           raw.PHID,
		Title:          raw.Fields.Title,
		Summary:        raw.Fields.Summary,
		BugID:          raw.Fields.BugID,
		RepositoryPHID: raw.Fields.RepositoryPHID,
	}
	for _, r := range raw.Attachments.Reviewers.Reviewers {
		rev.ReviewerPHIDs = append(rev.ReviewerPHIDs, r.ReviewerPHID)
	}
	return rev, nil
}

// UserSearch looks up the account with the given username.
func (c *Client) UserSearch(ctx context.Context, username string) (*User, error) {
	var raw struct {
		ID     int    `json:"id"`
		PHID   string `json:"phid"`
		Fields struct {
			Username string `json:"username"`
			RealName string `json:"realName"`
		} `json:"fields"`
	}
	err := c.searchOne(ctx, "user.search", map[string]any{
		"constraints": map[string]any{"usernames": []string{username}},
	}, fmt.Sprintf("user %q", username), &raw)
	if err != nil {
		return nil, err
	}
	return &User{ID: raw.ID, PHID: raw.PHID, Username: raw.Fields.Username, RealName: raw.Fields.RealName}, nil
}

// CreateRawDiff submits unified diff text against the given repository and
// returns the stored diff.
func (c *Client) CreateRawDiff(ctx context.Context, diff, repositoryPHID string) (*RawDiff, error) {
	var out RawDiff
	err := c.call(ctx, "differential.createrawdiff", map[string]any{
		"diff":           diff,
		"repositoryPHID": repositoryPHID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// EditRevision applies an ordered transaction list to an existing revision
// (objectID > 0) or creates a new one (objectID == 0), returning the
// revision's numeric id.
func (c *Client) EditRevision(ctx context.Context, objectID int, txns []Transaction) (int, error) {
	params := map[string]any{"transactions": txns}
	if objectID > 0 {
		params["objectIdentifier"] = fmt.Sprintf("D%d", objectID)
	}

	var out struct {
		Object struct {
			ID   int    `json:"id"`
			PHID string `json:"phid"`
		} `json:"object"`
	}
	if err := c.call(ctx, "differential.revision.edit", params, &out); err != nil {
		return 0, err
	}
	return out.Object.ID, nil
}

// RevisionURI returns the browsable URI of revision id on this host.
func (c *Client) RevisionURI(id int) string {
	return fmt.Sprintf("%s/D%d", c.baseURL, id)
}
