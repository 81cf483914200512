package conduit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacktools/stackup/pkg/usererr"
)

// newTestClient returns a client pointed at a server that answers each
// method with the configured JSON result, recording decoded params.
func newTestClient(t *testing.T, results map[string]string) (*Client, *[]map[string]any) {
	t.Helper()

	var calls []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		var params map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("params")), &params))
		calls = append(calls, params)

		method := r.URL.Path[len("/api/"):]
		result, ok := results[method]
		if !ok {
			result = "null"
		}
		fmt.Fprintf(w, `{"result":%s,"error_code":null,"error_info":null}`, result)
	}))
	t.Cleanup(srv.Close)

	return New(srv.URL, "api-token-test"), &calls
}

func TestClient_TokenInParams(t *testing.T) {
	c, calls := newTestClient(t, map[string]string{
		"user.search": `{"data":[{"id":1,"phid":"PHID-USER-1","fields":{"username":"alice","realName":"Alice"}}]}`,
	})

	_, err := c.UserSearch(context.Background(), "alice")
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	conduitParam, ok := (*calls)[0]["__conduit__"].(map[string]any)
	require.True(t, ok, "params should carry the auth block")
	assert.Equal(t, "api-token-test", conduitParam["token"])
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null,"error_code":"ERR-CONDUIT-CORE","error_info":"token expired"}`)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "tok")
	_, err := c.UserSearch(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, usererr.Is(err), "envelope errors are user errors")
	assert.Contains(t, err.Error(), "token expired")
	assert.Contains(t, err.Error(), "ERR-CONDUIT-CORE")
}

func TestClient_SearchOneCardinality(t *testing.T) {
	t.Run("zero results", func(t *testing.T) {
		c, _ := newTestClient(t, map[string]string{
			"user.search": `{"data":[]}`,
		})
		_, err := c.UserSearch(context.Background(), "ghost")
		require.Error(t, err)
		assert.True(t, usererr.Is(err))
		assert.Contains(t, err.Error(), `no user "ghost" found`)
	})

	t.Run("multiple results", func(t *testing.T) {
		c, _ := newTestClient(t, map[string]string{
			"diffusion.repository.search": `{"data":[{"id":1},{"id":2}]}`,
		})
		_, err := c.RepositorySearch(context.Background(), "STK")
		require.Error(t, err)
		assert.True(t, usererr.Is(err))
		assert.Contains(t, err.Error(), "ambiguous")
	})
}

func TestClient_RevisionSearch(t *testing.T) {
	c, calls := newTestClient(t, map[string]string{
		"differential.revision.search": `{"data":[{
			"id":42,
			"phid":"PHID-DREV-42",
			"fields":{
				"title":"Fix the thing",
				"summary":"Longer text",
				"repositoryPHID":"PHID-REPO-1",
				"bugzilla.bug-id":"123"
			},
			"attachments":{"reviewers":{"reviewers":[
				{"reviewerPHID":"PHID-USER-1","status":"added"},
				{"reviewerPHID":"PHID-USER-2","status":"accepted"}
			]}}
		}]}`,
	})

	rev, err := c.RevisionSearch(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, 42, rev.ID)
	assert.Equal(t, "Fix the thing", rev.Title)
	assert.Equal(t, "123", rev.BugID)
	assert.Equal(t, "PHID-REPO-1", rev.RepositoryPHID)
	assert.Equal(t, []string{"PHID-USER-1", "PHID-USER-2"}, rev.ReviewerPHIDs)

	require.Len(t, *calls, 1)
	constraints := (*calls)[0]["constraints"].(map[string]any)
	assert.Equal(t, []any{float64(42)}, constraints["ids"])
}

func TestClient_CreateRawDiff(t *testing.T) {
	c, calls := newTestClient(t, map[string]string{
		"differential.createrawdiff": `{"id":7,"phid":"PHID-DIFF-7","uri":"https://phab.example.com/differential/diff/7/"}`,
	})

	d, err := c.CreateRawDiff(context.Background(), "diff --git a/f b/f\n", "PHID-REPO-1")
	require.NoError(t, err)
	assert.Equal(t, 7, d.ID)
	assert.Equal(t, "PHID-DIFF-7", d.PHID)

	require.Len(t, *calls, 1)
	assert.Equal(t, "diff --git a/f b/f\n", (*calls)[0]["diff"])
	assert.Equal(t, "PHID-REPO-1", (*calls)[0]["repositoryPHID"])
}

func TestClient_EditRevision(t *testing.T) {
	t.Run("create omits object identifier", func(t *testing.T) {
		c, calls := newTestClient(t, map[string]string{
			"differential.revision.edit": `{"object":{"id":43,"phid":"PHID-DREV-43"}}`,
		})

		id, err := c.EditRevision(context.Background(), 0, []Transaction{
			{Type: "title", Value: "New revision"},
		})
		require.NoError(t, err)
		assert.Equal(t, 43, id)

		require.Len(t, *calls, 1)
		_, present := (*calls)[0]["objectIdentifier"]
		assert.False(t, present, "create must not name an object")
	})

	t.Run("update names the revision and keeps txn order", func(t *testing.T) {
		c, calls := newTestClient(t, map[string]string{
			"differential.revision.edit": `{"object":{"id":42,"phid":"PHID-DREV-42"}}`,
		})

		_, err := c.EditRevision(context.Background(), 42, []Transaction{
			{Type: "title", Value: "t"},
			{Type: "summary", Value: "s"},
			{Type: "update", Value: "PHID-DIFF-7"},
		})
		require.NoError(t, err)

		require.Len(t, *calls, 1)
		assert.Equal(t, "D42", (*calls)[0]["objectIdentifier"])

		txns := (*calls)[0]["transactions"].([]any)
		require.Len(t, txns, 3)
		assert.Equal(t, "title", txns[0].(map[string]any)["type"])
		assert.Equal(t, "update", txns[2].(map[string]any)["type"])
	})
}

func TestClient_RevisionURI(t *testing.T) {
	c := New("https://phab.example.com/", "tok")
	assert.Equal(t, "https://phab.example.com/D42", c.RevisionURI(42))
}
