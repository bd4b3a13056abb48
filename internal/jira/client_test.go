package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/PROJ-42", r.URL.Path)
		user, token, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "secret", token)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"key": "PROJ-42",
			"fields": {
				"summary": "Pods crashlooping",
				"description": "Payment pods restart every 30s",
				"status": {"name": "Open"},
				"assignee": {"displayName": "Alice"}
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "bot@example.com", "secret")
	issue, err := c.Issue(context.Background(), "PROJ-42")
	require.NoError(t, err)

	assert.Equal(t, "PROJ-42", issue.Key)
	assert.Equal(t, "Pods crashlooping", issue.Summary)
	assert.Equal(t, "Payment pods restart every 30s", issue.Description)
	assert.Equal(t, "Open", issue.Status)
	assert.Equal(t, "Alice", issue.Assignee)
}

func TestIssueUnassigned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key": "PROJ-1", "fields": {"summary": "s", "status": {"name": "Open"}, "assignee": null}}`))
	}))
	defer srv.Close()

	issue, err := NewClient(srv.URL, "u", "t").Issue(context.Background(), "PROJ-1")
	require.NoError(t, err)
	assert.Empty(t, issue.Assignee)
}

func TestDescriptionFallsBackToSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key": "PROJ-1", "fields": {"summary": "only a summary", "description": "", "status": {"name": "Open"}}}`))
	}))
	defer srv.Close()

	desc, err := NewClient(srv.URL, "u", "t").Description(context.Background(), "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, "only a summary", desc)
}

func TestAddComment(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/2/issue/PROJ-7/comment", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "u", "t").AddComment(context.Background(), "PROJ-7", "## Similar Incident Analysis")
	require.NoError(t, err)
	assert.Equal(t, "## Similar Incident Analysis", got["body"])
}

func TestErrorStatusIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errorMessages": ["bad credentials"]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "u", "wrong").Issue(context.Background(), "PROJ-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "bad credentials")
}

func TestServerInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/serverInfo", r.URL.Path)
		w.Write([]byte(`{"serverTitle": "Acme Jira"}`))
	}))
	defer srv.Close()

	title, err := NewClient(srv.URL, "u", "t").ServerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Acme Jira", title)
}
