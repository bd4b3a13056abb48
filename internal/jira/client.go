// Package jira is a minimal REST client for the two operations triage needs
// from the tracker: reading an issue's description and posting a comment.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 30 * time.Second

type Client struct {
	baseURL  string
	username string
	apiToken string
	http     *http.Client
}

func NewClient(baseURL, username, apiToken string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		apiToken: apiToken,
		http:     &http.Client{Timeout: requestTimeout},
	}
}

// Issue is the subset of tracker fields the triage flow reads.
type Issue struct {
	Key         string
	Summary     string
	Description string
	Status      string
	Assignee    string
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
	} `json:"fields"`
}

func (c *Client) Issue(ctx context.Context, key string) (*Issue, error) {
	var resp issueResponse
	url := fmt.Sprintf("%s/rest/api/2/issue/%s?fields=summary,description,status,assignee", c.baseURL, key)
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching issue %s: %w", key, err)
	}

	issue := &Issue{
		Key:         resp.Key,
		Summary:     resp.Fields.Summary,
		Description: resp.Fields.Description,
		Status:      resp.Fields.Status.Name,
	}
	if resp.Fields.Assignee != nil {
		issue.Assignee = resp.Fields.Assignee.DisplayName
	}
	return issue, nil
}

// Description returns the issue description, or the summary when the
// description is empty.
func (c *Client) Description(ctx context.Context, key string) (string, error) {
	issue, err := c.Issue(ctx, key)
	if err != nil {
		return "", err
	}
	if issue.Description != "" {
		return issue.Description, nil
	}
	return issue.Summary, nil
}

// AddComment posts body verbatim as a comment on the issue.
func (c *Client) AddComment(ctx context.Context, key, body string) error {
	url := fmt.Sprintf("%s/rest/api/2/issue/%s/comment", c.baseURL, key)
	payload := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPost, url, payload, nil); err != nil {
		return fmt.Errorf("commenting on %s: %w", key, err)
	}
	return nil
}

// ServerInfo probes connectivity and returns the server title.
func (c *Client) ServerInfo(ctx context.Context) (string, error) {
	var resp struct {
		ServerTitle string `json:"serverTitle"`
	}
	url := c.baseURL + "/rest/api/2/serverInfo"
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return "", err
	}
	return resp.ServerTitle, nil
}

func (c *Client) do(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.apiToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("jira returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
