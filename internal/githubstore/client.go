// Package githubstore reads and writes version-tokened text blobs through
// the GitHub contents API. Every write carries the blob SHA observed by an
// earlier read; GitHub rejects writes against a stale SHA, which surfaces
// here as ErrVersionConflict.
package githubstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Version is the opaque content-state token of a stored blob (the git blob
// SHA). Callers thread it between Read and Write and never inspect it.
type Version string

// Handle is the result of reading a blob: its full content plus the version
// token required to write it back.
type Handle struct {
	Content string
	Version Version
}

var (
	// ErrNotFound means the requested blob or repository does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrVersionConflict means the supplied version token is stale: the blob
	// changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
)

// TransportError wraps network and unexpected-status failures so callers can
// tell them apart from the typed outcomes above.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Config struct {
	Token string
	Owner string
	// Repo is the default repository for Read/Write.
	Repo    string
	BaseURL string // overridable for tests; defaults to api.github.com
	Log     *logrus.Logger
}

type Client struct {
	http    *http.Client
	baseURL string
	token   string
	owner   string
	repo    string
	log     *logrus.Logger
}

func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   cfg.Token,
		owner:   cfg.Owner,
		repo:    cfg.Repo,
		log:     log,
	}
}

type contentsResponse struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

type putContentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
}

type putContentsResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// Read fetches a blob from the default repository.
func (c *Client) Read(ctx context.Context, path string) (Handle, error) {
	return c.ReadIn(ctx, c.repo, path)
}

// ReadIn fetches a blob from a named repository. The repo may be given as
// "name" (default owner) or "owner/name".
func (c *Client) ReadIn(ctx context.Context, repo, path string) (Handle, error) {
	op := fmt.Sprintf("read %s/%s", repo, path)
	resp, err := c.do(ctx, http.MethodGet, c.contentsURL(repo, path), nil)
	if err != nil {
		return Handle{}, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Handle{}, ErrNotFound
	default:
		return Handle{}, &TransportError{Op: op, Status: resp.StatusCode}
	}

	var body contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Handle{}, &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	content, err := decodeContent(body.Content)
	if err != nil {
		return Handle{}, &TransportError{Op: op, Err: err}
	}
	return Handle{Content: content, Version: Version(body.SHA)}, nil
}

// Write replaces a blob in the default repository.
func (c *Client) Write(ctx context.Context, path, content, message string, expected Version) (Version, error) {
	return c.WriteIn(ctx, c.repo, path, content, message, expected)
}

// WriteIn replaces a blob's full content. An empty expected version means
// "create": GitHub refuses the write if the path already exists. A non-empty
// one must match the blob's current SHA or the write fails with
// ErrVersionConflict.
func (c *Client) WriteIn(ctx context.Context, repo, path, content, message string, expected Version) (Version, error) {
	op := fmt.Sprintf("write %s/%s", repo, path)
	payload, err := json.Marshal(putContentsRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		SHA:     string(expected),
	})
	if err != nil {
		return "", &TransportError{Op: op, Err: err}
	}

	resp, err := c.do(ctx, http.MethodPut, c.contentsURL(repo, path), bytes.NewReader(payload))
	if err != nil {
		return "", &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict, http.StatusUnprocessableEntity:
		// GitHub signals a stale SHA with 409 or 422 depending on the path's
		// history.
		c.log.WithFields(logrus.Fields{"repo": repo, "path": path}).Warn("write rejected: stale version")
		return "", ErrVersionConflict
	case http.StatusNotFound:
		return "", ErrNotFound
	default:
		return "", &TransportError{Op: op, Status: resp.StatusCode}
	}

	var body putContentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return Version(body.Content.SHA), nil
}

type repoEntry struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

// ListRepos enumerates repositories visible to the token.
func (c *Client) ListRepos(ctx context.Context) ([]string, error) {
	op := "list repos"
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/user/repos?per_page=100&sort=updated", nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: op, Status: resp.StatusCode}
	}

	var entries []repoEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

type searchResponse struct {
	Items []repoEntry `json:"items"`
}

// Search runs a repository search scoped to the configured owner.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	op := fmt.Sprintf("search %q", query)
	q := url.QueryEscape(fmt.Sprintf("%s user:%s", query, c.owner))
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/search/repositories?q="+q, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: op, Status: resp.StatusCode}
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	names := make([]string, 0, len(body.Items))
	for _, item := range body.Items {
		names = append(names, item.FullName)
	}
	return names, nil
}

func (c *Client) contentsURL(repo, path string) string {
	owner := c.owner
	if o, r, ok := strings.Cut(repo, "/"); ok {
		owner, repo = o, r
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, owner, repo, path)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// decodeContent handles the line-wrapped base64 the contents API returns.
func decodeContent(encoded string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, encoded)
	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", fmt.Errorf("decode content: %w", err)
	}
	return string(raw), nil
}
