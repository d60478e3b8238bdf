package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// FileContent is the GitHub Contents API response for a file.
type FileContent struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int    `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	HTMLURL  string `json:"html_url"`
}

// DirEntry is one element of a directory listing.
type DirEntry struct {
	Type    string `json:"type"` // "file" or "dir"
	Name    string `json:"name"`
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Size    int    `json:"size"`
	HTMLURL string `json:"html_url"`
}

// FileUpdate is the body of a create-or-update request.
// An empty SHA means "create": GitHub rejects it if the file already exists.
type FileUpdate struct {
	Message string
	Content []byte
	SHA     string
	Branch  string
}

// FileCommit is what a successful PUT returns.
type FileCommit struct {
	Content struct {
		Path    string `json:"path"`
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
	} `json:"content"`
	Commit struct {
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
	} `json:"commit"`
}

func (c *Client) contentsURL(owner, repo, path, ref string) string {
	u := c.url("repos", owner, repo, "contents", escapePath(path))
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}
	return u
}

// GetFileContent fetches a file's content via the Contents API.
// Returns (content, blobSHA, error). blobSHA is needed for PUT updates.
// For files > 1 MB it falls back to the Git Blobs API.
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path, ref string) (data []byte, sha string, err error) {
	ctx, span := startSpan(ctx, "get_contents", owner, repo, path)
	defer func() { endSpan(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentsURL(owner, repo, path, ref), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, "", err
	}

	var fc FileContent
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, "", fmt.Errorf("decoding contents response for %s: %w", path, err)
	}
	if fc.Type != "" && fc.Type != "file" {
		return nil, "", fmt.Errorf("%s is a %s, not a file", path, fc.Type)
	}

	if fc.Encoding == "none" && fc.Size > 1*1024*1024 {
		// File too large for the Contents API: use the Blobs API for raw bytes.
		data, err := c.getRawBlob(ctx, owner, repo, fc.SHA)
		return data, fc.SHA, err
	}

	data, err = DecodeContent(fc.Content)
	if err != nil {
		return nil, "", fmt.Errorf("decoding contents of %s: %w", path, err)
	}
	return data, fc.SHA, nil
}

// PutFileContent creates or updates a file. When u.SHA is set the write only
// succeeds if it is still the file's current blob sha; otherwise ErrConflict.
func (c *Client) PutFileContent(ctx context.Context, owner, repo, path string, u FileUpdate) (fcm *FileCommit, err error) {
	ctx, span := startSpan(ctx, "put_contents", owner, repo, path)
	defer func() { endSpan(span, err) }()

	body := map[string]interface{}{
		"message": u.Message,
		"content": base64.StdEncoding.EncodeToString(u.Content),
	}
	if u.SHA != "" {
		body["sha"] = u.SHA
	}
	if u.Branch != "" {
		body["branch"] = u.Branch
	}

	var out FileCommit
	if err := c.doJSON(ctx, http.MethodPut, c.contentsURL(owner, repo, path, ""), body, &out); err != nil {
		return nil, fmt.Errorf("put %s: %w", path, err)
	}
	return &out, nil
}

// ListDirectory returns the entries of a directory. A missing directory
// yields ErrNotFound.
func (c *Client) ListDirectory(ctx context.Context, owner, repo, path, ref string) (entries []DirEntry, err error) {
	ctx, span := startSpan(ctx, "list_contents", owner, repo, path)
	defer func() { endSpan(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentsURL(owner, repo, path, ref), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		// The path names a file, not a directory.
		var fc FileContent
		if json.Unmarshal(raw, &fc) == nil && fc.Type == "file" {
			return nil, fmt.Errorf("%s is a file, not a directory", path)
		}
		return nil, fmt.Errorf("decoding directory listing for %s: %w", path, err)
	}
	return entries, nil
}

// DecodeContent decodes the base64 payload of a Contents API response.
// GitHub wraps lines at 60 chars with newlines, which are stripped first.
func DecodeContent(encoded string) ([]byte, error) {
	cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(encoded)
	return base64.StdEncoding.DecodeString(cleaned)
}

// getRawBlob downloads a blob by its SHA using the raw accept header.
// This bypasses the 1 MB base64 limit of the Contents API.
func (c *Client) getRawBlob(ctx context.Context, owner, repo, sha string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("repos", owner, repo, "git", "blobs", sha), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.raw")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
