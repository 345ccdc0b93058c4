// Package google stores the reminder snapshot as a JSON file in Google Drive (v3 REST API).
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"remindat/backend"
	"remindat/internal/migrate"
	"remindat/internal/ratelimit"
	"remindat/internal/utils"
)

const (
	// DefaultBaseURL is the Drive metadata API base URL
	DefaultBaseURL = "https://www.googleapis.com"
	// DefaultUploadBaseURL is the Drive media upload base URL
	DefaultUploadBaseURL = "https://www.googleapis.com"
)

// ErrAuthExpired is returned when Drive rejects the access token (HTTP 401).
var ErrAuthExpired error = &utils.AppError{Kind: utils.KindOAuth, Message: "Token expired"}

// Config holds Drive connection settings
type Config struct {
	BaseURL       string       // Override for testing
	UploadBaseURL string       // Override for testing
	HTTPClient    *http.Client // Optional; defaults to a 30s client that retries throttled calls
	Now           func() time.Time
}

// Backend implements backend.CloudStore against Google Drive
type Backend struct {
	client        *http.Client
	baseURL       string
	uploadBaseURL string
	now           func() time.Time
}

// New creates a new Drive backend
func New(cfg Config) *Backend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	uploadBaseURL := cfg.UploadBaseURL
	if uploadBaseURL == "" {
		uploadBaseURL = DefaultUploadBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = createHTTPClient()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Backend{
		client:        client,
		baseURL:       baseURL,
		uploadBaseURL: uploadBaseURL,
		now:           now,
	}
}

// createHTTPClient creates an HTTP client that reports 429/503 as
// ratelimit.RateLimitError without retrying
func createHTTPClient() *http.Client {
	return &http.Client{
		Transport: ratelimit.NewTransport(ratelimit.Config{Backend: "Google Drive"}),
	}
}

// Close releases idle connections
func (b *Backend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// doRequest performs an authenticated Drive request and maps transport
// failures and 401 responses. The caller closes the body.
func (b *Backend) doRequest(ctx context.Context, token, method, rawURL, contentType string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, utils.DriveError("failed to build request", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		var throttled *ratelimit.RateLimitError
		if errors.As(err, &throttled) {
			return nil, utils.DriveError(method+" "+req.URL.Path, throttled)
		}
		return nil, utils.NetworkError(method+" "+req.URL.Path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		return nil, ErrAuthExpired
	}

	return resp, nil
}

// statusError reads a short excerpt of a failed response for the error message
func statusError(action string, resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return utils.DriveError(fmt.Sprintf("failed to %s: status %d", action, resp.StatusCode), errors.New(string(bytes.TrimSpace(excerpt))))
}

// =============================================================================
// Snapshot Operations
// =============================================================================

// FindOrCreate returns the id of reminders.json inside folderID, creating it
// from seed when no such file exists.
func (b *Backend) FindOrCreate(ctx context.Context, token, folderID string, seed *backend.ReminderStore) (string, error) {
	id, err := b.find(ctx, token, folderID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	return b.create(ctx, token, folderID, seed)
}

func (b *Backend) find(ctx context.Context, token, folderID string) (string, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("name='%s' and '%s' in parents and trashed=false",
		quoteQuery(backend.SnapshotFileName), quoteQuery(folderID)))
	query.Set("fields", "files(id)")

	resp, err := b.doRequest(ctx, token, http.MethodGet, b.baseURL+"/drive/v3/files?"+query.Encode(), "", nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("search Drive", resp)
	}

	var result struct {
		Files []struct {
			ID string `json:"id"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", utils.DriveError("failed to decode search response", err)
	}

	if len(result.Files) == 0 {
		return "", nil
	}
	return result.Files[0].ID, nil
}

// quoteQuery escapes a value for a single-quoted Drive query string
func quoteQuery(v string) string {
	return queryEscaper.Replace(v)
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func (b *Backend) create(ctx context.Context, token, folderID string, seed *backend.ReminderStore) (string, error) {
	if seed == nil {
		seed = backend.NewReminderStore()
	}
	content, err := seed.MarshalIndent()
	if err != nil {
		return "", utils.DriveError("failed to encode reminders", err)
	}

	body, contentType, err := multipartBody(folderID, content)
	if err != nil {
		return "", utils.DriveError("failed to build upload", err)
	}

	endpoint := b.uploadBaseURL + "/upload/drive/v3/files?uploadType=multipart&fields=id"
	resp, err := b.doRequest(ctx, token, http.MethodPost, endpoint, contentType, body)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("create "+backend.SnapshotFileName, resp)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", utils.DriveError("failed to decode create response", err)
	}
	if created.ID == "" {
		return "", utils.DriveError("create response carried no file id", nil)
	}

	utils.Debugf("Created %s in Drive folder %s (id %s)", backend.SnapshotFileName, folderID, created.ID)
	return created.ID, nil
}

// multipartBody builds a multipart/related upload: JSON metadata then the file content
func multipartBody(folderID string, content []byte) ([]byte, string, error) {
	metadata, err := json.Marshal(map[string]interface{}{
		"name":     backend.SnapshotFileName,
		"parents":  []string{folderID},
		"mimeType": "application/json",
	})
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary("remindat-" + uuid.New().String()); err != nil {
		return nil, "", err
	}

	for _, part := range [][]byte{metadata, content} {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", "application/json; charset=UTF-8")
		pw, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := pw.Write(part); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), "multipart/related; boundary=" + w.Boundary(), nil
}

// Load downloads the snapshot. Content that is neither the current nor the
// v1 schema yields an empty store.
func (b *Backend) Load(ctx context.Context, token, fileID string) (*backend.ReminderStore, error) {
	endpoint := fmt.Sprintf("%s/drive/v3/files/%s?alt=media", b.baseURL, url.PathEscape(fileID))
	resp, err := b.doRequest(ctx, token, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("download "+backend.SnapshotFileName, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.NetworkError("failed to read Drive response", err)
	}

	store, parseErr := backend.ParseStore(data)
	if parseErr == nil {
		return store, nil
	}
	if migrated, ok := migrate.TryMigrate(data, b.now()); ok {
		utils.Infof("Migrated %d reminders from the v1 format stored in Drive", migrated.Len())
		return migrated, nil
	}

	utils.Warnf("Unrecognized content in Drive file %s, treating as empty: %v", fileID, parseErr)
	return backend.NewReminderStore(), nil
}

// Save overwrites the snapshot content
func (b *Backend) Save(ctx context.Context, token, fileID string, store *backend.ReminderStore) error {
	content, err := store.MarshalIndent()
	if err != nil {
		return utils.DriveError("failed to encode reminders", err)
	}

	endpoint := fmt.Sprintf("%s/upload/drive/v3/files/%s?uploadType=media", b.uploadBaseURL, url.PathEscape(fileID))
	resp, err := b.doRequest(ctx, token, http.MethodPatch, endpoint, "application/json", content)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("upload "+backend.SnapshotFileName, resp)
	}
	return nil
}

// Verify interface compliance at compile time
var _ backend.CloudStore = (*Backend)(nil)
