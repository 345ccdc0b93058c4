// Package testutil provides shared test fakes for the Drive API and the
// Google OAuth token endpoint.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
)

// FakeDrive simulates the subset of Drive v3 and the OAuth token endpoint
// used by remindat. Only requests bearing the current access token succeed.
type FakeDrive struct {
	server *httptest.Server

	mu           sync.Mutex
	files        map[string]*fakeFile
	nextID       int
	accessToken  string
	refreshToken string
	clientID     string
	authCode     string
	rejectAll    bool
	failStatus   int
	throttle     int
	requestLog   []string
	refreshCount int
	issued       int
}

type fakeFile struct {
	name    string
	parents []string
	content []byte
}

var parentsPattern = regexp.MustCompile(`'((?:[^'\\]|\\.)+)' in parents`)
var namePattern = regexp.MustCompile(`name='((?:[^'\\]|\\.)+)'`)
var queryEscape = regexp.MustCompile(`\\(.)`)

// unquoteQuery reverses the backslash escaping of a Drive query string
func unquoteQuery(v string) string {
	return queryEscape.ReplaceAllString(v, "$1")
}

// NewFakeDrive starts a fake server that accepts accessToken and refreshes with refreshToken.
func NewFakeDrive(t *testing.T, accessToken, refreshToken string) *FakeDrive {
	t.Helper()
	f := &FakeDrive{
		files:        make(map[string]*fakeFile),
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the base URL serving both Drive paths and /token.
func (f *FakeDrive) URL() string {
	return f.server.URL
}

// TokenURL returns the token endpoint URL.
func (f *FakeDrive) TokenURL() string {
	return f.server.URL + "/token"
}

// AccessToken returns the currently accepted access token.
func (f *FakeDrive) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accessToken
}

// ExpireToken invalidates the current access token; a refresh issues a new one.
func (f *FakeDrive) ExpireToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessToken = "expired-" + f.accessToken
}

// RejectAll makes every Drive call answer 401, even after a refresh.
func (f *FakeDrive) RejectAll(reject bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectAll = reject
}

// FailWith makes Drive calls answer the given status (0 disables).
func (f *FakeDrive) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
}

// Throttle answers the next n Drive calls with 429 and Retry-After: 0.
func (f *FakeDrive) Throttle(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.throttle = n
}

// ExpectAuthCode configures the code and client id accepted by the code exchange.
func (f *FakeDrive) ExpectAuthCode(code, clientID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCode = code
	f.clientID = clientID
}

// PutFile stores a file in folderID and returns its id.
func (f *FakeDrive) PutFile(folderID, name string, content []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putLocked(folderID, name, content)
}

func (f *FakeDrive) putLocked(folderID, name string, content []byte) string {
	f.nextID++
	id := fmt.Sprintf("file-%d", f.nextID)
	f.files[id] = &fakeFile{name: name, parents: []string{folderID}, content: append([]byte(nil), content...)}
	return id
}

// FileContent returns a copy of a stored file's content.
func (f *FakeDrive) FileContent(id string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return nil
	}
	return append([]byte(nil), file.content...)
}

// FileCount returns how many files exist.
func (f *FakeDrive) FileCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

// RefreshCount returns how many refresh grants were served.
func (f *FakeDrive) RefreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCount
}

// Requests returns "METHOD /path" for every request received.
func (f *FakeDrive) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.requestLog...)
}

// CountRequests returns how many logged requests start with prefix.
func (f *FakeDrive) CountRequests(prefix string) int {
	n := 0
	for _, r := range f.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// =============================================================================
// Handlers
// =============================================================================

func (f *FakeDrive) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestLog = append(f.requestLog, r.Method+" "+r.URL.Path)

	if r.URL.Path == "/token" {
		f.handleToken(w, r)
		return
	}

	if f.rejectAll || r.Header.Get("Authorization") != "Bearer "+f.accessToken {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]interface{}{"code": 401, "message": "Invalid Credentials"},
		})
		return
	}
	if f.throttle > 0 {
		f.throttle--
		w.Header().Set("Retry-After", "0")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rateLimitExceeded"})
		return
	}
	if f.failStatus != 0 {
		writeJSON(w, f.failStatus, map[string]string{"error": "injected failure"})
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/drive/v3/files":
		f.handleList(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/upload/drive/v3/files":
		f.handleCreate(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/drive/v3/files/"):
		f.handleDownload(w, r, strings.TrimPrefix(r.URL.Path, "/drive/v3/files/"))
	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/upload/drive/v3/files/"):
		f.handleUpdate(w, r, strings.TrimPrefix(r.URL.Path, "/upload/drive/v3/files/"))
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeDrive) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	folder := ""
	if m := parentsPattern.FindStringSubmatch(q); m != nil {
		folder = unquoteQuery(m[1])
	}
	name := ""
	if m := namePattern.FindStringSubmatch(q); m != nil {
		name = unquoteQuery(m[1])
	}

	type entry struct {
		ID string `json:"id"`
	}
	files := []entry{}
	for i := 1; i <= f.nextID; i++ {
		id := fmt.Sprintf("file-%d", i)
		file, ok := f.files[id]
		if !ok || file.name != name {
			continue
		}
		for _, p := range file.parents {
			if p == folder {
				files = append(files, entry{ID: id})
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

func (f *FakeDrive) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("uploadType") != "multipart" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected multipart upload"})
		return
	}
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/related" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected multipart/related"})
		return
	}

	reader := multipart.NewReader(r.Body, params["boundary"])
	var parts [][]byte
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		data, _ := io.ReadAll(part)
		parts = append(parts, data)
	}
	if len(parts) != 2 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected metadata and media parts"})
		return
	}

	var meta struct {
		Name    string   `json:"name"`
		Parents []string `json:"parents"`
	}
	if err := json.Unmarshal(parts[0], &meta); err != nil || len(meta.Parents) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad metadata"})
		return
	}

	id := f.putLocked(meta.Parents[0], meta.Name, parts[1])
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (f *FakeDrive) handleDownload(w http.ResponseWriter, r *http.Request, id string) {
	file, ok := f.files[id]
	if !ok || r.URL.Query().Get("alt") != "media" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(file.content)
}

func (f *FakeDrive) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	file, ok := f.files[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	file.content = data
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (f *FakeDrive) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if f.authCode == "" || r.PostForm.Get("code") != f.authCode || r.PostForm.Get("client_id") != f.clientID {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		f.issued++
		f.accessToken = fmt.Sprintf("access-%d", f.issued)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  f.accessToken,
			"refresh_token": f.refreshToken,
			"token_type":    "Bearer",
			"expires_in":    3599,
		})
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != f.refreshToken || f.refreshToken == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		f.refreshCount++
		f.issued++
		f.accessToken = fmt.Sprintf("refreshed-%d", f.issued)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": f.accessToken,
			"token_type":   "Bearer",
			"expires_in":   3599,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// FreePort returns a local TCP port that was free a moment ago.
func FreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}
