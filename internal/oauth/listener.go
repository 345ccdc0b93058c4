package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"remindat/internal/utils"
)

const successPage = `<html><body><h1>Success!</h1><p>You can close this window and return to the app.</p><script>window.close();</script></body></html>`

// listen binds the callback port, retrying while a previous socket lingers
func listen(ctx context.Context, port, retries int, backoff time.Duration) (net.Listener, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		lastErr = err
		if attempt == retries {
			break
		}

		utils.Warnf("Port %d busy, retrying in %s (attempt %d)", port, backoff, attempt+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, utils.OAuthError(fmt.Sprintf("failed to start callback server after %d attempts", retries), lastErr)
}

// waitForCode serves ln until a GET / carrying code (and the expected state,
// when one is given) arrives, or ctx is done. Other requests get 404 and the
// wait continues.
func waitForCode(ctx context.Context, ln net.Listener, expectedState string) (string, error) {
	codeCh := make(chan string, 1)
	var once sync.Once

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.Debugf("Callback request: %s %s", r.Method, r.URL.Path)

		query := r.URL.Query()
		code := query.Get("code")
		if r.Method != http.MethodGet || r.URL.Path != "/" || code == "" {
			http.NotFound(w, r)
			return
		}
		if expectedState != "" && query.Get("state") != expectedState {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Connection", "close")
		_, _ = w.Write([]byte(successPage))
		once.Do(func() { codeCh <- code })
	})

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	select {
	case code := <-codeCh:
		shutdown()
		return code, nil
	case <-ctx.Done():
		shutdown()
		return "", ctx.Err()
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = errors.New("callback server closed")
		}
		return "", utils.OAuthError("callback server stopped", err)
	}
}
