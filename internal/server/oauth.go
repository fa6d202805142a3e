package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/echo/internal/services"
	"github.com/desertthunder/echo/internal/shared"
)

// Exchanger trades an authorization code for tokens. Implemented by [services.Platform].
type Exchanger interface {
	GetTokens(ctx context.Context, code string) (*services.Tokens, error)
}

// OAuthResult is the outcome of one account-linking callback.
type OAuthResult struct {
	Tokens *services.Tokens
	err    error
}

func (o *OAuthResult) Error() error {
	return o.err
}

const linkedPage = `<!DOCTYPE html>
<html>
<head><title>echo</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 20vh;">
    <h1>You're linked.</h1>
    <p>You can close this window and return to the terminal.</p>
</body>
</html>
`

// OAuthHandler receives the platform's redirect after a user grants access.
//
// Only the first callback is honoured; later ones are rejected so a replayed
// redirect cannot overwrite a linked account.
type OAuthHandler struct {
	exchanger Exchanger
	state     string

	claimed atomic.Bool
	once    sync.Once
	results chan OAuthResult
}

// NewOAuthHandler creates a handler that accepts one callback carrying state.
func NewOAuthHandler(exchanger Exchanger, state string) *OAuthHandler {
	return &OAuthHandler{
		exchanger: exchanger,
		state:     state,
		results:   make(chan OAuthResult, 1),
	}
}

func (h *OAuthHandler) Routes() []string {
	return []string{"GET /callback"}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.claimed.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	tokens, status, err := h.exchange(r)
	if err != nil {
		h.Send(OAuthResult{err: err})
		http.Error(w, http.StatusText(status), status)
		return
	}
	h.Send(OAuthResult{Tokens: tokens})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, linkedPage)
}

// exchange checks the callback parameters and redeems the code.
// The returned status is the one to answer the browser with on failure.
func (h *OAuthHandler) exchange(r *http.Request) (*services.Tokens, int, error) {
	q := r.URL.Query()
	if q.Get("state") != h.state {
		return nil, http.StatusBadRequest, fmt.Errorf("%w: state mismatch", shared.ErrAuthFailed)
	}

	code := q.Get("code")
	if code == "" {
		return nil, http.StatusBadRequest,
			fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description"))
	}

	tokens, err := h.exchanger.GetTokens(r.Context(), code)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("token exchange failed: %w", err)
	}
	return tokens, http.StatusOK, nil
}

// Send publishes result. Calls after the first are dropped.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result yields exactly one [OAuthResult] and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}
