package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/indicator-core/internal/auth"
)

const (
	// ticketTTL is how long a WebSocket ticket is valid.
	ticketTTL = 60 * time.Second

	// ticketBytes is the number of random bytes in a WebSocket ticket.
	ticketBytes = 32
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ticketStore holds pending WebSocket tickets. Tickets are single-use and
// carry the identity of the token that requested them.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
	now     func() time.Time
}

type ticketEntry struct {
	expiresAt time.Time
	subject   string
	role      auth.Role
}

func newTicketStore() *ticketStore {
	return &ticketStore{
		tickets: make(map[string]ticketEntry),
		now:     time.Now,
	}
}

// issue stores a new ticket for claims and returns it.
func (ts *ticketStore) issue(claims *auth.Claims) string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	ticket := hex.EncodeToString(b)

	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{
		expiresAt: ts.now().Add(ticketTTL),
		subject:   claims.Subject,
		role:      claims.Role,
	}
	ts.mu.Unlock()

	return ticket
}

// consume returns the ticket's entry and removes it. Expired tickets are
// removed and rejected.
func (ts *ticketStore) consume(ticket string) (ticketEntry, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(ts.tickets, ticket)

	if !ts.now().Before(entry.expiresAt) {
		return ticketEntry{}, false
	}
	return entry, true
}

// cleanExpired removes expired tickets and returns how many were removed.
func (ts *ticketStore) cleanExpired() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	n := 0
	for ticket, entry := range ts.tickets {
		if !now.Before(entry.expiresAt) {
			delete(ts.tickets, ticket)
			n++
		}
	}
	return n
}

// cleanTicketsLoop runs cleanExpired periodically until ctx is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.cleanExpired()
		}
	}
}

// handleLogin checks the operator password and returns an access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Password == "" {
		writeBadRequest(w, "password is required")
		return
	}

	issued, err := s.auth.Login(req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid credentials")
		return
	case errors.Is(err, auth.ErrLoginDisabled):
		writeUnavailable(w, "operator login is not configured")
		return
	default:
		s.logger.Error("operator login failed", "error", err)
		writeInternalError(w, "failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(issued.ExpiresAt).Seconds()),
		ExpiresAt:   issued.ExpiresAt,
	})
}

// handleWSTicket issues a single-use WebSocket ticket so the token itself
// never appears in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "bearer token required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     s.tickets.issue(claims),
		"expires_in": int(ticketTTL.Seconds()),
	})
}
