/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
)

const sessionCookieName = "barkeep_id"

// Claim is what a successful login leaves behind for the websocket to
// pick up. Capacity and consumption are validated here, at the door;
// the websocket path only checks that a claim exists.
type Claim struct {
	Name     string  `json:"name" validate:"required"`
	Capacity float64 `json:"capacity" validate:"gt=0"`
	Consumed float64 `json:"consumed" validate:"gte=0"`
}

// ClaimStore maps session cookie IDs to login claims. Logging out
// deletes the claim, after which the next websocket connect is
// redirected back to the login page.
type ClaimStore struct {
	mu     sync.Mutex
	claims map[string]Claim
}

func newClaimStore() *ClaimStore {
	return &ClaimStore{
		claims: make(map[string]Claim),
	}
}

func (s *ClaimStore) put(sid string, claim Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims[sid] = claim
}

func (s *ClaimStore) get(sid string) (Claim, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[sid]
	return claim, ok
}

func (s *ClaimStore) delete(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.claims, sid)
}

// claimFor resolves the claim for a request's session cookie, if any.
func (s *ClaimStore) claimFor(r *http.Request) (Claim, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return Claim{}, false
	}

	return s.get(c.Value)
}

func getOrSetSessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// handleLogin stores a claim for this session after validating it.
// Malformed or out-of-range values never make it past this handler, so
// the roster can divide by capacity without a zero guard of its own.
func handleLogin(cfg *Config, store *ClaimStore, validate *validator.Validate) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sid := getOrSetSessionID(w, r)
		if sid == "" {
			http.Error(w, "unable to assign session id", http.StatusInternalServerError)
			return
		}

		var claim Claim
		if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
			http.Error(w, "expected name, capacity (number > 0) and consumed (number >= 0)", http.StatusBadRequest)
			return
		}

		if err := validate.Struct(claim); err != nil {
			http.Error(w, "expected name, capacity (number > 0) and consumed (number >= 0)", http.StatusBadRequest)
			return
		}

		store.put(sid, claim)
		logf(cfg, "LOGIN: %q (capacity %g, consumed %g) from %s", claim.Name, claim.Capacity, claim.Consumed, realIP(r))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"success":true}` + "\n"))
	}
}

// handleLogout tears down the claim. Any websocket still open keeps its
// roster entry until it disconnects; the next connect is rejected.
func handleLogout(cfg *Config, store *ClaimStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
			store.delete(c.Value)
			logf(cfg, "LOGIN: session %s logged out", c.Value)
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"success":true}` + "\n"))
	}
}
