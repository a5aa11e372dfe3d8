// internal/httpserver/server.go
//
// HTTP wiring for the word-guess backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth): POST /game/new, POST /game/guess,
//     GET /game/{id}, GET /games/mine.
//   - Auth + stats endpoints: /auth/*, /stats/me (see auth.go).
//   - Anonymous session cookie for guest correlation.
//
// The handlers here are a thin shell: they resolve the caller identity once
// (user from JWT, or guest from the anon cookie), then delegate every game
// decision to the session state machine and translate its sentinel errors
// into HTTP statuses. No handler ever sees the solution.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yusuftomilola/dewordle/internal/session"
	"github.com/yusuftomilola/dewordle/internal/words"
)

// Server bundles router, session machine, and the DB handle used for users.
type Server struct {
	r       *chi.Mux
	machine *session.Machine
	store   session.Store
	db      *sql.DB
	daily   words.DailySource
}

// sessionLister is implemented by stores that support bulk listing
// (the sqlite store). Listings are redacted views.
type sessionLister interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]session.View, error)
}

// New constructs a Server, installs middleware, and registers routes.
// db may be nil when running without user accounts (guest-only, in-memory).
func New(st session.Store, db *sql.DB) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		machine: session.NewMachine(st),
		store:   st,
		db:      db,
		daily:   words.DailySource{Salt: getEnv("DAILY_SALT", "local_dev_salt")},
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(corsFromEnv)                     // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"dewordle","endpoints":["/health","POST /game/new","POST /game/guess","GET /game/{id}","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Game endpoints — OPTIONAL AUTH (guests can play)
	s.r.With(s.withOptionalAuth()).Post("/game/new", s.handleNewGame)
	s.r.With(s.withOptionalAuth()).Post("/game/guess", s.handleGuess)
	s.r.With(s.withOptionalAuth()).Get("/game/{id}", s.handleGetGame)
	s.r.With(s.requireAuth()).Get("/games/mine", s.handleMyGames)

	// Auth + stats (require DB)
	if db != nil {
		s.mountAuthRoutes()
	}

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	// Debug: word list counts
	s.r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
		a, g := words.Stats()
		_ = json.NewEncoder(w).Encode(map[string]int{"answers": a, "allowed": g})
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:5173.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ GAME ---------------------------------------

// newGameReq/Res payloads for POST /game/new.
type newGameReq struct {
	Mode   string `json:"mode"`   // "random" (default) | "daily"
	Answer string `json:"answer"` // optional fixed answer (testing)
}
type newGameRes struct {
	GameID      string        `json:"gameId"`
	MaxAttempts int           `json:"maxAttempts"`
	Phase       session.Phase `json:"phase"`
}

// resolveCaller builds the caller identity exactly once per request:
// the authenticated user when present, otherwise the guest cookie token.
func (s *Server) resolveCaller(w http.ResponseWriter, r *http.Request) session.Caller {
	if me, _ := r.Context().Value(ctxUserKey{}).(*authUser); me != nil {
		return session.User(me.ID)
	}
	return session.Guest(s.ensureAnonID(w, r))
}

// handleNewGame creates a session owned by the caller.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	var src words.Source = words.RandomSource{}
	switch {
	case req.Answer != "":
		src = words.Static(req.Answer)
	case req.Mode == "daily":
		src = s.daily
	}

	caller := s.resolveCaller(w, r)
	v, err := s.machine.NewSession(r.Context(), caller, src)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRequest) {
			http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("create session")
		http.Error(w, `{"error":"create_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(newGameRes{GameID: v.ID, MaxAttempts: v.MaxAttempts, Phase: v.Phase})
}

// guessReq is the payload for POST /game/guess. The response is the
// machine's session.Result verbatim: marks, attempt number, phase.
type guessReq struct {
	GameID string `json:"gameId"`
	Guess  string `json:"guess"`
}

// handleGuess submits one guess for the caller's session.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if !words.IsAllowed(req.Guess) {
		http.Error(w, `{"error":"not_in_word_list"}`, http.StatusBadRequest)
		return
	}

	caller := s.resolveCaller(w, r)
	res, err := s.machine.SubmitGuess(r.Context(), req.GameID, req.Guess, caller)
	if err != nil {
		writeMachineError(w, err)
		return
	}

	// Best-effort stats on terminal transitions for signed-in players.
	if res.Phase.Terminal() && s.db != nil {
		if me, _ := r.Context().Value(ctxUserKey{}).(*authUser); me != nil {
			if err := s.bumpStats(me.ID, res.Phase == session.PhaseWon); err != nil {
				log.Warn().Err(err).Str("user", me.ID).Msg("bump stats")
			}
		}
	}
	_ = json.NewEncoder(w).Encode(res)
}

// handleGetGame returns the redacted view of one session.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	caller := s.resolveCaller(w, r)
	v, err := s.machine.SessionView(r.Context(), chi.URLParam(r, "id"), caller)
	if err != nil {
		writeMachineError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// handleMyGames lists the signed-in caller's sessions, newest first.
func (s *Server) handleMyGames(w http.ResponseWriter, r *http.Request) {
	me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	if me == nil {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}
	lister, ok := s.store.(sessionLister)
	if !ok {
		http.Error(w, `{"error":"listing_unavailable"}`, http.StatusNotImplemented)
		return
	}
	views, err := lister.ListForUser(r.Context(), me.ID, 50)
	if err != nil {
		log.Error().Err(err).Msg("list sessions")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(views)
}

// writeMachineError maps the state machine's sentinel errors to HTTP.
func writeMachineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidRequest):
		http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
	case errors.Is(err, session.ErrNotFound):
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
	case errors.Is(err, session.ErrInvalidState):
		http.Error(w, `{"error":"game_finished"}`, http.StatusBadRequest)
	case errors.Is(err, session.ErrConflict):
		http.Error(w, `{"error":"conflict_retry"}`, http.StatusConflict)
	default:
		log.Error().Err(err).Msg("submit guess")
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}
}

// --------------------------- guest correlation ------------------------------

const anonCookieName = "dewordle_anon"

// ensureAnonID returns an existing anon cookie or sets a new one.
// Used to associate guest sessions with a stable identifier.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   os.Getenv("APP_ENV") == "production",
		SameSite: func() http.SameSite {
			if os.Getenv("APP_ENV") == "production" {
				return http.SameSiteNoneMode
			}
			return http.SameSiteLaxMode
		}(),
		Expires: time.Now().Add(180 * 24 * time.Hour),
	})
	return id
}

// ------------------------------- small util --------------------------------

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
