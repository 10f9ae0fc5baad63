package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kristian206/agent-ascend-server/internal/auth"
	"github.com/kristian206/agent-ascend-server/internal/config"
	"github.com/kristian206/agent-ascend-server/internal/leaderboard"
	"github.com/kristian206/agent-ascend-server/internal/points"
	"github.com/kristian206/agent-ascend-server/internal/season"
	"github.com/kristian206/agent-ascend-server/internal/store"
)

type Server struct {
	cfg     *config.Config
	db      *pgxpool.Pool
	rdb     *redis.Client
	svc     *season.Service
	mirror  *leaderboard.Mirror
	events  *store.EventStore
	members *store.MemberStore
	teams   *store.TeamStore
	hub     *Hub
	metrics *Metrics
	logger  *slog.Logger
	mux     *http.ServeMux
}

func New(cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client, svc *season.Service, hub *Hub, metrics *Metrics, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		db:      db,
		rdb:     rdb,
		svc:     svc,
		mirror:  leaderboard.NewMirror(rdb),
		events:  store.NewEventStore(db),
		members: store.NewMemberStore(db),
		teams:   store.NewTeamStore(db),
		hub:     hub,
		metrics: metrics,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.metrics.ServeHTTP)
	s.mux.Handle("GET /ws/feed", s.hub)

	// Engine operations
	s.mux.HandleFunc("POST /api/points/award", s.authed(s.handleAwardPoints))
	s.mux.HandleFunc("POST /api/members/{id}/bonus", s.authed(s.handleGoalBonus))
	s.mux.HandleFunc("GET /api/members/{id}/progress", s.handleUserProgress)
	s.mux.HandleFunc("GET /api/members/{id}/history", s.handleUserHistory)

	// Roster
	s.mux.HandleFunc("POST /api/members", s.authed(s.handleUpsertMember))
	s.mux.HandleFunc("POST /api/teams", s.authed(s.handleCreateTeam))
	s.mux.HandleFunc("GET /api/teams/{id}", s.handleGetTeam)

	// Seasons and leaderboards
	s.mux.HandleFunc("GET /api/seasons/current", s.handleCurrentSeason)
	s.mux.HandleFunc("POST /api/seasons/{id}/end", s.authed(s.handleEndSeason))
	s.mux.HandleFunc("GET /api/seasons/{id}/leaderboard", s.handleSeasonLeaderboard)
	s.mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	s.mux.HandleFunc("GET /api/leaderboard/top", s.handleBoardTop)
	s.mux.HandleFunc("GET /api/leaderboard/rank/{userID}", s.handleMemberRank)
	s.mux.HandleFunc("GET /api/leaderboard/teams", s.handleTeamStandings)
}

// authed guards mutating routes with the shared service token.
func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.ValidToken(r, s.cfg.ServiceToken) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}

	if err := s.db.Ping(ctx); err != nil {
		status["db"] = "down"
		status["status"] = "degraded"
	} else {
		status["db"] = "ok"
	}

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		status["redis"] = "down"
		status["status"] = "degraded"
	} else {
		status["redis"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if status["status"] != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("write json", "err", err)
	}
}

type awardRequest struct {
	UserID     string      `json:"user_id"`
	Action     points.Kind `json:"action"`
	PolicyType string      `json:"policy_type,omitempty"`
	CountToday int         `json:"count_today,omitempty"`
	Amount     int         `json:"amount,omitempty"`
}

func (s *Server) handleAwardPoints(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	action, ok := points.FromWire(req.Action, req.PolicyType, req.CountToday, req.Amount)
	if !ok {
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	result, err := s.svc.AwardPoints(r.Context(), req.UserID, action)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if result.Capped {
		s.metrics.IncrCapped()
	} else {
		s.metrics.IncrAwards(result.PointsAwarded)
	}
	writeJSON(w, result)
}

func (s *Server) handleGoalBonus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind season.BonusKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := s.svc.ApplyGoalBonus(r.Context(), r.PathValue("id"), req.Kind); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "applied"})
}

func (s *Server) handleUserProgress(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.UserProgress(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, status)
}

func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.events.UserHistory(r.Context(), r.PathValue("id"), queryLimit(r, 50, 200))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, history)
}

func (s *Server) handleUpsertMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		AvatarURL string  `json:"avatar_url,omitempty"`
		TeamID    *string `json:"team_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.Name == "" {
		http.Error(w, "id and name required", http.StatusBadRequest)
		return
	}
	m, err := s.members.Upsert(r.Context(), req.ID, req.Name, req.AvatarURL, req.TeamID)
	if err != nil {
		s.logger.Error("upsert member", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, m)
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.Name == "" {
		http.Error(w, "id and name required", http.StatusBadRequest)
		return
	}
	team, err := s.teams.Create(r.Context(), req.ID, req.Name)
	if err != nil {
		s.logger.Error("create team", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, team)
}

// handleEndSeason closes a season ahead of its end date. The next
// getCurrentSeason call opens a revision for the remainder of the month.
func (s *Server) handleEndSeason(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.EndSeason(r.Context(), r.PathValue("id")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.metrics.IncrSeasonRoll()
	writeJSON(w, map[string]string{"status": "ended"})
}

func (s *Server) handleCurrentSeason(w http.ResponseWriter, r *http.Request) {
	se, err := s.svc.Current(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, se)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.serveLeaderboard(w, r, "")
}

func (s *Server) handleSeasonLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.serveLeaderboard(w, r, r.PathValue("id"))
}

func (s *Server) serveLeaderboard(w http.ResponseWriter, r *http.Request, seasonID string) {
	standings, err := s.svc.Leaderboard(r.Context(), seasonID, queryLimit(r, 50, 100))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, standings)
}

// handleBoardTop serves the top of the current season straight from the
// Redis mirror, skipping PostgreSQL entirely.
func (s *Server) handleBoardTop(w http.ResponseWriter, r *http.Request) {
	se, err := s.svc.Current(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	entries, err := s.mirror.Top(r.Context(), se.ID, int64(queryLimit(r, 50, 100)))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, entries)
}

func (s *Server) handleMemberRank(w http.ResponseWriter, r *http.Request) {
	se, err := s.svc.Current(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	entry, err := s.mirror.MemberRank(r.Context(), se.ID, r.PathValue("userID"))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		http.Error(w, "not ranked", http.StatusNotFound)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleTeamStandings(w http.ResponseWriter, r *http.Request) {
	se, err := s.svc.Current(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	standings, err := s.teams.Standings(r.Context(), se.ID, queryLimit(r, 20, 100))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if standings == nil {
		standings = []store.TeamStanding{}
	}
	writeJSON(w, standings)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.teams.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if team == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, team)
}

// writeEngineError maps engine failures onto status codes: caller bugs are
// 400s, a season mid-transition asks the client to retry, everything else
// is a 500.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, season.ErrInvalidAction):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, season.ErrSeasonTransitioning):
		w.Header().Set("Retry-After", "1")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		s.logger.Error("engine error", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) Handler() http.Handler {
	limiter := NewRateLimiter(30, 60)
	return ChainMiddleware(s.mux,
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(limiter, s.logger),
	)
}

func queryLimit(r *http.Request, def, max int) int {
	limit := def
	if c := r.URL.Query().Get("limit"); c != "" {
		if n, err := strconv.Atoi(c); err == nil && n > 0 && n <= max {
			limit = n
		}
	}
	return limit
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}
