package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sallich/PixelHub/pkg/history"
	"github.com/sallich/PixelHub/pkg/leaderboard"
	"github.com/sallich/PixelHub/pkg/ledger"
	"github.com/sallich/PixelHub/pkg/logger"
)

const leaderboardSize = 10

// Placer accepts placement requests; the pipeline implements it.
type Placer interface {
	PlacePixel(ctx context.Context, x, y, color int, nickname string, now time.Time) error
}

// IdentityFunc extracts the authenticated nickname from a request. Token
// issuance and verification live outside this service; by default the
// upstream proxy forwards the nickname in a header.
type IdentityFunc func(r *http.Request) (string, bool)

// HeaderIdentity trusts the X-Nickname header verbatim.
func HeaderIdentity(r *http.Request) (string, bool) {
	nickname := r.Header.Get("X-Nickname")
	return nickname, nickname != ""
}

// Deps wires the read and write paths into the server. Zero-value deps yield
// a bare observability server (health, ready, metrics) — what the
// broadcaster runs.
type Deps struct {
	Placer      Placer
	Ledger      ledger.Ledger
	Store       history.Store
	Leaderboard *leaderboard.Cache
	Identity    IdentityFunc
}

// Server handles health checks, metrics and the board API
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	deps       Deps
}

type pixelDTO struct {
	X *int `json:"x"`
	Y *int `json:"y"`
	C *int `json:"c"`
}

type boardResponse struct {
	Pixels []history.Cell `json:"pixels"`
}

type userDTO struct {
	Nickname   string `json:"nickname"`
	PixelCount int64  `json:"pixelCount"`
}

type leaderboardResponse struct {
	Users []userDTO `json:"users"`
}

type registerRequest struct {
	Nickname string `json:"nickname"`
}

type errorResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a server on addr with the given dependencies.
func New(addr string, l *logger.Logger, deps Deps) *Server {
	if deps.Identity == nil {
		deps.Identity = HeaderIdentity
	}

	s := &Server{
		logger: l,
		deps:   deps,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	if deps.Store != nil {
		mux.HandleFunc("/full-board", s.handleFullBoard)
		mux.HandleFunc("/board-history", s.handleBoardHistory)
	}
	if deps.Ledger != nil {
		mux.HandleFunc("/register", s.handleRegister)
		mux.HandleFunc("/leaderboard", s.handleLeaderboard)
	}
	if deps.Placer != nil {
		mux.HandleFunc("/pixel", s.handlePlacePixel)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nickname == "" {
		s.writeError(w, http.StatusBadRequest, "nickname is required")
		return
	}

	rec, err := s.deps.Ledger.Register(r.Context(), req.Nickname)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateUser) {
			s.writeError(w, http.StatusConflict, "nickname already taken")
			return
		}
		s.logger.Error("failed to register user", err, zap.String("nickname", req.Nickname))
		s.writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	s.writeJSON(w, http.StatusCreated, userDTO{Nickname: rec.Nickname, PixelCount: rec.PixelCount})
}

// handlePlacePixel is the thin transport adapter in front of the pipeline.
// Malformed coordinates are not an error for the client: the pipeline drops
// them silently and the response is 202 either way.
func (s *Server) handlePlacePixel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	nickname, ok := s.deps.Identity(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req pixelDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.X == nil || req.Y == nil || req.C == nil {
		// Missing fields follow the same silent-drop policy as bad bounds.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	err := s.deps.Placer.PlacePixel(r.Context(), *req.X, *req.Y, *req.C, nickname, time.Now().UTC())
	if err != nil {
		s.logger.Error("placement failed", err, zap.String("nickname", nickname))
		s.writeError(w, http.StatusInternalServerError, "placement failed")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleFullBoard(w http.ResponseWriter, r *http.Request) {
	cells, err := s.deps.Store.Board(r.Context())
	if err != nil {
		s.logger.Error("failed to load board", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load board")
		return
	}
	if cells == nil {
		cells = []history.Cell{}
	}
	s.writeJSON(w, http.StatusOK, boardResponse{Pixels: cells})
}

func (s *Server) handleBoardHistory(w http.ResponseWriter, r *http.Request) {
	ts := r.URL.Query().Get("timestamp")
	at, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "timestamp must be RFC3339")
		return
	}

	cells, err := s.deps.Store.SnapshotAsOf(r.Context(), at)
	if err != nil {
		s.logger.Error("failed to load board history", err, zap.Time("timestamp", at))
		s.writeError(w, http.StatusInternalServerError, "failed to load board history")
		return
	}
	if cells == nil {
		cells = []history.Cell{}
	}
	s.writeJSON(w, http.StatusOK, boardResponse{Pixels: cells})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	var (
		records []ledger.UserRecord
		err     error
	)
	if s.deps.Leaderboard != nil {
		records, err = s.deps.Leaderboard.Top(r.Context(), leaderboardSize)
	} else {
		records, err = s.deps.Ledger.TopN(r.Context(), leaderboardSize)
	}
	if err != nil {
		s.logger.Error("failed to load leaderboard", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	users := make([]userDTO, 0, len(records))
	for _, rec := range records {
		users = append(users, userDTO{Nickname: rec.Nickname, PixelCount: rec.PixelCount})
	}
	s.writeJSON(w, http.StatusOK, leaderboardResponse{Users: users})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Message: msg, Timestamp: time.Now().UTC()})
}

// Start runs the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
