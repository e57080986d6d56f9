package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"yt_multi_account/config"
	"yt_multi_account/internal/domain"
	"yt_multi_account/internal/logger"
)

// AccountService lists and authorizes accounts
type AccountService interface {
	Accounts() ([]domain.Account, error)
	AuthURL(name string) (string, error)
	Authorize(ctx context.Context, name, code string) (domain.Account, error)
}

// BatchService builds and runs batches from raw operator input
type BatchService interface {
	CommentBatch(ctx context.Context, accounts []string, rawVideo, text string) (*domain.Run, error)
	LikeBatch(ctx context.Context, accounts []string, rawURL string) (*domain.Run, error)
}

// Server exposes a local REST API for accounts, batches and the run journal.
type Server struct {
	cfg      *config.Config
	accounts AccountService
	batches  BatchService
	runs     domain.RunRepository
	metrics  http.Handler
	server   *http.Server
}

// NewServer creates a new HTTP server. metrics may be nil.
func NewServer(cfg *config.Config, accounts AccountService, batches BatchService, runs domain.RunRepository, metrics http.Handler) *Server {
	s := &Server{
		cfg:      cfg,
		accounts: accounts,
		batches:  batches,
		runs:     runs,
		metrics:  metrics,
	}

	s.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(loggingMiddleware)

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Get("/{name}/auth-url", s.handleAuthURL)
			r.Post("/{name}/authorize", s.handleAuthorize)
		})
		r.Route("/batches", func(r chi.Router) {
			r.Post("/comments", s.handleCommentBatch)
			r.Post("/likes", s.handleLikeBatch)
		})
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
		})
	})
	if s.metrics != nil {
		router.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return router
}

// Start begins serving HTTP requests in a separate goroutine.
func (s *Server) Start() error {
	if s.cfg.ServerPort == "" {
		return fmt.Errorf("server port is not configured")
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Printf("http api server stopped with error: %v", err)
		}
	}()
	logger.Info().Printf("HTTP API server listening on %s", s.server.Addr)
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.Accounts()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for _, acc := range accounts {
		resp = append(resp, toAccountResponse(acc))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	url, err := s.accounts.AuthURL(name)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"account": name, "url": url})
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	acc, err := s.accounts.Authorize(r.Context(), chi.URLParam(r, "name"), payload.Code)
	if err != nil {
		logger.Error().Printf("authorize %s: %v", chi.URLParam(r, "name"), err)
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, toAccountResponse(acc))
}

func (s *Server) handleCommentBatch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Accounts []string `json:"accounts"`
		Video    string   `json:"video"`
		Text     string   `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	run, err := s.batches.CommentBatch(r.Context(), payload.Accounts, payload.Video, payload.Text)
	respondBatch(w, run, err)
}

func (s *Server) handleLikeBatch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Accounts   []string `json:"accounts"`
		CommentURL string   `json:"comment_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	run, err := s.batches.LikeBatch(r.Context(), payload.Accounts, payload.CommentURL)
	respondBatch(w, run, err)
}

// respondBatch reports a finished batch. A run returned together with an
// error was aborted by a store failure and carries the partial results.
func respondBatch(w http.ResponseWriter, run *domain.Run, err error) {
	switch {
	case run == nil && err != nil:
		respondError(w, statusFor(err), err.Error())
	case err != nil:
		logger.Error().Printf("batch %s aborted: %v", run.ID, err)
		resp := toRunResponse(run)
		resp.Error = err.Error()
		respondJSON(w, http.StatusInternalServerError, resp)
	default:
		respondJSON(w, http.StatusOK, toRunResponse(run))
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > 200 {
			n = 200
		}
		limit = n
	}

	runs, err := s.runs.Recent(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, toRunResponse(run))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidIdentifier), errors.Is(err, domain.ErrInvalidAccountName):
		return http.StatusBadRequest
	}
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info().Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

type accountResponse struct {
	Name          string `json:"name"`
	HasCredential bool   `json:"has_credential"`
	HasProfile    bool   `json:"has_profile"`
	Authenticated bool   `json:"authenticated"`
}

func toAccountResponse(acc domain.Account) accountResponse {
	return accountResponse{
		Name:          acc.Name,
		HasCredential: acc.HasCredential,
		HasProfile:    acc.HasProfile,
		Authenticated: acc.Authenticated(),
	}
}

type resultResponse struct {
	Account    string    `json:"account"`
	Target     string    `json:"target"`
	Succeeded  bool      `json:"succeeded"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	Attempts   int       `json:"attempts"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type runResponse struct {
	ID         string           `json:"id"`
	Kind       string           `json:"kind"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Succeeded  int              `json:"succeeded"`
	Total      int              `json:"total"`
	Results    []resultResponse `json:"results"`
	Error      string           `json:"error,omitempty"`
}

func toRunResponse(run *domain.Run) runResponse {
	resp := runResponse{
		ID:         run.ID,
		Kind:       string(run.Kind),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Succeeded:  run.Succeeded(),
		Total:      len(run.Results),
		Results:    make([]resultResponse, 0, len(run.Results)),
	}
	for _, res := range run.Results {
		resp.Results = append(resp.Results, resultResponse{
			Account:    res.Account,
			Target:     res.Target,
			Succeeded:  res.Succeeded,
			Outcome:    string(res.Outcome),
			Detail:     res.Detail,
			Attempts:   res.Attempts,
			StartedAt:  res.StartedAt,
			FinishedAt: res.FinishedAt,
		})
	}
	return resp
}
