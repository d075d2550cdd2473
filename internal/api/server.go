package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SpaceTimerAPI-Admin/christmastech/internal/backfill"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/lifecycle"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/logbuf"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/ticket"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/tracker"
	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

// maxUploadBytes bounds photo uploads (base64 payloads included).
const maxUploadBytes = 10 << 20

// LogQuerier abstracts log querying to avoid coupling to logbuf directly.
type LogQuerier interface {
	Query(f logbuf.Filter) []logbuf.Entry
}

// TrackerService is the interface the API server needs from the tracker.
type TrackerService interface {
	CreateTicket(ctx context.Context, rep protocol.Report, dryRun, force bool) (*tracker.CreateResult, error)
	GetTicket(ctx context.Context, id int64) (*tracker.TicketDetail, error)
	ListTickets(ctx context.Context, filter ticket.Filter) ([]*protocol.Ticket, error)
	UpdateStatus(ctx context.Context, id int64, status protocol.TicketStatus, actor string) (*protocol.Ticket, error)
	AddComment(ctx context.Context, ticketID int64, author, body string) (*protocol.Comment, error)
	Attach(ctx context.Context, req tracker.AttachRequest) (string, error)
	UploadPhoto(ctx context.Context, data []byte, contentType string) (name, url string, err error)
	RunBackfill(ctx context.Context, dryRun bool) (*backfill.RunReport, error)
	SendDailyReport(ctx context.Context) error
}

// Config holds API server configuration.
type Config struct {
	Host           string
	Port           int
	Key            string // API key for Bearer auth
	BackfillSecret string // shared secret gating POST /api/backfill
	PhotosDir      string // directory served under /photos/
}

// Server is the christmastech REST API server.
type Server struct {
	svc    TrackerService
	cfg    Config
	logger *slog.Logger
	logs   LogQuerier
	srv    *http.Server
}

// NewServer creates a new API server. logs and metrics may be nil.
func NewServer(svc TrackerService, cfg Config, logger *slog.Logger, logs LogQuerier, metrics http.Handler) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		logs:   logs,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/tickets", s.handleListTickets)
	mux.HandleFunc("POST /api/tickets", s.handleCreateTicket)
	mux.HandleFunc("GET /api/tickets/{id}", s.handleGetTicket)
	mux.HandleFunc("POST /api/tickets/{id}/status", s.handleUpdateStatus)
	mux.HandleFunc("POST /api/tickets/{id}/comments", s.handleAddComment)
	mux.HandleFunc("POST /api/tickets/{id}/photos", s.handleAttach)
	mux.HandleFunc("POST /api/photos", s.handleUploadPhoto)
	mux.HandleFunc("POST /api/backfill", s.requireSecret(s.handleBackfill))
	mux.HandleFunc("POST /api/report", s.requireAuth(s.handleReport))
	mux.HandleFunc("GET /api/logs", s.requireAuth(s.handleGetLogs))
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	if cfg.PhotosDir != "" {
		mux.Handle("GET /photos/", http.StripPrefix("/photos/", http.FileServer(http.Dir(cfg.PhotosDir))))
	}

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Backfill-Secret")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.Key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// requireSecret gates the backfill trigger behind its shared secret,
// accepted as a header or a query parameter.
func (s *Server) requireSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.BackfillSecret == "" {
			next(w, r)
			return
		}
		got := r.Header.Get("X-Backfill-Secret")
		if got == "" {
			got = r.URL.Query().Get("secret")
		}
		if got != s.cfg.BackfillSecret {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	filter := ticket.Filter{}
	if status := r.URL.Query().Get("status"); status != "" {
		ts := protocol.TicketStatus(status)
		if !ts.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status " + status})
			return
		}
		filter.Status = &ts
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = n
		}
	}

	tickets, err := s.svc.ListTickets(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if tickets == nil {
		tickets = []*protocol.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

type createTicketRequest struct {
	TechName    string   `json:"tech_name"`
	Location    string   `json:"location_friendly"`
	Description string   `json:"description"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	PhotoURL    string   `json:"photo_url,omitempty"`
	DryRun      bool     `json:"dry_run,omitempty"`
	ForceCreate bool     `json:"force_create,omitempty"`
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	rep := protocol.Report{
		TechName:    req.TechName,
		Location:    req.Location,
		Description: req.Description,
		Coordinate:  protocol.NewCoordinate(req.Lat, req.Lon),
		PhotoURL:    req.PhotoURL,
	}
	res, err := s.svc.CreateTicket(r.Context(), rep, req.DryRun, req.ForceCreate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if res.Duplicate {
		// 409 tells the submitting form to surface the nearby ticket.
		writeJSON(w, http.StatusConflict, res)
		return
	}
	if req.DryRun {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket id"})
		return
	}
	detail, err := s.svc.GetTicket(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor,omitempty"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket id"})
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	updated, err := s.svc.UpdateStatus(r.Context(), id, protocol.TicketStatus(req.Status), req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type addCommentRequest struct {
	Author string `json:"author,omitempty"`
	Body   string `json:"body"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket id"})
		return
	}
	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	comment, err := s.svc.AddComment(r.Context(), id, req.Author, req.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

type attachRequest struct {
	TechName    string   `json:"tech_name,omitempty"`
	Description string   `json:"description,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	PhotoBase64 string   `json:"photo_base64,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket id"})
		return
	}
	var req attachRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	var data []byte
	if req.PhotoBase64 != "" {
		data, err = base64.StdEncoding.DecodeString(req.PhotoBase64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid photo_base64"})
			return
		}
	}

	url, err := s.svc.Attach(r.Context(), tracker.AttachRequest{
		TicketID:    id,
		TechName:    req.TechName,
		Description: req.Description,
		Coordinate:  protocol.NewCoordinate(req.Lat, req.Lon),
		PhotoData:   data,
		ContentType: req.ContentType,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := map[string]any{"status": "ok"}
	if url != "" {
		resp["photo_url"] = url
	}
	writeJSON(w, http.StatusOK, resp)
}

type uploadPhotoRequest struct {
	PhotoBase64 string `json:"photo_base64"`
	ContentType string `json:"content_type,omitempty"`
}

// handleUploadPhoto accepts either a multipart form with a "photo"
// field or a JSON body with base64 data, and returns the stored name
// and public URL.
func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	var (
		data        []byte
		contentType string
		err         error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
			return
		}
		file, header, ferr := r.FormFile("photo")
		if ferr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "photo field is required"})
			return
		}
		defer file.Close()
		data, err = io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload: " + err.Error()})
			return
		}
		contentType = header.Header.Get("Content-Type")
	} else {
		var req uploadPhotoRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
		data, err = base64.StdEncoding.DecodeString(req.PhotoBase64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid photo_base64"})
			return
		}
		contentType = req.ContentType
	}

	name, url, err := s.svc.UploadPhoto(r.Context(), data, contentType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": name, "photo_url": url})
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v == "1" || v == "true" {
		dryRun = true
	}

	rep, err := s.svc.RunBackfill(r.Context(), dryRun)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.SendDailyReport(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}

	f := logbuf.Filter{
		MinLevel:  logbuf.ParseLevel(r.URL.Query().Get("level")),
		Component: r.URL.Query().Get("component"),
		Limit:     200,
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if ms, err := strconv.ParseInt(since, 10, 64); err == nil {
			f.Since = time.UnixMilli(ms)
		}
	}

	entries := s.logs.Query(f)
	if entries == nil {
		entries = []logbuf.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Helpers ---

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ticket.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticket not found"})
	case errors.Is(err, tracker.ErrInvalidReport), errors.Is(err, lifecycle.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
