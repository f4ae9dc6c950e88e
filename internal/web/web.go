package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"

	"staycal/internal/availability"
	"staycal/internal/config"
	"staycal/internal/feeds"
	"staycal/internal/ics"
	appLog "staycal/internal/log"
	"staycal/internal/model"
)

// maxParseBody caps POST /api/parse payloads.
const maxParseBody = 10 << 20

// Server provides the HTTP API over the feed snapshots.
type Server struct {
	cfg   *config.Config
	feeds *feeds.Service
	mux   *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, svc *feeds.Service) *Server {
	s := &Server{
		cfg:   cfg,
		feeds: svc,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server. CORS wraps
// basic auth so that preflight requests are answered without credentials.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	if len(s.cfg.CORSOrigins) > 0 {
		appLog.Info("CORS enabled", "origins", len(s.cfg.CORSOrigins))
		h = cors.New(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}).Handler(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials disable it.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="staycal", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves the API on cfg.Listen until ctx is canceled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/feeds", s.handleFeeds)
	s.mux.HandleFunc("GET /api/feeds/{id}/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/feeds/{id}/blocked", s.handleBlocked)
	s.mux.HandleFunc("GET /api/feeds/{id}/stay", s.handleStay)
	s.mux.HandleFunc("GET /api/feeds/{id}/blocked.ics", s.handleExport)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/parse", s.handleParse)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// feedDTO is the JSON summary of one feed snapshot.
type feedDTO struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Flavor          string     `json:"flavor"`
	Success         bool       `json:"success"`
	FetchedAt       *time.Time `json:"fetched_at,omitempty"`
	FromCache       bool       `json:"from_cache"`
	Error           string     `json:"error,omitempty"`
	Today           model.Date `json:"today"`
	HorizonStart    model.Date `json:"horizon_start"`
	HorizonEnd      model.Date `json:"horizon_end"`
	AvailableDays   int        `json:"available_days"`
	UnavailableDays int        `json:"unavailable_days"`
	BookingPeriods  int        `json:"booking_periods"`
}

func toFeedDTO(snap feeds.Snapshot) feedDTO {
	dto := feedDTO{
		ID:              snap.Feed.ID,
		Name:            snap.Feed.Name,
		Flavor:          snap.Result.Flavor,
		Success:         snap.Result.Success,
		FromCache:       snap.FromCache,
		Today:           snap.Result.Today,
		HorizonStart:    snap.Result.HorizonStart,
		HorizonEnd:      snap.Result.HorizonEnd,
		AvailableDays:   len(snap.Result.AvailableDates),
		UnavailableDays: len(snap.Result.UnavailableDates),
		BookingPeriods:  len(snap.Result.BookingPeriods),
	}
	if !snap.FetchedAt.IsZero() {
		t := snap.FetchedAt.UTC()
		dto.FetchedAt = &t
	}
	if snap.Err != nil {
		dto.Error = snap.Err.Error()
	}
	return dto
}

func (s *Server) handleFeeds(w http.ResponseWriter, _ *http.Request) {
	snaps := s.feeds.List()
	out := make([]feedDTO, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toFeedDTO(snap))
	}
	writeJSON(w, http.StatusOK, out)
}

// snapshot resolves the {id} path value, writing a 404 on unknown feeds.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (feeds.Snapshot, bool) {
	snap, err := s.feeds.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, feeds.ErrUnknownFeed) {
			writeError(w, http.StatusNotFound, "unknown feed")
			return feeds.Snapshot{}, false
		}
		appLog.Error("feed lookup failed", err, "id", r.PathValue("id"))
		writeError(w, http.StatusInternalServerError, "feed lookup failed")
		return feeds.Snapshot{}, false
	}
	return snap, true
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Result)
}

type blockedResponse struct {
	Date    model.Date `json:"date"`
	Blocked bool       `json:"blocked"`
}

// handleBlocked answers GET /api/feeds/{id}/blocked?date=YYYY-MM-DD.
func (s *Server) handleBlocked(w http.ResponseWriter, r *http.Request) {
	day, err := model.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, blockedResponse{Date: day, Blocked: snap.Result.IsBlocked(day)})
}

type stayResponse struct {
	Checkin        model.Date `json:"checkin"`
	Checkout       model.Date `json:"checkout"`
	CheckinBlocked bool       `json:"checkin_blocked"`
	BlockedBetween bool       `json:"blocked_between"`
	Bookable       bool       `json:"bookable"`
}

// handleStay answers GET /api/feeds/{id}/stay?checkin=&checkout=.
func (s *Server) handleStay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	checkin, err := model.ParseDate(q.Get("checkin"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "checkin must be YYYY-MM-DD")
		return
	}
	checkout, err := model.ParseDate(q.Get("checkout"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "checkout must be YYYY-MM-DD")
		return
	}
	if !checkin.Before(checkout) {
		writeError(w, http.StatusBadRequest, "checkout must be after checkin")
		return
	}
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	res := snap.Result
	writeJSON(w, http.StatusOK, stayResponse{
		Checkin:        checkin,
		Checkout:       checkout,
		CheckinBlocked: res.IsBlocked(checkin),
		BlockedBetween: res.HasBlockedDateBetween(checkin, checkout),
		Bookable:       res.CanBook(checkin, checkout),
	})
}

// handleExport serves the blocked days of a feed as an iCalendar document.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	if !snap.Result.Success {
		writeError(w, http.StatusServiceUnavailable, "feed has no usable data")
		return
	}

	stamp := snap.FetchedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	body := ics.Export(snap.Feed.ID, snap.Feed.Name, snap.Result.Ranges, stamp)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+snap.Feed.ID+`-blocked.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

type refreshResponse struct {
	Feeds  []feedDTO `json:"feeds"`
	Failed int       `json:"failed"`
}

// handleRefresh refreshes every feed (or only ?id=) synchronously.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var err error
	if id := r.URL.Query().Get("id"); id != "" {
		err = s.feeds.Refresh(ctx, id)
		if errors.Is(err, feeds.ErrUnknownFeed) {
			writeError(w, http.StatusNotFound, "unknown feed")
			return
		}
	} else {
		err = s.feeds.RefreshAll(ctx)
	}
	if err != nil {
		appLog.Warn("api refresh had failures", "error", err.Error())
	}

	snaps := s.feeds.List()
	resp := refreshResponse{Feeds: make([]feedDTO, 0, len(snaps))}
	for _, snap := range snaps {
		dto := toFeedDTO(snap)
		if dto.Error != "" {
			resp.Failed++
		}
		resp.Feeds = append(resp.Feeds, dto)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleParse runs the pipeline over a posted feed body.
//
// POST /api/parse?flavor=airbnb&today=2025-05-01&horizon_days=365
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	profile, err := availability.ProfileByName(q.Get("flavor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	today := s.feeds.Today()
	if v := q.Get("today"); v != "" {
		if today, err = model.ParseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, "today must be YYYY-MM-DD")
			return
		}
	}

	horizon := parseIntDefault(q.Get("horizon_days"), s.cfg.HorizonDays)
	if horizon <= 0 || horizon > config.MaxWindowDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("horizon_days must be between 1 and %d", config.MaxWindowDays))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxParseBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "feed body too large")
		return
	}

	opts := availability.Options{
		Profile:      profile,
		HorizonDays:  horizon,
		BackfillDays: s.cfg.BackfillDays,
		Location:     s.cfg.Location(),
		Trace:        appLog.Debug,
	}
	writeJSON(w, http.StatusOK, availability.Parse(string(body), today, opts))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
