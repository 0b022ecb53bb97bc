// Package handler exposes the admin surface: login, usage reporting, policy
// inspection, counter resets and the audit trail.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"cardmill/internal/audit"
	"cardmill/internal/platform/config"
	"cardmill/internal/platform/middleware"
	"cardmill/internal/quota/policy"
	"cardmill/internal/quota/ports"
	"cardmill/pkg/domain"
	dErrors "cardmill/pkg/domain-errors"
	"cardmill/pkg/platform/httputil"
)

const defaultAuditLimit = 100

// Handler wires admin endpoints to the quota store and audit trail.
type Handler struct {
	cfg        config.AdminConfig
	store      ports.CounterStore
	policy     *policy.Policy
	auditStore audit.Store
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Handler)

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// New constructs an admin handler with its dependencies.
func New(cfg config.AdminConfig, store ports.CounterStore, pol *policy.Policy, auditStore audit.Store, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		cfg:        cfg,
		store:      store,
		policy:     pol,
		auditStore: auditStore,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts admin endpoints on the router. Everything except login sits
// behind the bearer JWT middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/login", h.HandleLogin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.cfg.JWTSigningKey, h.logger))
		r.Get("/admin/usage", h.HandleUsage)
		r.Get("/admin/policy", h.HandlePolicy)
		r.Post("/admin/quota/reset", h.HandleQuotaReset)
		r.Get("/admin/audit", h.HandleAudit)
	})
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// HandleLogin handles POST /admin/login requests.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cfg.PasswordHash == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin login is disabled"))
		return
	}

	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(req.Password)); err != nil {
		audit.Log(ctx, h.auditStore, h.logger, audit.Event{
			Action:    audit.ActionAdminLoginFailed,
			RequestID: middleware.GetRequestID(ctx),
			ClientIP:  middleware.GetClientIP(ctx),
		})
		h.logger.WarnContext(ctx, "admin login rejected",
			"client_ip", middleware.GetClientIP(ctx),
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))
		return
	}

	expiresAt := h.now().Add(h.cfg.TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   middleware.AdminSubject,
		IssuedAt:  jwt.NewNumericDate(h.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte(h.cfg.JWTSigningKey))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "sign token"))
		return
	}

	audit.Log(ctx, h.auditStore, h.logger, audit.Event{
		Action:    audit.ActionAdminLogin,
		RequestID: middleware.GetRequestID(ctx),
		ClientIP:  middleware.GetClientIP(ctx),
	})
	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     signed,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

type usageEntry struct {
	Date      string `json:"date"`
	Used      int    `json:"used"`
	Ceiling   int    `json:"ceiling"`
	Remaining int    `json:"remaining"`
	Known     bool   `json:"known"`
}

// HandleUsage handles GET /admin/usage requests. It merges stored counters
// with the policy table so dates with zero usage still show their ceilings.
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.store.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "usage listing failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	used := make(map[domain.Date]int, len(records))
	for _, rec := range records {
		used[rec.Date] = rec.Count
	}

	seen := make(map[domain.Date]bool)
	entries := make([]usageEntry, 0, len(records)+len(h.policy.Entries()))
	for _, pe := range h.policy.Entries() {
		seen[pe.Date] = true
		entries = append(entries, newUsageEntry(pe.Date, used[pe.Date], pe.Quota, true))
	}
	// Counters for dates outside the table (unknown-date allow mode).
	for _, rec := range records {
		if !seen[rec.Date] {
			entries = append(entries, newUsageEntry(rec.Date, rec.Count, 0, false))
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"usage": entries})
}

func newUsageEntry(date domain.Date, used, ceiling int, known bool) usageEntry {
	remaining := ceiling - used
	if remaining < 0 {
		remaining = 0
	}
	return usageEntry{
		Date:      date.String(),
		Used:      used,
		Ceiling:   ceiling,
		Remaining: remaining,
		Known:     known,
	}
}

type policyEntry struct {
	Date  string `json:"date"`
	Quota int    `json:"quota"`
}

type policyResponse struct {
	Mode        string        `json:"mode"`
	UnknownDate string        `json:"unknown_date"`
	HardWindow  bool          `json:"hard_window"`
	WindowStart string        `json:"window_start"`
	WindowEnd   string        `json:"window_end"`
	Entries     []policyEntry `json:"entries"`
}

// HandlePolicy handles GET /admin/policy requests.
func (h *Handler) HandlePolicy(w http.ResponseWriter, r *http.Request) {
	unknown := "deny"
	if h.policy.AllowsUnknownDates() {
		unknown = "allow"
	}

	resp := policyResponse{
		Mode:        string(h.policy.Mode()),
		UnknownDate: unknown,
		HardWindow:  h.policy.HardWindow(),
		WindowStart: h.policy.WindowStart().String(),
		WindowEnd:   h.policy.WindowEnd().String(),
	}
	for _, e := range h.policy.Entries() {
		resp.Entries = append(resp.Entries, policyEntry{Date: e.Date.String(), Quota: e.Quota})
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

type resetRequest struct {
	Date string `json:"date"`
}

// HandleQuotaReset handles POST /admin/quota/reset requests.
func (h *Handler) HandleQuotaReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	date, err := domain.ParseDate(req.Date)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid date"))
		return
	}

	if err := h.store.Set(ctx, date, 0); err != nil {
		h.logger.ErrorContext(ctx, "quota reset failed",
			"date", date.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	audit.Log(ctx, h.auditStore, h.logger, audit.Event{
		Action:    audit.ActionQuotaReset,
		Subject:   date.String(),
		RequestID: middleware.GetRequestID(ctx),
		ClientIP:  middleware.GetClientIP(ctx),
	})
	h.logger.InfoContext(ctx, "quota counter reset", "date", date.String())

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"date": date.String(), "status": "reset"})
}

// HandleAudit handles GET /admin/audit requests.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	events, err := h.auditStore.ListRecent(ctx, defaultAuditLimit)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit listing failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
