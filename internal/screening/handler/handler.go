package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"basecamp/internal/screening/models"
	"basecamp/internal/screening/service"
	"basecamp/pkg/domain"
	dErrors "basecamp/pkg/domain-errors"
	"basecamp/pkg/platform/httputil"
	"basecamp/pkg/requestcontext"
)

// Service is the screening use-case surface the handlers call.
type Service interface {
	Submit(ctx context.Context, req *models.Request) (*models.Record, error)
	Status(ctx context.Context, id domain.ScreeningID) (*service.StatusView, error)
	Get(ctx context.Context, id domain.ScreeningID) (*models.Record, error)
	Cancel(ctx context.Context, id domain.ScreeningID) (*models.Record, error)
	Rerun(ctx context.Context, id domain.ScreeningID, req *models.Request) (*models.Record, error)
	ListForReview(ctx context.Context, statuses ...models.Status) ([]*models.Record, error)
	EstimateCompletion(tier models.Tier) string
}

type Handler struct {
	screenings Service
	logger     *slog.Logger
	idem       *IdempotencyCache
	submitMW   []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithIdempotency replaces the default Idempotency-Key cache.
func WithIdempotency(cache *IdempotencyCache) Option {
	return func(h *Handler) {
		h.idem = cache
	}
}

// WithSubmitMiddleware wraps only POST /screenings, e.g. with a rate limit.
func WithSubmitMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitMW = append(h.submitMW, mw...)
	}
}

func New(screenings Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		screenings: screenings,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.idem == nil {
		h.idem = NewIdempotencyCache(DefaultIdempotencySize, DefaultIdempotencyTTL)
	}
	return h
}

// Register mounts the candidate-facing routes.
func (h *Handler) Register(r chi.Router) {
	r.With(h.submitMW...).Post("/screenings", h.handleSubmit)
	r.Get("/screenings/{id}", h.handleStatus)
}

// RegisterAdmin mounts the operator routes. The caller wraps r with the
// admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/screenings", h.handleAdminList)
	r.Get("/admin/screenings/{id}", h.handleAdminGet)
	r.Post("/admin/screenings/{id}/cancel", h.handleAdminCancel)
	r.Post("/admin/screenings/{id}/rerun", h.handleAdminRerun)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if len(key) > maxIdempotencyKeyLength {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Idempotency-Key is too long"))
		return
	}
	var scoped, bodyPrint string
	if key != "" {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			h.logger.WarnContext(ctx, "failed to read request body", "request_id", requestID, "error", err)
			var maxErr *http.MaxBytesError
			if !errors.As(err, &maxErr) {
				err = dErrors.New(dErrors.CodeBadRequest, "invalid request body")
			}
			httputil.WriteError(w, err)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))
		scoped, bodyPrint = scopedKey(requestcontext.ClientIP(ctx), key), fingerprint(raw)

		if cached, ok := h.idem.get(scoped); ok {
			if cached.fingerprint != bodyPrint {
				h.logger.WarnContext(ctx, "idempotency key reused with a different body", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeIdempotencyMismatch,
					"Idempotency-Key was already used for a different request"))
				return
			}
			h.logger.InfoContext(ctx, "replaying idempotent submission", "request_id", requestID)
			w.Header().Set(IdempotentReplayHeader, "true")
			httputil.WriteJSON(w, cached.status, cached.body)
			return
		}
	}

	req, ok := httputil.DecodeJSON[models.Request](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.screenings.Submit(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "screening submission rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	res := &SubmitResponse{
		ID:                  rec.ID,
		Status:              rec.Status.String(),
		EstimatedCompletion: h.screenings.EstimateCompletion(rec.Tier),
	}
	if key != "" {
		h.idem.add(scoped, cachedResponse{status: http.StatusAccepted, body: res, fingerprint: bodyPrint})
	}
	w.Header().Set("Location", "/screenings/"+rec.ID.String())
	httputil.WriteJSON(w, http.StatusAccepted, res)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.screeningID(w, r)
	if !ok {
		return
	}
	view, err := h.screenings.Status(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recs, err := h.screenings.ListForReview(ctx, statuses...)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list screenings",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(recs))
}

func (h *Handler) handleAdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.screeningID(w, r)
	if !ok {
		return
	}
	rec, err := h.screenings.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAdminRecord(rec))
}

func (h *Handler) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.screeningID(w, r)
	if !ok {
		return
	}
	rec, err := h.screenings.Cancel(r.Context(), id)
	if err != nil {
		h.adminFailure(r, "cancel", id, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAdminRecord(rec))
}

// handleAdminRerun accepts an optional candidate body; an empty body lets
// the workflow reuse the existing report when it can.
func (h *Handler) handleAdminRerun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.screeningID(w, r)
	if !ok {
		return
	}

	var req *models.Request
	var body models.Request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if !errors.Is(err, io.EOF) {
			h.logger.WarnContext(ctx, "failed to decode rerun body",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	} else {
		req = &body
	}

	rec, err := h.screenings.Rerun(ctx, id, req)
	if err != nil {
		h.adminFailure(r, "rerun", id, err)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if rec.ID != id {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, toAdminRecord(rec))
}

func (h *Handler) adminFailure(r *http.Request, action string, id domain.ScreeningID, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, "admin action failed",
		"request_id", requestcontext.RequestID(ctx),
		"action", action,
		"record_id", id.String(),
		"actor", requestcontext.AdminActor(ctx),
		"error", err,
	)
}

func (h *Handler) screeningID(w http.ResponseWriter, r *http.Request) (domain.ScreeningID, bool) {
	id, err := domain.ParseScreeningID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.ScreeningID{}, false
	}
	return id, true
}

func parseStatuses(raw string) ([]models.Status, error) {
	var out []models.Status
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		st, ok := models.ParseStatus(part)
		if !ok {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown status: "+part)
		}
		out = append(out, st)
	}
	return out, nil
}
