package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/sms-dispatch-gateway/internal/command"
	"github.com/wolfman30/sms-dispatch-gateway/internal/dispatch"
	"github.com/wolfman30/sms-dispatch-gateway/internal/history"
	"github.com/wolfman30/sms-dispatch-gateway/internal/http/middleware"
	"github.com/wolfman30/sms-dispatch-gateway/internal/recipients"
	batchworker "github.com/wolfman30/sms-dispatch-gateway/internal/worker/batch"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

const (
	maxBatchBody  = 1 << 20
	maxListUpload = 5 << 20
)

type batchService interface {
	Submit(req dispatch.Request, notifiers ...dispatch.Notifier) (string, error)
	Cancel(jobID string) bool
	History(ctx context.Context, limit int) ([]history.BatchRun, error)
}

// AdminBatchesConfig wires an AdminBatchesHandler.
type AdminBatchesConfig struct {
	Service batchService
	// Lists receives uploads; nil disables PUT /api/lists/{name}.
	Lists recipients.Store
	// Parser supplies the default message, default sender and approved
	// sender names, the same ones the chat commands use.
	Parser command.Parser
	Logger *logging.Logger
}

// AdminBatchesHandler hosts the JWT-protected batch API.
type AdminBatchesHandler struct {
	service batchService
	lists   recipients.Store
	parser  command.Parser
	logger  *logging.Logger
}

func NewAdminBatchesHandler(cfg AdminBatchesConfig) *AdminBatchesHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &AdminBatchesHandler{
		service: cfg.Service,
		lists:   cfg.Lists,
		parser:  cfg.Parser,
		logger:  cfg.Logger,
	}
}

type createBatchRequest struct {
	List    string   `json:"list"`
	Numbers []string `json:"numbers"`
	Sender  string   `json:"sender"`
	Message string   `json:"message"`
}

// CreateBatch handles POST /api/batches.
func (h *AdminBatchesHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var body createBatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	req, err := h.toRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := h.service.Submit(req)
	switch {
	case errors.Is(err, batchworker.ErrQueueFull), errors.Is(err, batchworker.ErrPoolClosed):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusServiceUnavailable, "job queue unavailable, retry later")
		return
	case err != nil:
		h.logger.Error("admin batch submit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit batch")
		return
	}

	h.logger.Info("admin batch submitted",
		"job_id", jobID,
		"by", middleware.AdminSubject(r.Context()),
		"target", req.Target,
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (h *AdminBatchesHandler) toRequest(body createBatchRequest) (dispatch.Request, error) {
	list := strings.TrimSpace(body.List)
	numbers := make([]string, 0, len(body.Numbers))
	for _, n := range body.Numbers {
		if n = strings.TrimSpace(n); n != "" {
			numbers = append(numbers, n)
		}
	}
	switch {
	case list == "" && len(numbers) == 0:
		return dispatch.Request{}, errors.New("list or numbers required")
	case list != "" && len(numbers) > 0:
		return dispatch.Request{}, errors.New("list and numbers are mutually exclusive")
	}
	if list != "" {
		if err := recipients.ValidateName(list); err != nil {
			return dispatch.Request{}, errors.New("invalid list name")
		}
	}

	sender := strings.TrimSpace(body.Sender)
	if sender == "" {
		sender = h.parser.DefaultSender
	} else if !h.parser.Approved(sender) {
		return dispatch.Request{}, errors.New("sender is not approved")
	}
	message := strings.TrimSpace(body.Message)
	if message == "" {
		message = h.parser.DefaultMessage
	}

	req := dispatch.Request{
		ListName: list,
		Numbers:  numbers,
		Sender:   sender,
		Message:  message,
		Source:   dispatch.SourceAPI,
	}
	if list != "" {
		req.Target = list
	}
	return req, nil
}

// ListBatches handles GET /api/batches?limit=N.
func (h *AdminBatchesHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = v
	}
	runs, err := h.service.History(r.Context(), history.ClampLimit(limit))
	if err != nil {
		h.logger.Error("list batch history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list batches")
		return
	}
	if runs == nil {
		runs = []history.BatchRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// CancelJob handles DELETE /api/jobs/{jobID}.
func (h *AdminBatchesHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job id required")
		return
	}
	if !h.service.Cancel(jobID) {
		writeError(w, http.StatusNotFound, "job not found or already finished")
		return
	}
	h.logger.Info("job cancelled", "job_id", jobID, "by", middleware.AdminSubject(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// PutList handles PUT /api/lists/{name}. The body is newline-delimited
// numbers and replaces any list with the same name.
func (h *AdminBatchesHandler) PutList(w http.ResponseWriter, r *http.Request) {
	if h.lists == nil {
		writeError(w, http.StatusNotImplemented, "list uploads are not configured")
		return
	}
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if err := recipients.ValidateName(name); err != nil {
		writeError(w, http.StatusBadRequest, "invalid list name")
		return
	}
	if !h.parser.IsListFile(name) {
		writeError(w, http.StatusBadRequest, "list name must use a recognized extension")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxListUpload))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "list too large")
		return
	}
	numbers, err := recipients.ReadNumbers(bytes.NewReader(data))
	if err != nil || len(numbers) == 0 {
		writeError(w, http.StatusBadRequest, "list must contain at least one number")
		return
	}
	if err := h.lists.Put(r.Context(), name, bytes.NewReader(data)); err != nil {
		h.logger.Error("list upload failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store list")
		return
	}

	h.logger.Info("list uploaded", "name", name, "numbers", len(numbers), "by", middleware.AdminSubject(r.Context()))
	writeJSON(w, http.StatusCreated, map[string]any{"name": name, "numbers": len(numbers)})
}
