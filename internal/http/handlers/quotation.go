package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/wolfman30/sms-dispatch-gateway/internal/quotation"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

const maxQuotationForm = 1 << 20

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// QuotationHandler renders a PDF quotation from a posted form.
type QuotationHandler struct {
	renderer   *quotation.Renderer
	defaultVAT float64
	logger     *logging.Logger
	now        func() time.Time
}

func NewQuotationHandler(renderer *quotation.Renderer, defaultVAT float64, logger *logging.Logger) *QuotationHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &QuotationHandler{renderer: renderer, defaultVAT: defaultVAT, logger: logger, now: time.Now}
}

func (h *QuotationHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQuotationForm)
	if err := r.ParseMultipartForm(maxQuotationForm); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	q, err := quotation.FromForm(r.Form, h.defaultVAT, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, q); err != nil {
		if errors.Is(err, quotation.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("quotation render failed", "number", q.Number, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render quotation")
		return
	}

	filename := unsafeFilename.ReplaceAllString(q.Number, "_")
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="quotation-%s.pdf"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
