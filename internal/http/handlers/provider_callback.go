package handlers

import (
	"net/http"

	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

// ProviderCallbackHandler receives ThaiBulkSMS status callbacks. The
// provider sends its fields as query parameters; they are only logged.
type ProviderCallbackHandler struct {
	logger *logging.Logger
}

func NewProviderCallbackHandler(logger *logging.Logger) *ProviderCallbackHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ProviderCallbackHandler{logger: logger}
}

func (h *ProviderCallbackHandler) Handle(w http.ResponseWriter, r *http.Request) {
	params := make(map[string]any, len(r.URL.Query()))
	for key, values := range r.URL.Query() {
		if len(values) == 1 {
			params[key] = values[0]
		} else {
			params[key] = values
		}
	}
	h.logger.Info("provider callback received", "params", params)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}
