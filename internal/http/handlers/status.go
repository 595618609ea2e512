package handlers

import (
	"fmt"
	"net/http"
	"time"
)

// StatusHandler serves the unauthenticated liveness endpoints.
type StatusHandler struct {
	started time.Time
	now     func() time.Time
}

func NewStatusHandler(started time.Time) *StatusHandler {
	return &StatusHandler{started: started, now: time.Now}
}

// Status reports process uptime.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"uptime": FormatUptime(h.now().Sub(h.started))})
}

// Index describes the service.
func (h *StatusHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"service": "SMS dispatch gateway (ThaiBulkSMS)",
	})
}

func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// FormatUptime renders whole seconds as H:MM:SS, prefixed with
// "N day, " or "N days, " once the duration passes a day.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	days := secs / 86400
	secs %= 86400
	clock := fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
	switch days {
	case 0:
		return clock
	case 1:
		return "1 day, " + clock
	default:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
}
