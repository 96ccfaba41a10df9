package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/adlibrary/ads-spy/internal/monitoring"
	"github.com/adlibrary/ads-spy/internal/snapshot"
	"github.com/adlibrary/ads-spy/internal/sources"
	"github.com/adlibrary/ads-spy/internal/storage"
	"github.com/sirupsen/logrus"
)

// envelope is the body of every /api response.
type envelope struct {
	Success         bool        `json:"success"`
	Data            interface{} `json:"data,omitempty"`
	Error           string      `json:"error,omitempty"`
	DebugScreenshot string      `json:"debugScreenshot,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Error: message})
}

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *monitoring.ValidationError
		rateErr       *sources.RateLimitError
		fetchErr      *sources.FetchError
		noImagesErr   *snapshot.NoImagesError
	)

	body := envelope{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &validationErr), errors.Is(err, snapshot.ErrInvalidURL):
		status = http.StatusBadRequest
	case errors.As(err, &rateErr):
		status = http.StatusTooManyRequests
		if wait := time.Until(rateErr.ResetAt); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		}
	case errors.As(err, &fetchErr):
		status = http.StatusBadGateway
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &noImagesErr):
		status = http.StatusNotFound
		body.DebugScreenshot = noImagesErr.DataURL()
	}

	entry := requestLogger(r).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Errorf("Request failed: %v", err)
	} else {
		entry.Warnf("Request rejected: %v", err)
	}

	writeJSON(w, status, body)
}
