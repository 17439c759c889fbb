package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"sfinapp/internal/core"
	applog "sfinapp/internal/log"
)

const (
	headerETag        = "ETag"
	headerVersion     = "X-Version"
	headerIfNoneMatch = "If-None-Match"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Details []core.FieldError `json:"details,omitempty"`
}

type versionResponse struct {
	Version int64 `json:"version"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", applog.FieldError, err)
	}
}

// writeError maps domain errors to status codes. Internal errors are logged
// and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: core.ErrValidation.Error(), Details: verr.Details})
	case errors.Is(err, core.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrConflict):
		logger.WarnContext(ctx, "Request conflicts with stored data",
			applog.FieldErrorType, applog.ErrorTypeConflict, applog.FieldError, err)
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		logger.LogError(ctx, "Request failed", err, applog.ErrorTypeInternal, r.Method+" "+r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func etag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

func setVersionHeaders(w http.ResponseWriter, version int64) {
	w.Header().Set(headerETag, etag(version))
	w.Header().Set(headerVersion, strconv.FormatInt(version, 10))
}

// notModified reports whether If-None-Match already names version. Weak
// validators compare equal to strong ones.
func notModified(r *http.Request, version int64) bool {
	header := r.Header.Get(headerIfNoneMatch)
	if header == "" {
		return false
	}
	want := etag(version)
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == want {
			return true
		}
	}
	return false
}

// writeVersioned answers a cacheable GET: 304 when the client is current,
// otherwise body() is rendered with the version headers.
func writeVersioned(w http.ResponseWriter, r *http.Request, version int64, body func() (any, error)) {
	setVersionHeaders(w, version)
	if notModified(r, version) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	v, err := body()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
