package http

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"sfinapp/internal/version"
)

const maxChangeLimit = 500

var changeResources = []string{version.KeyTransaction, version.KeyAccount, version.KeyTag}

// handleListChanges serves the change log, newest first. resource narrows it
// to one of transaction, account or tag.
func (s *Server) handleListChanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	resource := strings.TrimSpace(q.Get("resource"))
	if resource != "" && !slices.Contains(changeResources, resource) {
		writeError(w, r, invalidField("resource", "Value must be one of: "+strings.Join(changeResources, " "), "oneof"))
		return
	}

	limit := 100
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxChangeLimit {
			writeError(w, r, invalidField("limit", "Must be an integer between 1 and "+strconv.Itoa(maxChangeLimit), "range"))
			return
		}
		limit = n
	}

	entries, err := s.changes.ListChanges(r.Context(), resource, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
