package http

import (
	"net/http"

	"sfinapp/internal/core"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	// A client that is already current skips the list query entirely.
	if r.Header.Get(headerIfNoneMatch) != "" {
		v, err := s.transactions.Version(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if notModified(r, v) {
			setVersionHeaders(w, v)
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	items, v, err := s.transactions.GetAllVersioned(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	setVersionHeaders(w, v)
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.transactions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleTransactionDescriptions(w http.ResponseWriter, r *http.Request) {
	descriptions, err := s.transactions.GetAllDescriptions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, descriptions)
}

func (s *Server) handleTransactionSkeleton(w http.ResponseWriter, r *http.Request) {
	skeleton, err := s.transactions.Skeleton(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, skeleton)
}

func (s *Server) handleTransactionVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.transactions.Version(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeVersioned(w, r, v, func() (any, error) { return versionResponse{Version: v}, nil })
}

// handleCreateTransaction responds with the bare new id.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.transactions.Create(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, id)
}

// handleCreateTransactionBatch takes a JSON array and responds with the new
// ids in input order.
func (s *Server) handleCreateTransactionBatch(w http.ResponseWriter, r *http.Request) {
	var txs []core.Transaction
	if err := decodeJSON(w, r, &txs); err != nil {
		writeError(w, r, err)
		return
	}
	ids, err := s.transactions.CreateBatch(r.Context(), txs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ids)
}

// handleUpdateTransaction takes the id from the path; an id in the body is
// ignored.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var tx core.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.transactions.Update(r.Context(), id, tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.transactions.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
