package http

import (
	"net/http"

	"sfinapp/internal/core"
)

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	v, err := s.tags.Version(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeVersioned(w, r, v, func() (any, error) { return s.tags.GetAll(r.Context()) })
}

func (s *Server) handleTagVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.tags.Version(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeVersioned(w, r, v, func() (any, error) { return versionResponse{Version: v}, nil })
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var t core.Tag
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.tags.Create(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, id)
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var t core.Tag
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.tags.Update(r.Context(), id, t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tags.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
