package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	brewmap "github.com/brewmap/brewmap/internal"
	"github.com/brewmap/brewmap/internal/app"
)

// device extracts the caller's device ID. The favorites API is scoped per
// device; requests without the header are rejected by the service layer.
func device(r *http.Request) string {
	if vals := r.Header[deviceIDHeader]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func (s *server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := s.deps.Favorites.List(r.Context(), device(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if favs == nil {
		favs = []*brewmap.Favorite{}
	}
	writeJSON(w, http.StatusOK, favs)
}

const maxFavoriteBody = 16 << 10

func (s *server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFavoriteBody)

	var req app.AddFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body: "+err.Error()))
		return
	}

	fav, err := s.deps.Favorites.Add(r.Context(), device(r), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fav)
}

func (s *server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Favorites.Remove(r.Context(), device(r), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
