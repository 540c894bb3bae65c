package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goalcoach/goalcoach/internal/identity"
	"github.com/goalcoach/goalcoach/internal/insights"
	"github.com/goalcoach/goalcoach/internal/model"
	"github.com/goalcoach/goalcoach/internal/repository"
)

// stream serves one live list over a WebSocket until the client leaves or
// the server stops.
func stream[T any](s *Server, kind string, observe func(context.Context) <-chan []T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, ctx, done, ok := s.accept(w, r)
		if !ok {
			return
		}
		defer s.removeClient(conn)
		defer done()

		for snap := range observe(ctx) {
			raw, err := json.Marshal(snap)
			if err != nil {
				s.logger.Printf("Failed to marshal %s snapshot: %v", kind, err)
				return
			}
			msg := Message{Type: MessageTypeSnapshot, Kind: kind, Timestamp: time.Now().UTC(), Data: raw}
			if err := s.write(conn, msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) observeConfidence(ctx context.Context) <-chan []insights.Series {
	return insights.WatchConfidence(ctx, s.repos.Journal, s.repos.Goals, time.Now())
}

func list[T any](repo *repository.Repository[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo.Owner() == "" {
			writeError(w, identity.ErrNoSession)
			return
		}
		recs, err := repo.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// put stores the record in the body. Its id must match the path; an empty
// owner is filled in with the active identity.
func put[T any](repo *repository.Repository[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo.Owner() == "" {
			writeError(w, identity.ErrNoSession)
			return
		}

		var rec T
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		id := chi.URLParam(r, "id")
		if got := repo.Kind().ID(rec); got != id {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "body id " + got + " does not match path id " + id})
			return
		}

		if err := repo.Upsert(r.Context(), rec); err != nil {
			writeError(w, err)
			return
		}
		stored, err := repo.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stored)
	}
}

func remove[T any](repo *repository.Repository[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo.Owner() == "" {
			writeError(w, identity.ErrNoSession)
			return
		}
		if err := repo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type progressRequest struct {
	Progress *int `json:"progress"`
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Progress == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "progress is required"})
		return
	}
	g, err := s.repos.Goals.UpdateProgress(r.Context(), chi.URLParam(r, "id"), *req.Progress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleClearPlaces(w http.ResponseWriter, r *http.Request) {
	if s.repos.Places.Owner() == "" {
		writeError(w, identity.ErrNoSession)
		return
	}
	if err := s.repos.Places.DeleteAllForOwner(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status   string   `json:"status"`
	Clients  int      `json:"clients"`
	Identity string   `json:"identity,omitempty"`
	Sync     string   `json:"sync,omitempty"`
	Pulling  []string `json:"pulling,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Clients:  s.ClientCount(),
		Identity: s.repos.Goals.Owner(),
	}
	if s.config.Sync != nil {
		st := s.config.Sync.State()
		resp.Sync = string(st.Phase)
		resp.Pulling = st.Owners
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, identity.ErrNoSession):
		status = http.StatusUnauthorized
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrOwnerMismatch):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrInvalid):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
