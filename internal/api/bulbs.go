package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/noolite-core/internal/bulb"
)

// handleListBulbs returns every decodable bulb in id order. Records that
// fail to decode are skipped and logged by the registry.
func (s *Server) handleListBulbs(w http.ResponseWriter, r *http.Request) {
	list, err := s.registry.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list bulbs", "error", err)
		writeInternalError(w, "failed to list bulbs")
		return
	}
	writeSuccess(w, list.Bulbs)
}

// handleCreateBulb creates a bulb on the lowest free channel.
//
// Parameters: name, location, type (query, form, JSON body or "data").
func (s *Server) handleCreateBulb(w http.ResponseWriter, r *http.Request) {
	p, err := requestParams(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, ReasonBadRequest, err.Error())
		return
	}

	b, err := s.registry.Create(r.Context(), p.fields())
	s.writeBulbResult(w, b, err)
}

// handleGetBulb returns one bulb.
func (s *Server) handleGetBulb(w http.ResponseWriter, r *http.Request) {
	id, ok := bulbID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	b, err := s.registry.Get(r.Context(), id)
	s.writeBulbResult(w, b, err)
}

// handleUpdateBulb overwrites name, location and type when supplied.
func (s *Server) handleUpdateBulb(w http.ResponseWriter, r *http.Request) {
	id, ok := bulbID(r)
	if !ok {
		writeNotFound(w)
		return
	}
	p, err := requestParams(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, ReasonBadRequest, err.Error())
		return
	}

	b, err := s.registry.Update(r.Context(), id, p.fields())
	s.writeBulbResult(w, b, err)
}

// handleSetState switches a bulb on or off.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	id, ok := bulbID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	b, err := s.registry.SetState(r.Context(), id, chi.URLParam(r, "state"), smooth(r))
	s.writeBulbResult(w, b, err)
}

// handleToggle flips a bulb's state.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := bulbID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	b, err := s.registry.Toggle(r.Context(), id, smooth(r))
	s.writeBulbResult(w, b, err)
}

// handleSetBrightness sets brightness 0..100. A non-integer value is
// treated like an out-of-range one.
func (s *Server) handleSetBrightness(w http.ResponseWriter, r *http.Request) {
	id, ok := bulbID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	level, err := strconv.Atoi(chi.URLParam(r, "brightness"))
	if err != nil {
		level = bulb.MinBrightness - 1
	}

	b, err := s.registry.SetBrightness(r.Context(), id, level)
	s.writeBulbResult(w, b, err)
}

// handleSetColor sets a six hex digit color.
func (s *Server) handleSetColor(w http.ResponseWriter, r *http.Request) {
	id, ok := bulbID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	b, err := s.registry.SetColor(r.Context(), id, chi.URLParam(r, "color"))
	s.writeBulbResult(w, b, err)
}

// handleCommand sends an effect command (roll, stop, switch_color,
// switch_mode, switch_speed).
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := bulbID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	b, err := s.registry.Command(r.Context(), id, chi.URLParam(r, "command"))
	s.writeBulbResult(w, b, err)
}

// handleBind pairs a bulb with its channel (LINK /bulbs/{id}/).
func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	id, ok := bulbID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	b, err := s.registry.Bind(r.Context(), id)
	s.writeBulbResult(w, b, err)
}

// handleUnbind unpairs a bulb (UNLINK /bulbs/{id}/).
func (s *Server) handleUnbind(w http.ResponseWriter, r *http.Request) {
	id, ok := bulbID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	b, err := s.registry.Unbind(r.Context(), id)
	s.writeBulbResult(w, b, err)
}

// handleDeleteBulb removes one bulb and frees its channel.
func (s *Server) handleDeleteBulb(w http.ResponseWriter, r *http.Request) {
	id, ok := bulbID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	if err := s.registry.Delete(r.Context(), id); err != nil {
		s.writeBulbResult(w, nil, err)
		return
	}
	writeSuccess(w, nil)
}

// handleDeleteAllBulbs removes every bulb and resets the id counter.
func (s *Server) handleDeleteAllBulbs(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeleteAll(r.Context()); err != nil {
		s.writeBulbResult(w, nil, err)
		return
	}
	writeSuccess(w, nil)
}
