package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/noolite-core/internal/bulb"
)

// Envelope is the JSON body of every bulb and location endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// Failure reasons reported in Envelope.Reason.
const (
	ReasonNotFound           = "not_found"
	ReasonNoChannelAvailable = "no_channel_available"
	ReasonDeviceError        = "device_error"
	ReasonValidation         = "validation_rejected"
	ReasonBadRequest         = "bad_request"
	ReasonError              = "error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeSuccess writes {"success": true, "data": data}. A nil data is
// omitted.
func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// writeFailure writes {"success": false, "reason": reason, "message": message}.
func writeFailure(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, Envelope{Success: false, Reason: reason, Message: message})
}

// writeNotFound writes a 404 not_found envelope.
func writeNotFound(w http.ResponseWriter) {
	writeFailure(w, http.StatusNotFound, ReasonNotFound, "")
}

// writeInternalError writes a 500 envelope.
func writeInternalError(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusInternalServerError, ReasonError, message)
}

// writeBulbResult writes the outcome of a registry operation on one bulb.
//
//	nil                  200 success, data [bulb]
//	validation rejected  200 success with the unchanged bulb, 400 when strict
//	not found            404
//	device error         502, data [persisted bulb]
//	serialization        422 reason "error"
//	no channel           409
func (s *Server) writeBulbResult(w http.ResponseWriter, b *bulb.Bulb, err error) {
	switch {
	case err == nil:
		writeSuccess(w, []*bulb.Bulb{b})

	case errors.Is(err, bulb.ErrValidationRejected):
		if s.cfg.StrictValidation {
			writeFailure(w, http.StatusBadRequest, ReasonValidation, err.Error())
			return
		}
		writeSuccess(w, []*bulb.Bulb{b})

	case errors.Is(err, bulb.ErrNotFound):
		writeNotFound(w)

	case errors.Is(err, bulb.ErrDevice):
		env := Envelope{Success: false, Reason: ReasonDeviceError, Message: err.Error()}
		if b != nil {
			env.Data = []*bulb.Bulb{b}
		}
		writeJSON(w, http.StatusBadGateway, env)

	case errors.Is(err, bulb.ErrSerialization):
		writeFailure(w, http.StatusUnprocessableEntity, ReasonError, err.Error())

	case errors.Is(err, bulb.ErrNoChannelAvailable):
		writeFailure(w, http.StatusConflict, ReasonNoChannelAvailable, "")

	default:
		s.logger.Error("bulb operation failed", "error", err)
		writeInternalError(w, "internal error")
	}
}
