package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/recommend"
	"github.com/actuallystonmai/meme-recommendation-service/internal/service"
)

type Handler struct {
	service *service.Service
	cfg     recommend.Config
	log     zerolog.Logger
}

// NewHandler creates the HTTP handlers. cfg supplies the defaults of
// collaborative-filtering query options.
func NewHandler(svc *service.Service, cfg recommend.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		service: svc,
		cfg:     cfg,
		log:     logger.With().Str("component", "handler").Logger(),
	}
}

// write JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writes JSON error response.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}

// writeServiceError maps an error returned by the service to a response.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *recommend.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_options",
			Message: verr.Error(),
			Fields:  verr.Fields,
		})
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", "User does not exist")
	case errors.Is(err, domain.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "meme_not_found", "Meme does not exist")
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request_timeout",
			"Request timed out, please try again")
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// readBody decodes and validates a JSON request body into dst. On failure it
// writes the error response and returns false.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be a valid JSON object")
		return false
	}
	if err := recommend.ValidateStruct(dst); err != nil {
		h.writeServiceError(w, r, err)
		return false
	}
	return true
}
