package handler

import "net/http"

// POST /likes/toggle
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	var req ToggleLikeRequest
	if !h.readBody(w, r, &req) {
		return
	}

	res, err := h.service.ToggleLike(r.Context(), req.UserID, req.MemeID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
