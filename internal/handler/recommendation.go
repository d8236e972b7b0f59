package handler

import (
	"net/http"
	"time"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/recommend"
)

const algorithmCollaborative = "collaborative_filtering"

// GET /users/{userID}/recommendations
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	var opts recommend.MixedOptions
	if opts.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	if opts.IncludeDiversity, err = queryBool(r, "diversity", false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	if opts.IncludeColdStartAnalysis, err = queryBool(r, "cold_start", false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	resp, err := h.service.GetRecommendations(r.Context(), userID, opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RecommendationResponse{
		UserID:               userID,
		RecommendationResult: resp.Result,
		Metadata: domain.RecommendationMeta{
			CacheHit:    resp.CacheHit,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			TotalCount:  len(resp.Result.Recommendations),
		},
	})
}

// GET /users/{userID}/recommendations/collaborative
func (h *Handler) GetCollaborative(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	opts, social, err := h.parseCFOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	cands, err := h.service.GetCollaborative(r.Context(), userID, opts, social)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	algorithm := algorithmCollaborative
	if social {
		algorithm = recommend.SourceSocial
	}
	writeJSON(w, http.StatusOK, CollaborativeResponse{
		UserID:          userID,
		Algorithm:       algorithm,
		Recommendations: cands,
		Options:         opts,
		Metadata: domain.RecommendationMeta{
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			TotalCount:  len(cands),
		},
	})
}

func (h *Handler) parseCFOptions(r *http.Request) (recommend.CFOptions, bool, error) {
	opts := recommend.DefaultCFOptions(h.cfg)
	var err error
	if opts.Limit, err = queryInt(r, "limit", opts.Limit); err != nil {
		return opts, false, err
	}
	if opts.MinSimilarity, err = queryFloat(r, "min_similarity", opts.MinSimilarity); err != nil {
		return opts, false, err
	}
	if opts.MaxSimilarUsers, err = queryInt(r, "max_similar_users", opts.MaxSimilarUsers); err != nil {
		return opts, false, err
	}
	if opts.ExcludeInteracted, err = queryBool(r, "exclude_interacted", opts.ExcludeInteracted); err != nil {
		return opts, false, err
	}
	if opts.IncludeHotScore, err = queryBool(r, "include_hot_score", opts.IncludeHotScore); err != nil {
		return opts, false, err
	}
	if opts.HotScoreWeight, err = queryFloat(r, "hot_score_weight", opts.HotScoreWeight); err != nil {
		return opts, false, err
	}
	social, err := queryBool(r, "social", false)
	if err != nil {
		return opts, false, err
	}
	return opts, social, nil
}

// GET /users/{userID}/recommendations/collaborative/stats
func (h *Handler) GetCollaborativeStats(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	stats, err := h.service.GetCollaborativeStats(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /recommendations/stats
func (h *Handler) GetAlgorithmStats(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id", 0)
	if err != nil || userID < 0 {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "invalid user_id parameter")
		return
	}

	stats, err := h.service.GetAlgorithmStats(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// POST /users/{userID}/strategy
func (h *Handler) AdjustStrategy(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	var b recommend.Behavior
	if !h.readBody(w, r, &b) {
		return
	}

	adj, err := h.service.AdjustStrategy(r.Context(), userID, b)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adj)
}
