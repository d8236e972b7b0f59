package handler

import (
	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/recommend"
)

type RecommendationResponse struct {
	UserID int64 `json:"user_id"`
	*recommend.RecommendationResult
	Metadata domain.RecommendationMeta `json:"metadata"`
}

type CollaborativeResponse struct {
	UserID          int64                     `json:"user_id"`
	Algorithm       string                    `json:"algorithm"`
	Recommendations []recommend.Candidate     `json:"recommendations"`
	Options         recommend.CFOptions       `json:"options"`
	Metadata        domain.RecommendationMeta `json:"metadata"`
}

type ToggleLikeRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
	MemeID int64 `json:"meme_id" validate:"required,gt=0"`
}

type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Fields  []recommend.FieldError `json:"fields,omitempty"`
}
