package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/actuallystonmai/meme-recommendation-service/internal/metrics"
	"github.com/actuallystonmai/meme-recommendation-service/internal/recommend"
)

type BatchStatus string

const (
	StatusSuccess BatchStatus = "success"
	StatusFailed  BatchStatus = "failed"
)

type BatchUserResult struct {
	UserID          int64                 `json:"user_id"`
	Recommendations []recommend.Candidate `json:"recommendations,omitempty"`
	Status          BatchStatus           `json:"status"`
	Error           string                `json:"error,omitempty"`
	Message         string                `json:"message,omitempty"`
}

type BatchSummary struct {
	SuccessCount     int   `json:"success_count"`
	FailedCount      int   `json:"failed_count"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

type BatchMeta struct {
	GeneratedAt string `json:"generated_at"`
}

type BatchResponse struct {
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalUsers int               `json:"total_users"`
	Results    []BatchUserResult `json:"results"`
	Summary    BatchSummary      `json:"summary"`
	Metadata   BatchMeta         `json:"metadata"`
}

// GetBatchRecommendations generates mixed recommendations for one page of
// users. Per-user failures are reported in the results, not returned.
func (s *Service) GetBatchRecommendations(ctx context.Context, page, limit int) (*BatchResponse, error) {
	start := time.Now()

	// Fetch paginated user IDs
	userIDs, err := s.store.GetUserIDsPaginated(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch user ids: %w", err)
	}

	// Fetch total user
	totalUsers, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count user: %w", err)
	}

	// Process users concurrently with bounded worker pool
	results := make([]BatchUserResult, len(userIDs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.batchConcurrency) // semaphore

	for i, userID := range userIDs {
		wg.Add(1)
		go func(idx int, uid int64) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			results[idx] = s.processUserForBatch(ctx, uid)
		}(i, userID)
	}
	wg.Wait()

	// summary
	successCount := 0
	failedCount := 0
	for _, r := range results {
		if r.Status == StatusSuccess {
			successCount++
		} else {
			failedCount++
		}
		metrics.BatchUsers.WithLabelValues(string(r.Status)).Inc()
	}

	return &BatchResponse{
		Page:       page,
		Limit:      limit,
		TotalUsers: totalUsers,
		Results:    results,
		Summary: BatchSummary{
			SuccessCount:     successCount,
			FailedCount:      failedCount,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
		Metadata: BatchMeta{
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// Generates recommendations for a single user, capturing errors.
func (s *Service) processUserForBatch(ctx context.Context, userID int64) BatchUserResult {
	resp, err := s.GetRecommendations(ctx, userID, recommend.MixedOptions{Limit: batchRecLimit})
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("batch recommendation failed")
		code, msg := categorizeError(err)
		return BatchUserResult{
			UserID:  userID,
			Status:  StatusFailed,
			Error:   code,
			Message: msg,
		}
	}

	return BatchUserResult{
		UserID:          userID,
		Recommendations: resp.Result.Recommendations,
		Status:          StatusSuccess,
	}
}
