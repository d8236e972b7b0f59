package recommend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/metrics"
)

const AlgorithmMixed = "mixed"

// SourceReport is the per-source diagnostic attached to a mixed result.
type SourceReport struct {
	Count      int    `json:"count"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type RecommendationResult struct {
	RequestID         string                  `json:"request_id"`
	Recommendations   []Candidate             `json:"recommendations"`
	Weights           WeightProfile           `json:"weights"`
	Algorithm         string                  `json:"algorithm"`
	UserAuthenticated bool                    `json:"user_authenticated"`
	ColdStartStatus   *ColdStartStatus        `json:"cold_start_status,omitempty"`
	Diversity         *DiversityMetrics       `json:"diversity,omitempty"`
	Sources           map[string]SourceReport `json:"sources"`
}

// MixedEngine fans out to every weighted source and merges their candidates.
// A failing or slow source contributes nothing; it never fails the request.
type MixedEngine struct {
	cfg       Config
	coldStart *coldStartClassifier
	items     ItemCatalog
	levels    HotScoreClassifier
	sources   map[string]Source
	breakers  map[string]*gobreaker.CircuitBreaker[[]Candidate]
	log       zerolog.Logger
}

func NewMixedEngine(cfg Config, users UserDirectory, prefs TagPreferenceCalculator, items ItemCatalog, logger zerolog.Logger, sources ...Source) *MixedEngine {
	log := logger.With().Str("component", "mixed").Logger()
	e := &MixedEngine{
		cfg:       cfg,
		coldStart: &coldStartClassifier{cfg: cfg, users: users, prefs: prefs, log: log},
		items:     items,
		sources:   make(map[string]Source, len(sources)),
		breakers:  make(map[string]*gobreaker.CircuitBreaker[[]Candidate], len(sources)),
		log:       log,
	}
	for _, s := range sources {
		e.sources[s.Name()] = s
		e.breakers[s.Name()] = newSourceBreaker(s.Name(), cfg.Breaker, log)
	}
	return e
}

// WithClassifier labels every returned candidate with its hot level.
func (e *MixedEngine) WithClassifier(c HotScoreClassifier) *MixedEngine {
	e.levels = c
	return e
}

func newSourceBreaker(name string, cfg BreakerConfig, log zerolog.Logger) *gobreaker.CircuitBreaker[[]Candidate] {
	return gobreaker.NewCircuitBreaker[[]Candidate](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// the caller going away says nothing about the source's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).
				Msg("source circuit breaker state changed")
		},
	})
}

// Recommend returns up to opts.Limit public items for userID (0 = anonymous).
// It only fails on invalid options or when ctx is cancelled.
func (e *MixedEngine) Recommend(ctx context.Context, userID int64, opts MixedOptions) (*RecommendationResult, error) {
	if err := opts.validate(e.cfg); err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit == 0 {
		limit = e.cfg.Mixed.DefaultLimit
	}

	requestID := uuid.NewString()
	log := e.log.With().Str("request_id", requestID).Int64("user_id", userID).Logger()

	authenticated := e.coldStart.authenticated(ctx, userID)
	status, _ := e.coldStart.classify(ctx, userID, authenticated)
	weights := e.weightsFor(status, opts.Weights)

	lists, reports := e.fanOut(ctx, log, userID, weights, limit*e.cfg.Mixed.CandidateMultiplier)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := e.merge(weights, lists)
	merged = e.enrich(ctx, log, merged)
	sortMerged(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	if e.levels != nil {
		for i := range merged {
			if merged[i].Item != nil {
				merged[i].HotLevel = e.levels.Level(merged[i].Item.HotScore)
			}
		}
	}

	result := &RecommendationResult{
		RequestID:         requestID,
		Recommendations:   merged,
		Weights:           weights,
		Algorithm:         AlgorithmMixed,
		UserAuthenticated: authenticated,
		Sources:           reports,
	}
	if opts.IncludeColdStartAnalysis {
		result.ColdStartStatus = &status
	}
	if opts.IncludeDiversity {
		items := make([]*domain.Item, len(merged))
		for i := range merged {
			items[i] = merged[i].Item
		}
		d := AnalyzeDiversity(items)
		result.Diversity = &d
	}

	log.Debug().Int("count", len(merged)).Bool("cold_start", status.IsColdStart).Msg("mixed recommendations generated")
	return result, nil
}

// weightsFor picks the base profile for the user, or the caller's override.
// Cold-start users never get content-based weight and always get at least
// the cold-start hot floor, whichever profile applies.
func (e *MixedEngine) weightsFor(status ColdStartStatus, override WeightProfile) WeightProfile {
	var w WeightProfile
	switch {
	case override != nil:
		w = override.Clone()
	case status.IsColdStart:
		w = e.cfg.Weights.ColdStart.Clone()
	default:
		w = e.cfg.Weights.Established.Clone()
	}
	if status.IsColdStart {
		w = w.applyColdStart(e.cfg.Strategy.ColdStartHotFloor)
	}
	return w
}

func (e *MixedEngine) fanOut(ctx context.Context, log zerolog.Logger, userID int64, weights WeightProfile, perSource int) (map[string][]Candidate, map[string]SourceReport) {
	names := make([]string, 0, len(weights))
	for _, name := range weights.Sources() {
		if _, ok := e.sources[name]; ok {
			names = append(names, name)
		}
	}

	lists := make([][]Candidate, len(names))
	reports := make([]SourceReport, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			lists[i], reports[i] = e.callSource(gctx, log, name, userID, perSource)
			return nil
		})
	}
	_ = g.Wait() // sources never return errors to the group

	outLists := make(map[string][]Candidate, len(names))
	outReports := make(map[string]SourceReport, len(names))
	for i, name := range names {
		outLists[name] = lists[i]
		outReports[name] = reports[i]
	}
	return outLists, outReports
}

func (e *MixedEngine) callSource(ctx context.Context, log zerolog.Logger, name string, userID int64, limit int) ([]Candidate, SourceReport) {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.SourceTimeout)
	defer cancel()

	start := time.Now()
	cands, err := e.breakers[name].Execute(func() ([]Candidate, error) {
		return e.sources[name].Recommend(sctx, userID, limit)
	})
	elapsed := time.Since(start)

	report := SourceReport{DurationMs: elapsed.Milliseconds()}
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = "open"
		}
		metrics.RecordSource(name, outcome, elapsed)
		log.Warn().Err(err).Str("source", name).Str("outcome", outcome).Msg("source failed, skipping")
		report.Error = err.Error()
		return nil, report
	}

	metrics.RecordSource(name, "ok", elapsed)
	report.Count = len(cands)
	return cands, report
}

// merge dedupes candidates by item id. Each source's scores are divided by
// that source's top score, then weighted and summed.
func (e *MixedEngine) merge(weights WeightProfile, lists map[string][]Candidate) []Candidate {
	byItem := make(map[int64]*Candidate)

	// sorted source order keeps tie naming and float sums stable
	for _, source := range weights.Sources() {
		cands, ok := lists[source]
		if !ok {
			continue
		}
		best := make(map[int64]Candidate, len(cands))
		var top float64
		for _, c := range cands {
			if prev, ok := best[c.ItemID]; !ok || c.Score > prev.Score {
				best[c.ItemID] = c
			}
			if c.Score > top {
				top = c.Score
			}
		}

		w := weights[source]
		ids := make([]int64, 0, len(best))
		for id := range best {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			c := best[id]
			var norm float64
			if top > 0 && c.Score > 0 {
				norm = c.Score / top
			}
			contribution := w * norm

			m, ok := byItem[id]
			if !ok {
				m = &Candidate{
					ItemID:             id,
					Source:             source,
					RecommendationType: c.RecommendationType,
					Scores:             make(map[string]float64),
				}
				byItem[id] = m
			}
			if m.Item == nil && c.Item != nil {
				m.Item = c.Item
			}
			if len(c.SimilarUsers) > 0 {
				m.SimilarUsers = append(m.SimilarUsers, c.SimilarUsers...)
			}
			// the source contributing most names the candidate
			if contribution > m.Scores[m.Source] {
				m.Source = source
				m.RecommendationType = c.RecommendationType
			}
			m.Scores[source] = contribution
			m.Score += contribution
		}
	}

	out := make([]Candidate, 0, len(byItem))
	for _, c := range byItem {
		if len(c.SimilarUsers) > 0 {
			c.SimilarUsers = sortedUnique(c.SimilarUsers)
		}
		out = append(out, *c)
	}
	return out
}

// enrich loads metadata for candidates that lack it and drops anything that
// is not public.
func (e *MixedEngine) enrich(ctx context.Context, log zerolog.Logger, cands []Candidate) []Candidate {
	var missing []int64
	for _, c := range cands {
		if c.Item == nil {
			missing = append(missing, c.ItemID)
		}
	}
	if len(missing) > 0 {
		found, err := e.items.GetItems(ctx, missing)
		if err != nil {
			log.Warn().Err(fmt.Errorf("enrich candidates: %w", err)).Int("missing", len(missing)).
				Msg("dropping candidates without metadata")
		}
		for i := range cands {
			if cands[i].Item == nil {
				cands[i].Item = found[cands[i].ItemID]
			}
		}
	}

	out := cands[:0]
	for _, c := range cands {
		if c.Item.IsPublic() {
			out = append(out, c)
		}
	}
	return out
}

// sortMerged orders by score, then hot score, then recency, then item id.
func sortMerged(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Item.HotScore != b.Item.HotScore {
			return a.Item.HotScore > b.Item.HotScore
		}
		if !a.Item.CreatedAt.Equal(b.Item.CreatedAt) {
			return a.Item.CreatedAt.After(b.Item.CreatedAt)
		}
		return a.ItemID < b.ItemID
	})
}
