package recommend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/metrics"
)

// InteractionVector maps item id to the accumulated weight of one user.
type InteractionVector map[int64]float64

// InteractionMatrix maps user id to that user's vector. Rows only exist for
// users with at least one counted event.
type InteractionMatrix map[int64]InteractionVector

// Users returns the row ids in ascending order.
func (m InteractionMatrix) Users() []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MatrixQuery selects the universe of a build. Nil id slices are derived from
// the user directory and item catalog; a zero Since falls back to the
// configured recency window.
type MatrixQuery struct {
	UserIDs []int64
	ItemIDs []int64
	Since   time.Time
}

// MatrixBuilder aggregates engagement events into an InteractionMatrix.
// Built matrices are shared between callers and must be treated as read-only.
type MatrixBuilder struct {
	cfg    Config
	events EventStore
	users  UserDirectory
	items  ItemCatalog
	cache  MatrixCache
	log    zerolog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewMatrixBuilder creates a builder. cache may be nil.
func NewMatrixBuilder(cfg Config, events EventStore, users UserDirectory, items ItemCatalog, cache MatrixCache, logger zerolog.Logger) *MatrixBuilder {
	return &MatrixBuilder{
		cfg:    cfg,
		events: events,
		users:  users,
		items:  items,
		cache:  cache,
		log:    logger.With().Str("component", "matrix").Logger(),
		now:    time.Now,
	}
}

// Build returns the interaction matrix for the query's universe. Empty
// universes produce an empty matrix.
func (b *MatrixBuilder) Build(ctx context.Context, q MatrixQuery) (InteractionMatrix, error) {
	userIDs := q.UserIDs
	if userIDs == nil {
		ids, err := b.users.ListUserIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list user ids: %w", err)
		}
		userIDs = ids
	}
	itemIDs := q.ItemIDs
	if itemIDs == nil {
		ids, err := b.items.ListItemIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list item ids: %w", err)
		}
		itemIDs = ids
	}
	if len(userIDs) == 0 || len(itemIDs) == 0 {
		return InteractionMatrix{}, nil
	}

	since := q.Since
	if since.IsZero() && b.cfg.RecencyWindow > 0 {
		// truncated so that builds within the same hour share a cache key
		since = b.now().Add(-b.cfg.RecencyWindow).Truncate(time.Hour)
	}

	users := sortedUnique(userIDs)
	items := sortedUnique(itemIDs)
	key := matrixKey(users, items, since, b.cfg.Accumulation)

	// Detached from the caller that starts it. Each caller stops waiting
	// when its own ctx ends.
	bctx := context.WithoutCancel(ctx)
	ch := b.group.DoChan(key, func() (any, error) {
		if b.cache != nil {
			m, ok, err := b.cache.GetMatrix(bctx, key)
			if err != nil {
				b.log.Warn().Err(err).Msg("matrix cache get failed")
			} else if ok {
				return m, nil
			}
		}

		start := time.Now()
		m, err := b.build(bctx, users, items, since)
		if err != nil {
			return nil, err
		}
		metrics.MatrixBuildDuration.Observe(time.Since(start).Seconds())

		if b.cache != nil {
			if err := b.cache.SetMatrix(bctx, key, m, b.cfg.MatrixCacheTTL); err != nil {
				b.log.Warn().Err(err).Msg("matrix cache set failed")
			}
		}
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(InteractionMatrix), nil
	}
}

func (b *MatrixBuilder) build(ctx context.Context, users, items []int64, since time.Time) (InteractionMatrix, error) {
	q := EventQuery{UserIDs: users, ItemIDs: items, Since: since}

	perKind := make([][]domain.InteractionEvent, len(domain.AllKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range domain.AllKinds {
		g.Go(func() error {
			evs, err := b.events.ListEvents(gctx, kind, q)
			if err != nil {
				return fmt.Errorf("list %s events: %w", kind, err)
			}
			perKind[i] = evs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	userSet := toSet(users)
	itemSet := toSet(items)

	type repeatKey struct {
		user, item int64
		kind       domain.InteractionKind
	}
	repeats := make(map[repeatKey]int)
	skipped := make(map[string]int)

	m := make(InteractionMatrix)
	for i, evs := range perKind {
		for _, ev := range evs {
			if ev.Kind == "" {
				ev.Kind = domain.AllKinds[i]
			}
			if reason := b.malformed(ev, userSet, itemSet, since); reason != "" {
				skipped[reason]++
				continue
			}

			k := repeatKey{ev.UserID, ev.ItemID, ev.Kind}
			n := repeats[k]
			repeats[k] = n + 1

			w := b.cfg.IntentWeights.For(ev.Kind) * b.repeatFactor(n)
			row, ok := m[ev.UserID]
			if !ok {
				row = make(InteractionVector)
				m[ev.UserID] = row
			}
			row[ev.ItemID] += w
		}
	}

	if len(skipped) > 0 {
		total := 0
		for reason, n := range skipped {
			metrics.MatrixEventsSkipped.WithLabelValues(reason).Add(float64(n))
			total += n
		}
		b.log.Debug().Int("skipped", total).Interface("reasons", skipped).Msg("skipped malformed events")
	}
	return m, nil
}

func (b *MatrixBuilder) malformed(ev domain.InteractionEvent, users, items map[int64]struct{}, since time.Time) string {
	switch {
	case ev.UserID <= 0 || ev.ItemID <= 0:
		return "invalid_id"
	case !ev.Kind.Valid():
		return "unknown_kind"
	case !contains(users, ev.UserID) || !contains(items, ev.ItemID):
		return "outside_universe"
	case !since.IsZero() && ev.CreatedAt.Before(since):
		return "stale"
	}
	return ""
}

// repeatFactor scales the n-th (0-based) repeat of a (user, item, kind) event.
func (b *MatrixBuilder) repeatFactor(n int) float64 {
	switch b.cfg.Accumulation.Policy {
	case PolicyCap:
		if n >= b.cfg.Accumulation.MaxRepeats {
			return 0
		}
		return 1
	case PolicyDecay:
		return math.Pow(b.cfg.Accumulation.DecayFactor, float64(n))
	default:
		return 1
	}
}

func matrixKey(users, items []int64, since time.Time, acc AccumulationConfig) string {
	h := sha256.New()
	writeIDs := func(ids []int64) {
		for _, id := range ids {
			h.Write([]byte(strconv.FormatInt(id, 10)))
			h.Write([]byte{','})
		}
		h.Write([]byte{'|'})
	}
	writeIDs(users)
	writeIDs(items)
	var window string
	if !since.IsZero() {
		window = strconv.FormatInt(since.Unix(), 10)
	}
	h.Write([]byte(strings.Join([]string{window, acc.Policy,
		strconv.Itoa(acc.MaxRepeats), strconv.FormatFloat(acc.DecayFactor, 'g', -1, 64)}, "|")))
	return hex.EncodeToString(h.Sum(nil))
}

func sortedUnique(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func toSet(ids []int64) map[int64]struct{} {
	s := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func contains(s map[int64]struct{}, id int64) bool {
	_, ok := s[id]
	return ok
}
