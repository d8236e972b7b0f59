package recommend

import (
	"context"

	"github.com/rs/zerolog"
)

// Cold-start reasons.
const (
	ReasonUnauthenticated         = "unauthenticated"
	ReasonNoPreferences           = "no_preferences"
	ReasonInsufficientPreferences = "insufficient_preferences"
	ReasonPreferencesUnavailable  = "preferences_unavailable"
	ReasonSufficientPreferences   = "sufficient_preferences"
)

type ColdStartStatus struct {
	IsColdStart      bool   `json:"is_cold_start"`
	InteractionCount int    `json:"interaction_count"`
	PreferenceCount  int    `json:"preference_count"`
	Reason           string `json:"reason"`
}

// coldStartClassifier decides whether a user has enough personalization
// signal. Shared by the mixed engine and the strategy adjuster.
type coldStartClassifier struct {
	cfg   Config
	users UserDirectory
	prefs TagPreferenceCalculator
	log   zerolog.Logger
}

// authenticated reports whether userID resolves to a known user. Lookup
// failures are logged and treated as anonymous.
func (c *coldStartClassifier) authenticated(ctx context.Context, userID int64) bool {
	if userID <= 0 {
		return false
	}
	ok, err := c.users.UserExists(ctx, userID)
	if err != nil {
		c.log.Warn().Err(err).Int64("user_id", userID).Msg("user lookup failed, treating as anonymous")
		return false
	}
	return ok
}

func (c *coldStartClassifier) classify(ctx context.Context, userID int64, authenticated bool) (ColdStartStatus, PreferenceProfile) {
	if !authenticated {
		return ColdStartStatus{IsColdStart: true, Reason: ReasonUnauthenticated}, PreferenceProfile{}
	}

	profile, err := c.prefs.TagPreferences(ctx, userID)
	if err != nil {
		c.log.Warn().Err(err).Int64("user_id", userID).Msg("tag preferences unavailable")
		return ColdStartStatus{IsColdStart: true, Reason: ReasonPreferencesUnavailable}, PreferenceProfile{}
	}

	n := 0
	for _, w := range profile.Preferences {
		if w > 0 {
			n++
		}
	}
	status := ColdStartStatus{
		InteractionCount: profile.InteractionCount,
		PreferenceCount:  n,
		Reason:           ReasonSufficientPreferences,
	}
	switch {
	case n == 0:
		status.IsColdStart = true
		status.Reason = ReasonNoPreferences
	case n < c.cfg.ColdStart.MinPreferenceTags:
		status.IsColdStart = true
		status.Reason = ReasonInsufficientPreferences
	}
	return status, profile
}
