package recommend

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldError describes one rejected option.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// ValidationError is returned for malformed options.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "invalid options: " + strings.Join(msgs, "; ")
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// ValidateStruct validates s against its `validate` tags.
func ValidateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// CFOptions configures a collaborative-filtering request.
type CFOptions struct {
	Limit             int     `json:"limit" validate:"min=1,max=100"`
	MinSimilarity     float64 `json:"min_similarity" validate:"min=0,max=1"`
	MaxSimilarUsers   int     `json:"max_similar_users" validate:"min=1,max=500"`
	ExcludeInteracted bool    `json:"exclude_interacted"`
	IncludeHotScore   bool    `json:"include_hot_score"`
	HotScoreWeight    float64 `json:"hot_score_weight" validate:"min=0,max=1"`
}

// DefaultCFOptions returns the configured collaborative-filtering defaults.
func DefaultCFOptions(cfg Config) CFOptions {
	return CFOptions{
		Limit:             cfg.Collaborative.Limit,
		MinSimilarity:     cfg.Collaborative.MinSimilarity,
		MaxSimilarUsers:   cfg.Collaborative.MaxSimilarUsers,
		ExcludeInteracted: true,
		IncludeHotScore:   true,
		HotScoreWeight:    cfg.Collaborative.HotScoreWeight,
	}
}

// withDefaults fills zero Limit and MaxSimilarUsers; negative values are left
// for validation to reject.
func (o CFOptions) withDefaults(cfg Config) CFOptions {
	if o.Limit == 0 {
		o.Limit = cfg.Collaborative.Limit
	}
	if o.MaxSimilarUsers == 0 {
		o.MaxSimilarUsers = cfg.Collaborative.MaxSimilarUsers
	}
	return o
}

// MixedOptions configures a mixed recommendation request. A nil Weights uses
// the cold-start aware base profile.
type MixedOptions struct {
	Limit                    int           `json:"limit" validate:"min=0"`
	IncludeDiversity         bool          `json:"include_diversity"`
	IncludeColdStartAnalysis bool          `json:"include_cold_start_analysis"`
	Weights                  WeightProfile `json:"weights,omitempty"`
}

func (o MixedOptions) validate(cfg Config) error {
	if err := ValidateStruct(o); err != nil {
		return err
	}
	if o.Limit > cfg.Mixed.MaxLimit {
		return &ValidationError{Fields: []FieldError{{
			Field:   "Limit",
			Tag:     "max",
			Param:   fmt.Sprint(cfg.Mixed.MaxLimit),
			Message: fmt.Sprintf("Limit must be at most %d", cfg.Mixed.MaxLimit),
		}}}
	}
	if o.Weights != nil {
		if err := o.Weights.validate(); err != nil {
			return &ValidationError{Fields: []FieldError{{
				Field:   "Weights",
				Tag:     "weights",
				Message: err.Error(),
			}}}
		}
	}
	return nil
}

// Behavior is the observed engagement of a user, each rate in [0,1].
type Behavior struct {
	ClickRate           float64 `json:"click_rate" validate:"min=0,max=1"`
	EngagementRate      float64 `json:"engagement_rate" validate:"min=0,max=1"`
	DiversityPreference float64 `json:"diversity_preference" validate:"min=0,max=1"`
}
