// Package scoringconfig validates and normalizes per-job scoring configurations.
//
// The owner's raw configuration is never mutated: validation produces a working
// copy, and MergeWithDefaults fills the remaining gaps. Only the merged form is
// sent onward to a scorer.
package scoringconfig

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/resume-matcher/internal/coerce"
	"github.com/jonathan/resume-matcher/internal/types"
)

// DefaultWeightValue is the weight given to any key the owner leaves out
const DefaultWeightValue = 25.0

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// DefaultWeights returns the 25/25/25/25 weight table
func DefaultWeights() types.Weights {
	return types.Weights{
		Skills:     DefaultWeightValue,
		Experience: DefaultWeightValue,
		Education:  DefaultWeightValue,
		Keywords:   DefaultWeightValue,
	}
}

// DefaultConfig returns the fully defaulted configuration
func DefaultConfig() types.ScoringConfig {
	return types.ScoringConfig{
		Weights: DefaultWeights(),
		Constraints: types.Constraints{
			MustHaveSkills:   []string{},
			NiceToHaveSkills: []string{},
		},
	}
}

// ValidateAndNormalize checks a raw configuration and returns a normalized copy.
// Numeric-looking strings are coerced and missing weights default to 25.
// A nil config is valid and yields the default weights.
func ValidateAndNormalize(raw map[string]any) (*types.ScoringConfig, error) {
	cfg := &types.ScoringConfig{Weights: DefaultWeights()}
	if raw == nil {
		return cfg, nil
	}

	if err := readWeights(raw["weights"], &cfg.Weights); err != nil {
		return nil, err
	}
	if err := checkStruct("weights", cfg.Weights); err != nil {
		return nil, err
	}
	if sum := cfg.Weights.Sum(); math.Round(sum) != 100 {
		return nil, &ValidationError{
			Code:    CodeWeightSumMismatch,
			Field:   "weights",
			Message: fmt.Sprintf("weights must sum to 100, got %g", sum),
		}
	}

	if err := readConstraints(raw["constraints"], &cfg.Constraints); err != nil {
		return nil, err
	}
	if err := checkStruct("constraints", cfg.Constraints); err != nil {
		return nil, err
	}

	if v, ok := raw["version"]; ok && v != nil {
		version, ok := coerce.Int(v)
		if !ok {
			return nil, &ValidationError{Code: CodeInvalidType, Field: "version", Message: "must be an integer"}
		}
		if version < 0 {
			return nil, &ValidationError{Code: CodeOutOfRange, Field: "version", Message: "must be non-negative"}
		}
		cfg.Version = version
	}

	return cfg, nil
}

// MergeWithDefaults returns a new config with constraint lists, minimum years and
// version defaulted. A nil config yields DefaultConfig().
func MergeWithDefaults(cfg *types.ScoringConfig) types.ScoringConfig {
	if cfg == nil {
		return DefaultConfig()
	}

	result := *cfg
	result.Constraints.MustHaveSkills = cloneOrEmpty(cfg.Constraints.MustHaveSkills)
	result.Constraints.NiceToHaveSkills = cloneOrEmpty(cfg.Constraints.NiceToHaveSkills)
	if cfg.Constraints.MinYears != nil {
		v := *cfg.Constraints.MinYears
		result.Constraints.MinYears = &v
	}
	if result.Version < 0 {
		result.Version = 0
	}
	return result
}

// Resolve validates a job's raw configuration and merges it with defaults.
// When the raw config carries no version, the job's stamped version is used.
func Resolve(raw map[string]any, jobVersion *int) (types.ScoringConfig, error) {
	cfg, err := ValidateAndNormalize(raw)
	if err != nil {
		return types.ScoringConfig{}, err
	}
	merged := MergeWithDefaults(cfg)
	if merged.Version == 0 && jobVersion != nil && *jobVersion > 0 {
		merged.Version = *jobVersion
	}
	return merged, nil
}

func readWeights(v any, weights *types.Weights) error {
	if v == nil {
		return nil
	}
	m, ok := coerce.Map(v)
	if !ok {
		return &ValidationError{Code: CodeInvalidType, Field: "weights", Message: "must be an object"}
	}
	for _, key := range types.WeightKeys {
		value, ok := m[key]
		if !ok || value == nil {
			continue
		}
		f, ok := coerce.Float(value)
		if !ok {
			return &ValidationError{
				Code:    CodeInvalidType,
				Field:   "weights." + key,
				Message: fmt.Sprintf("must be a number, got %v", value),
			}
		}
		weights.Set(key, f)
	}
	return nil
}

func readConstraints(v any, c *types.Constraints) error {
	if v == nil {
		return nil
	}
	m, ok := coerce.Map(v)
	if !ok {
		return &ValidationError{Code: CodeInvalidType, Field: "constraints", Message: "must be an object"}
	}

	c.MustHaveSkills = coerce.Strings(firstPresent(m, "must_have_skills", "mustHaveSkills"))
	c.NiceToHaveSkills = coerce.Strings(firstPresent(m, "nice_to_have_skills", "niceToHaveSkills"))

	if raw := firstPresent(m, "min_years", "minYears"); raw != nil {
		years, ok := coerce.Float(raw)
		if !ok {
			return &ValidationError{
				Code:    CodeInvalidType,
				Field:   "constraints.min_years",
				Message: fmt.Sprintf("must be a number, got %v", raw),
			}
		}
		c.MinYears = &years
	}
	return nil
}

// checkStruct runs the struct tag rules and reports the first failure as OutOfRange
func checkStruct(prefix string, s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{
			Code:    CodeOutOfRange,
			Field:   prefix + "." + fe.Field(),
			Message: fmt.Sprintf("value %v fails %s=%s", fe.Value(), fe.Tag(), fe.Param()),
		}
	}
	return &ValidationError{Code: CodeOutOfRange, Field: prefix, Message: err.Error()}
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func cloneOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
