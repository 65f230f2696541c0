package types

// Weight keys accepted in a scoring configuration
const (
	WeightSkills     = "skills"
	WeightExperience = "experience"
	WeightEducation  = "education"
	WeightKeywords   = "keywords"
)

// WeightKeys lists the fixed weight key set in canonical order
var WeightKeys = []string{WeightSkills, WeightExperience, WeightEducation, WeightKeywords}

// ScoringConfig is a per-job weight and constraint configuration
type ScoringConfig struct {
	Weights     Weights     `json:"weights"`
	Constraints Constraints `json:"constraints"`
	Version     int         `json:"version"`
}

// Weights are percentages in [0,100] that must sum to exactly 100
type Weights struct {
	Skills     float64 `json:"skills" validate:"gte=0,lte=100"`
	Experience float64 `json:"experience" validate:"gte=0,lte=100"`
	Education  float64 `json:"education" validate:"gte=0,lte=100"`
	Keywords   float64 `json:"keywords" validate:"gte=0,lte=100"`
}

// Sum returns the total of the four weights
func (w Weights) Sum() float64 {
	return w.Skills + w.Experience + w.Education + w.Keywords
}

// Get returns the weight for a key from WeightKeys
func (w Weights) Get(key string) float64 {
	switch key {
	case WeightSkills:
		return w.Skills
	case WeightExperience:
		return w.Experience
	case WeightEducation:
		return w.Education
	case WeightKeywords:
		return w.Keywords
	}
	return 0
}

// Set assigns the weight for a key from WeightKeys; unknown keys are ignored
func (w *Weights) Set(key string, value float64) {
	switch key {
	case WeightSkills:
		w.Skills = value
	case WeightExperience:
		w.Experience = value
	case WeightEducation:
		w.Education = value
	case WeightKeywords:
		w.Keywords = value
	}
}

// Constraints narrow what a good match looks like
type Constraints struct {
	MustHaveSkills   []string `json:"must_have_skills"`
	NiceToHaveSkills []string `json:"nice_to_have_skills"`
	MinYears         *float64 `json:"min_years" validate:"omitempty,gte=0"`
}
