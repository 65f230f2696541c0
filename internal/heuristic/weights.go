package heuristic

// Default feature weights
const (
	DefaultSkillsWeight     = 0.6
	DefaultExperienceWeight = 0.25
	DefaultLocationWeight   = 0.1
	DefaultTagsWeight       = 0.05
)

// Weights are the relative importance of each feature. They need not sum to 1.
type Weights struct {
	Skills     float64 `json:"skills" mapstructure:"skills"`
	Experience float64 `json:"experience" mapstructure:"experience"`
	Location   float64 `json:"location" mapstructure:"location"`
	Tags       float64 `json:"tags" mapstructure:"tags"`
}

// DefaultWeights returns 0.6/0.25/0.1/0.05
func DefaultWeights() Weights {
	return Weights{
		Skills:     DefaultSkillsWeight,
		Experience: DefaultExperienceWeight,
		Location:   DefaultLocationWeight,
		Tags:       DefaultTagsWeight,
	}
}

// Sum returns the total of all weights
func (w Weights) Sum() float64 {
	return w.Skills + w.Experience + w.Location + w.Tags
}

// Normalized rescales the weights to sum to 1. Negative weights count as 0;
// when nothing positive remains the defaults are used.
func (w Weights) Normalized() Weights {
	w.Skills = nonNegative(w.Skills)
	w.Experience = nonNegative(w.Experience)
	w.Location = nonNegative(w.Location)
	w.Tags = nonNegative(w.Tags)

	sum := w.Sum()
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Skills:     w.Skills / sum,
		Experience: w.Experience / sum,
		Location:   w.Location / sum,
		Tags:       w.Tags / sum,
	}
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
