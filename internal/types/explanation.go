package types

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
)

// Explanation sources written by this engine
const (
	SourceHeuristic = "heuristic"
	SourceMatcher   = "matcher"
)

// ExplanationVariant identifies which known shape an explanation has
type ExplanationVariant string

// Known explanation variants
const (
	VariantHeuristic ExplanationVariant = "heuristic"
	VariantMatcher   ExplanationVariant = "matcher"
	VariantUnknown   ExplanationVariant = "unknown"
)

// FeatureScore is one entry of the heuristic per-feature breakdown
type FeatureScore struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail,omitempty"`
}

// Explanation is the structured, mostly schema-free reasoning attached to a match.
//
// Known fields are typed. Anything else an upstream scorer sends is kept in Extra and
// written back unchanged, so the record survives a decode/encode cycle. A nil slice or
// pointer means the field is unset, which is what the normalizer relies on to avoid
// overwriting upstream values.
type Explanation struct {
	Source              string
	Notes               []string
	MissingSkills       []string
	EmbeddingSimilarity *float64
	MissingMustHave     []string
	MissingNiceToHave   []string
	Features            map[string]FeatureScore
	Extra               map[string]json.RawMessage
}

// Variant reports the known shape of the explanation based on its source tag
func (e Explanation) Variant() ExplanationVariant {
	switch e.Source {
	case SourceHeuristic:
		return VariantHeuristic
	case SourceMatcher:
		return VariantMatcher
	default:
		return VariantUnknown
	}
}

// IsZero reports whether nothing at all is set
func (e Explanation) IsZero() bool {
	return e.Source == "" && e.Notes == nil && e.MissingSkills == nil &&
		e.EmbeddingSimilarity == nil && e.MissingMustHave == nil &&
		e.MissingNiceToHave == nil && e.Features == nil && len(e.Extra) == 0
}

// Clone returns a deep copy
func (e Explanation) Clone() Explanation {
	out := Explanation{
		Source:            e.Source,
		Notes:             slices.Clone(e.Notes),
		MissingSkills:     slices.Clone(e.MissingSkills),
		MissingMustHave:   slices.Clone(e.MissingMustHave),
		MissingNiceToHave: slices.Clone(e.MissingNiceToHave),
		Features:          maps.Clone(e.Features),
	}
	if e.EmbeddingSimilarity != nil {
		v := *e.EmbeddingSimilarity
		out.EmbeddingSimilarity = &v
	}
	if e.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(e.Extra))
		for k, v := range e.Extra {
			out.Extra[k] = slices.Clone(v)
		}
	}
	return out
}

// MarshalJSON writes known fields with snake_case keys on top of the passthrough bag
func (e Explanation) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+7)
	for k, v := range e.Extra {
		out[k] = v
	}
	if e.Source != "" {
		out["source"] = e.Source
	}
	if e.Notes != nil {
		out["notes"] = e.Notes
	}
	if e.MissingSkills != nil {
		out["missing_skills"] = e.MissingSkills
	}
	if e.EmbeddingSimilarity != nil {
		out["embedding_similarity"] = *e.EmbeddingSimilarity
	}
	if e.MissingMustHave != nil {
		out["missing_must_have"] = e.MissingMustHave
	}
	if e.MissingNiceToHave != nil {
		out["missing_nice_to_have"] = e.MissingNiceToHave
	}
	if e.Features != nil {
		out["features"] = e.Features
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts known keys in snake_case or camelCase; the rest lands in Extra
func (e *Explanation) UnmarshalJSON(data []byte) error {
	if isNullJSON(data) {
		*e = Explanation{}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Explanation
	takeField(raw, &out.Source, "source")
	if !takeField(raw, &out.Notes, "notes") {
		// a single note sent as a plain string
		var note string
		if takeField(raw, &note, "notes") {
			out.Notes = []string{note}
		}
	}
	takeField(raw, &out.MissingSkills, "missing_skills", "missingSkills")
	takeField(raw, &out.EmbeddingSimilarity, "embedding_similarity", "embeddingSimilarity")
	takeField(raw, &out.MissingMustHave, "missing_must_have", "missingMustHave")
	takeField(raw, &out.MissingNiceToHave, "missing_nice_to_have", "missingNiceToHave")
	takeField(raw, &out.Features, "features")

	if len(raw) > 0 {
		out.Extra = raw
	}
	*e = out
	return nil
}

// ExplanationFromMap converts a decoded JSON object into an Explanation
func ExplanationFromMap(m map[string]any) (Explanation, error) {
	var e Explanation
	if m == nil {
		return e, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(data, &e)
	return e, err
}

// Trace is optional diagnostic data, present only when tracing is enabled
type Trace struct {
	RequestID string
	Model     string
	LatencyMS int64
	Extra     map[string]json.RawMessage
}

// MarshalJSON writes known fields with snake_case keys on top of the passthrough bag
func (t Trace) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Extra)+3)
	for k, v := range t.Extra {
		out[k] = v
	}
	if t.RequestID != "" {
		out["request_id"] = t.RequestID
	}
	if t.Model != "" {
		out["model"] = t.Model
	}
	if t.LatencyMS != 0 {
		out["latency_ms"] = t.LatencyMS
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts known keys in snake_case or camelCase; the rest lands in Extra
func (t *Trace) UnmarshalJSON(data []byte) error {
	if isNullJSON(data) {
		*t = Trace{}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Trace
	takeField(raw, &out.RequestID, "request_id", "requestId")
	takeField(raw, &out.Model, "model")
	takeField(raw, &out.LatencyMS, "latency_ms", "latencyMs")
	if len(raw) > 0 {
		out.Extra = raw
	}
	*t = out
	return nil
}

// Clone returns a deep copy
func (t *Trace) Clone() *Trace {
	if t == nil {
		return nil
	}
	out := *t
	if t.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(t.Extra))
		for k, v := range t.Extra {
			out.Extra[k] = slices.Clone(v)
		}
	}
	return &out
}

// takeField decodes the first non-null alias present in raw into dst and removes that key.
// A value that does not fit dst stays in raw.
func takeField(raw map[string]json.RawMessage, dst any, aliases ...string) bool {
	for _, key := range aliases {
		val, ok := raw[key]
		if !ok || isNullJSON(val) {
			continue
		}
		if err := json.Unmarshal(val, dst); err != nil {
			continue
		}
		delete(raw, key)
		return true
	}
	return false
}

func isNullJSON(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
