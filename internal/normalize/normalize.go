// Package normalize maps an upstream scorer's loosely shaped response into one
// canonical match. Keys may arrive in snake_case, camelCase or legacy spellings;
// the alias table decides which one wins.
package normalize

import (
	"encoding/json"
	"sort"

	"github.com/jonathan/resume-matcher/internal/coerce"
	"github.com/jonathan/resume-matcher/internal/types"
)

// Match is a normalized scorer response
type Match struct {
	Score                float64
	MatchedSkills        []string
	MissingSkills        []string
	EmbeddingSimilarity  float64
	ScoreBreakdown       types.Breakdown
	ScoringConfigVersion *int // nil when the payload carries no usable version
	MissingMustHave      []string
	MissingNiceToHave    []string
	Explanation          types.Explanation
	Trace                *types.Trace

	// Sources records the payload key that fed each logical field
	Sources map[Field]string
}

// Normalize maps raw with the default alias table
func Normalize(raw map[string]any) *Match {
	return NormalizeWith(DefaultAliases, raw)
}

// NormalizeWith maps raw using a custom alias table. It never fails: absent or
// unusable values fall back to 0, an empty list, an empty map or nil.
func NormalizeWith(table AliasTable, raw map[string]any) *Match {
	m := &Match{
		MatchedSkills:     []string{},
		MissingSkills:     []string{},
		ScoreBreakdown:    types.Breakdown{},
		MissingMustHave:   []string{},
		MissingNiceToHave: []string{},
		Sources:           map[Field]string{},
	}

	lookup := func(field Field) (any, bool) {
		v, key, ok := table.Lookup(raw, field)
		if ok {
			m.Sources[field] = key
		}
		return v, ok
	}

	if v, ok := lookup(FieldScore); ok {
		if f, ok := coerce.Float(v); ok {
			m.Score = coerce.Clamp01(f)
		}
	}
	if v, ok := lookup(FieldMatchedSkills); ok {
		m.MatchedSkills = coerce.Strings(v)
	}
	if v, ok := lookup(FieldMissingSkills); ok {
		m.MissingSkills = coerce.Strings(v)
	}
	if v, ok := lookup(FieldEmbeddingSimilarity); ok {
		if f, ok := coerce.Float(v); ok {
			m.EmbeddingSimilarity = coerce.Clamp01(f)
		}
	}
	if v, ok := lookup(FieldScoreBreakdown); ok {
		if bm, ok := coerce.Map(v); ok {
			m.ScoreBreakdown = breakdown(bm)
		}
	}
	if v, ok := lookup(FieldScoringConfigVersion); ok {
		if version, ok := coerce.Int(v); ok && version >= 0 {
			m.ScoringConfigVersion = &version
		}
	}
	if v, ok := lookup(FieldMissingMustHave); ok {
		m.MissingMustHave = coerce.Strings(v)
	}
	if v, ok := lookup(FieldMissingNiceToHave); ok {
		m.MissingNiceToHave = coerce.Strings(v)
	}
	if v, ok := lookup(FieldTrace); ok {
		m.Trace = decodeTrace(v)
	}

	explanationRaw, _ := lookup(FieldExplanation)
	notesRaw, hasNotes := lookup(FieldNotes)
	m.Explanation = decodeExplanation(explanationRaw)
	m.enrich(notesRaw, hasNotes)

	return m
}

// enrich backfills explanation fields from top-level siblings. A field the
// upstream explanation already set is left alone, including one whose value did
// not fit the typed field and was kept in Extra.
func (m *Match) enrich(notesRaw any, hasNotes bool) {
	e := &m.Explanation
	if e.Source == "" && !upstreamHas(e, "source") {
		e.Source = types.SourceMatcher
	}
	if e.Notes == nil && hasNotes && !upstreamHas(e, "notes") {
		e.Notes = coerce.Strings(notesRaw)
	}
	if e.MissingSkills == nil && !upstreamHas(e, "missing_skills", "missingSkills") {
		e.MissingSkills = append([]string{}, m.MissingSkills...)
	}
	if e.EmbeddingSimilarity == nil && !upstreamHas(e, "embedding_similarity", "embeddingSimilarity") {
		sim := m.EmbeddingSimilarity
		e.EmbeddingSimilarity = &sim
	}
	if e.MissingMustHave == nil && !upstreamHas(e, "missing_must_have", "missingMustHave") {
		if _, ok := m.Sources[FieldMissingMustHave]; ok {
			e.MissingMustHave = append([]string{}, m.MissingMustHave...)
		}
	}
	if e.MissingNiceToHave == nil && !upstreamHas(e, "missing_nice_to_have", "missingNiceToHave") {
		if _, ok := m.Sources[FieldMissingNiceToHave]; ok {
			e.MissingNiceToHave = append([]string{}, m.MissingNiceToHave...)
		}
	}
}

func upstreamHas(e *types.Explanation, keys ...string) bool {
	for _, k := range keys {
		if _, ok := e.Extra[k]; ok {
			return true
		}
	}
	return false
}

// Record converts the normalized match into a record for the given key
func (m *Match) Record(key types.MatchKey) *types.MatchRecord {
	rec := &types.MatchRecord{
		JobID:               key.JobID,
		ResumeID:            key.ResumeID,
		Score:               m.Score,
		MatchedSkills:       m.MatchedSkills,
		MissingSkills:       m.MissingSkills,
		EmbeddingSimilarity: m.EmbeddingSimilarity,
		Explanation:         m.Explanation,
		Trace:               m.Trace,
	}
	if len(m.ScoreBreakdown) > 0 {
		rec.ScoreBreakdown = m.ScoreBreakdown
	}
	if m.ScoringConfigVersion != nil {
		rec.ScoringConfigVersion = *m.ScoringConfigVersion
	}
	return rec
}

// SourceKeys returns the provenance map as plain strings, sorted by field, for logging
func (m *Match) SourceKeys() []string {
	fields := make([]string, 0, len(m.Sources))
	for f, key := range m.Sources {
		fields = append(fields, string(f)+"="+key)
	}
	sort.Strings(fields)
	return fields
}

func decodeExplanation(v any) types.Explanation {
	switch val := v.(type) {
	case map[string]any:
		e, err := types.ExplanationFromMap(val)
		if err != nil {
			return types.Explanation{}
		}
		return e
	case string:
		if s := coerce.String(val); s != "" {
			return types.Explanation{Notes: []string{s}}
		}
	}
	return types.Explanation{}
}

func decodeTrace(v any) *types.Trace {
	tm, ok := coerce.Map(v)
	if !ok {
		return nil
	}
	data, err := json.Marshal(tm)
	if err != nil {
		return nil
	}
	var tr types.Trace
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil
	}
	return &tr
}

// breakdown keeps the nesting of an upstream score map, coercing leaves to
// float64 and dropping values that are neither numeric nor a non-empty map
func breakdown(in map[string]any) types.Breakdown {
	out := types.Breakdown{}
	for k, v := range in {
		if nested, ok := coerce.Map(v); ok {
			if sub := breakdown(nested); len(sub) > 0 {
				out[k] = map[string]any(sub)
			}
			continue
		}
		if f, ok := coerce.Float(v); ok {
			out[k] = f
		}
	}
	return out
}
