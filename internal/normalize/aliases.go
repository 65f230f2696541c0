package normalize

import (
	"fmt"
	"sort"
)

// Field is a logical field of a normalized match
type Field string

// Logical fields read from an upstream scorer payload
const (
	FieldScore                Field = "score"
	FieldMatchedSkills        Field = "matched_skills"
	FieldMissingSkills        Field = "missing_skills"
	FieldEmbeddingSimilarity  Field = "embedding_similarity"
	FieldScoreBreakdown       Field = "score_breakdown"
	FieldScoringConfigVersion Field = "scoring_config_version"
	FieldMissingMustHave      Field = "missing_must_have"
	FieldMissingNiceToHave    Field = "missing_nice_to_have"
	FieldExplanation          Field = "explanation"
	FieldTrace                Field = "trace"
	FieldNotes                Field = "notes"
)

// AliasTable lists, for each logical field, the payload keys to try in priority order
type AliasTable map[Field][]string

// DefaultAliases is snake_case first, then camelCase, then legacy names
var DefaultAliases = AliasTable{
	FieldScore:                {"match_score", "matchScore", "score"},
	FieldMatchedSkills:        {"matched_skills", "matchedSkills"},
	FieldMissingSkills:        {"missing_skills", "missingSkills", "critical_skills", "criticalSkills"},
	FieldEmbeddingSimilarity:  {"embedding_similarity", "embeddingSimilarity"},
	FieldScoreBreakdown:       {"score_breakdown", "scoreBreakdown"},
	FieldScoringConfigVersion: {"scoring_config_version", "scoringConfigVersion"},
	FieldMissingMustHave:      {"missing_must_have", "missingMustHave"},
	FieldMissingNiceToHave:    {"missing_nice_to_have", "missingNiceToHave"},
	FieldExplanation:          {"explanation"},
	FieldTrace:                {"trace"},
	FieldNotes:                {"notes"},
}

// Lookup returns the value of the first alias present with a non-null value,
// along with the key it was found under
func (t AliasTable) Lookup(m map[string]any, field Field) (any, string, bool) {
	for _, key := range t[field] {
		if v, ok := m[key]; ok && v != nil {
			return v, key, true
		}
	}
	return nil, "", false
}

// Fields returns the table's logical fields in sorted order
func (t AliasTable) Fields() []Field {
	fields := make([]Field, 0, len(t))
	for f := range t {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Validate checks that every field has at least one alias and that no payload
// key is claimed by two fields
func (t AliasTable) Validate() error {
	owner := make(map[string]Field)
	for _, field := range t.Fields() {
		aliases := t[field]
		if len(aliases) == 0 {
			return fmt.Errorf("alias table: field %q has no aliases", field)
		}
		for _, key := range aliases {
			if prev, ok := owner[key]; ok && prev != field {
				return fmt.Errorf("alias table: key %q claimed by %q and %q", key, prev, field)
			}
			owner[key] = field
		}
	}
	return nil
}
