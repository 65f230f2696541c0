// Package schemas embeds the JSON Schema documents that describe the engine's
// persisted and wire-level payloads.
package schemas

import "embed"

// Schema file names
const (
	MatchRecord    = "match_record.schema.json"
	ScorerResponse = "scorer_response.schema.json"
	ScoringConfig  = "scoring_config.schema.json"
	ScorerRequest  = "scorer_request.schema.json"
)

// FS holds every *.schema.json file in this directory
//
//go:embed *.schema.json
var FS embed.FS

// Names lists the embedded schema files
func Names() []string {
	return []string{MatchRecord, ScorerResponse, ScoringConfig, ScorerRequest}
}
