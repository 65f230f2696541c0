package heuristic

import (
	"strings"
	"time"

	"github.com/jonathan/resume-matcher/internal/types"
)

// LocationMatch describes how two locations compare
type LocationMatch string

// Location outcomes
const (
	LocationMatched  LocationMatch = "match"
	LocationUnknown  LocationMatch = "unknown"
	LocationMismatch LocationMatch = "mismatch"
)

// unknownSignal is the neutral score used when one side gives us nothing to compare
const unknownSignal = 0.5

// seniorityYears maps a seniority tag to the tenure that earns a full experience score
var seniorityYears = map[string]float64{
	"junior":    1,
	"mid":       4,
	"mid-level": 4,
	"middle":    4,
	"senior":    7,
}

// noSeniorityYears is the divisor used when the job has no seniority tag
const noSeniorityYears = 5.0

const hoursPerYear = 24 * 365.25

// ScoreSkills returns the share of required skills the candidate has, compared
// case-insensitively. Matched and missing lists keep the job's spelling and order.
func ScoreSkills(required, candidate []string) (float64, []string, []string) {
	have := make(map[string]bool, len(candidate))
	for _, skill := range candidate {
		if key := skillKey(skill); key != "" {
			have[key] = true
		}
	}

	matched := []string{}
	missing := []string{}
	seen := make(map[string]bool, len(required))
	for _, skill := range required {
		key := skillKey(skill)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if have[key] {
			matched = append(matched, strings.TrimSpace(skill))
		} else {
			missing = append(missing, strings.TrimSpace(skill))
		}
	}

	total := len(matched) + len(missing)
	if total == 0 {
		if len(have) > 0 {
			return unknownSignal, matched, missing
		}
		return 0, matched, missing
	}
	return float64(len(matched)) / float64(total), matched, missing
}

// ScoreExperience sums per-role tenure and maps it to [0,1] against the seniority
// threshold. Open-ended roles run until now; negative spans count as zero.
func ScoreExperience(entries []types.ExperienceEntry, seniority string, now time.Time) (float64, float64) {
	years := TotalYears(entries, now)

	threshold, ok := seniorityYears[strings.ToLower(strings.TrimSpace(seniority))]
	if !ok {
		threshold = noSeniorityYears
	}
	return Clamp(years / threshold), years
}

// TotalYears sums the tenure of every entry whose start date parses
func TotalYears(entries []types.ExperienceEntry, now time.Time) float64 {
	total := 0.0
	for _, entry := range entries {
		start, ok := parseDate(entry.Start)
		if !ok {
			continue
		}
		end := now
		if !isOpenEnded(entry.End) {
			parsed, ok := parseDate(entry.End)
			if !ok {
				continue
			}
			end = parsed
		}
		span := end.Sub(start).Hours() / hoursPerYear
		if span > 0 {
			total += span
		}
	}
	return total
}

// ScoreLocation compares two locations. Remote on either side is a match, and
// that check runs before the unknown check.
func ScoreLocation(jobLocation, candidateLocation string) (float64, LocationMatch) {
	job := strings.ToLower(strings.TrimSpace(jobLocation))
	cand := strings.ToLower(strings.TrimSpace(candidateLocation))

	switch {
	case isRemote(job) || isRemote(cand):
		return 1, LocationMatched
	case job == "" || cand == "":
		return unknownSignal, LocationUnknown
	case job == cand:
		return 1, LocationMatched
	default:
		return 0, LocationMismatch
	}
}

// ScoreTags returns the Jaccard overlap of two tag sets, or the neutral signal
// when either set is empty
func ScoreTags(jobTags, candidateTags []string) float64 {
	a := tagSet(jobTags)
	b := tagSet(candidateTags)
	if len(a) == 0 || len(b) == 0 {
		return unknownSignal
	}

	intersection := 0
	for tag := range a {
		if b[tag] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// Clamp bounds x to [0,1]
func Clamp(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func skillKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func tagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if key := strings.ToLower(strings.TrimSpace(tag)); key != "" {
			set[key] = true
		}
	}
	return set
}

func isRemote(location string) bool {
	return strings.Contains(location, "remote")
}

func isOpenEnded(end string) bool {
	switch strings.ToLower(strings.TrimSpace(end)) {
	case "", "present", "current", "now":
		return true
	}
	return false
}

// parseDate accepts YYYY-MM-DD, YYYY-MM and YYYY
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
