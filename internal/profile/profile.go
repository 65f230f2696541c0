// Package profile computes a candidate's effective profile: the parsed resume
// data with the correction overlay applied field by field. The result is built
// fresh on every call and is never cached on its own.
package profile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jonathan/resume-matcher/internal/types"
)

// SectionSeparator joins the sections of the composite resume text
const SectionSeparator = "\n\n=====\n\n"

// Effective applies a correction overlay to a parsed profile. Present overlay
// fields win, even when empty; absent fields fall back to the base.
func Effective(base types.ParsedProfile, correction *types.ProfileCorrection) types.CandidateProfile {
	out := types.CandidateProfile{
		Summary:    base.Summary,
		Skills:     slices.Clone(base.Skills),
		Experience: slices.Clone(base.Experience),
		Education:  slices.Clone(base.Education),
		Location:   base.Location,
		Tags:       slices.Clone(base.Tags),
	}
	if correction == nil {
		return out
	}

	if correction.Summary != nil {
		out.Summary = *correction.Summary
	}
	if correction.Skills != nil {
		out.Skills = slices.Clone(*correction.Skills)
	}
	if correction.Experience != nil {
		out.Experience = slices.Clone(*correction.Experience)
	}
	if correction.Education != nil {
		out.Education = slices.Clone(*correction.Education)
	}
	if correction.Location != nil {
		out.Location = *correction.Location
	}
	if correction.Tags != nil {
		out.Tags = slices.Clone(*correction.Tags)
	}
	return out
}

// ForResume returns the effective profile of a resume
func ForResume(resume *types.Resume) types.CandidateProfile {
	return Effective(resume.Parsed, resume.Correction)
}

// BuildResumeText assembles summary, skills, experience and education into one
// text block. Empty sections are left out.
func BuildResumeText(p types.CandidateProfile) string {
	var sections []string

	if s := strings.TrimSpace(p.Summary); s != "" {
		sections = append(sections, "Summary: "+s)
	}

	if len(p.Skills) > 0 {
		sections = append(sections, "Skills: "+strings.Join(p.Skills, ", "))
	}

	if len(p.Experience) > 0 {
		lines := make([]string, 0, len(p.Experience)+1)
		lines = append(lines, "Experience:")
		for _, e := range p.Experience {
			lines = append(lines, "- "+experienceLine(e))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(p.Education) > 0 {
		lines := make([]string, 0, len(p.Education)+1)
		lines = append(lines, "Education:")
		for _, e := range p.Education {
			lines = append(lines, "- "+educationLine(e))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return strings.Join(sections, SectionSeparator)
}

func experienceLine(e types.ExperienceEntry) string {
	var b strings.Builder
	b.WriteString(e.Title)
	if e.Company != "" {
		b.WriteString(" at ")
		b.WriteString(e.Company)
	}
	if e.Start != "" {
		end := e.End
		if end == "" {
			end = "present"
		}
		fmt.Fprintf(&b, " (%s - %s)", e.Start, end)
	}
	if d := strings.TrimSpace(e.Description); d != "" {
		b.WriteString(": ")
		b.WriteString(d)
	}
	return b.String()
}

func educationLine(e types.EducationEntry) string {
	parts := make([]string, 0, 4)
	degree := strings.TrimSpace(e.Degree + " " + e.Field)
	if degree != "" {
		parts = append(parts, degree)
	}
	if e.Institution != "" {
		parts = append(parts, e.Institution)
	}
	if e.Year != "" {
		parts = append(parts, e.Year)
	}
	return strings.Join(parts, ", ")
}
