package model

import "strings"

// EntryView is an experience or education entry prepared for display.
type EntryView struct {
	Kind       string
	Heading    string
	Subheading string
	Period     string
	Start      string
	Bullets    []string
}

// ItemView is a skill or language prepared for display.
type ItemView struct {
	Kind  string
	Name  string
	Level string
}

// ExperienceViews sorts experience descending by start date and prepares it
// for display.
func ExperienceViews(d CVData, present string) []EntryView {
	sorted := SortExperience(d.Experience)
	out := make([]EntryView, 0, len(sorted))
	for _, e := range sorted {
		out = append(out, EntryView{
			Kind:       "experience",
			Heading:    e.Position,
			Subheading: e.Company,
			Period:     Period(e.StartDate, e.EndDate, e.Current, present),
			Start:      e.StartDate,
			Bullets:    Bullets(e.Description),
		})
	}
	return out
}

// EducationViews is ExperienceViews for education.
func EducationViews(d CVData, present string) []EntryView {
	sorted := SortEducation(d.Education)
	out := make([]EntryView, 0, len(sorted))
	for _, e := range sorted {
		heading := e.Degree
		if e.Field != "" {
			if heading != "" {
				heading += ", "
			}
			heading += e.Field
		}
		out = append(out, EntryView{
			Kind:       "education",
			Heading:    heading,
			Subheading: e.Institution,
			Period:     Period(e.StartDate, e.EndDate, e.Ongoing, present),
			Start:      e.StartDate,
			Bullets:    Bullets(e.Description),
		})
	}
	return out
}

func SkillViews(d CVData) []ItemView {
	out := make([]ItemView, 0, len(d.Skills))
	for _, s := range d.Skills {
		out = append(out, ItemView{Kind: "skill", Name: s.Name, Level: s.Level})
	}
	return out
}

// LanguageViews renders native speakers with the native label instead of a
// level.
func LanguageViews(d CVData, native string) []ItemView {
	out := make([]ItemView, 0, len(d.Languages))
	for _, l := range d.Languages {
		level := l.Level
		if l.Native {
			level = native
		}
		out = append(out, ItemView{Kind: "language", Name: l.Name, Level: level})
	}
	return out
}

// ProfessionalTitle returns the explicit title, falling back to the position
// of the most recent experience.
func ProfessionalTitle(d CVData) string {
	if t := strings.TrimSpace(d.PersonalInfo.Title); t != "" {
		return t
	}
	sorted := SortExperience(d.Experience)
	if len(sorted) > 0 {
		return sorted[0].Position
	}
	return ""
}
