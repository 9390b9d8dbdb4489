package embedding

import (
	"fmt"
	"strings"
)

// Kind names an entity whose rows carry an embedding column.
type Kind string

const (
	KindProfiles   Kind = "profiles"
	KindJobs       Kind = "external_jobs"
	KindProjects   Kind = "projects"
	KindHackathons Kind = "hackathons"
)

// Kinds lists every indexable kind in indexing order.
var Kinds = []Kind{KindProfiles, KindJobs, KindProjects, KindHackathons}

// ParseKind accepts a table name or a short alias ("jobs").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "profiles", "profile", "users":
		return KindProfiles, nil
	case "external_jobs", "jobs", "job":
		return KindJobs, nil
	case "projects", "project":
		return KindProjects, nil
	case "hackathons", "hackathon":
		return KindHackathons, nil
	}
	return "", fmt.Errorf("unknown embedding kind %q", s)
}

type kindSpec struct {
	columns string
	fields  []string
}

var kindSpecs = map[Kind]kindSpec{
	KindProfiles:   {"id,full_name,skills,interests", []string{"full_name", "skills", "interests"}},
	KindJobs:       {"id,title,company,location,type,skills_required", []string{"title", "company", "location", "type", "skills_required"}},
	KindProjects:   {"id,title,description,technologies,categories,tags", []string{"title", "description", "technologies", "categories", "tags"}},
	KindHackathons: {"id,title,description,type,skills,categories", []string{"title", "description", "type", "skills", "categories"}},
}

// BuildText joins the kind's text fields of row with spaces. Array fields
// contribute each element; missing and null fields are skipped.
func BuildText(kind Kind, row map[string]any) string {
	spec, ok := kindSpecs[kind]
	if !ok {
		return ""
	}
	var parts []string
	for _, f := range spec.fields {
		parts = appendField(parts, row[f])
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func appendField(parts []string, v any) []string {
	switch t := v.(type) {
	case nil:
	case string:
		if s := strings.TrimSpace(t); s != "" {
			parts = append(parts, s)
		}
	case []any:
		for _, e := range t {
			parts = appendField(parts, e)
		}
	case []string:
		for _, e := range t {
			parts = appendField(parts, e)
		}
	default:
		parts = append(parts, fmt.Sprint(t))
	}
	return parts
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

func rowID(row map[string]any) string {
	switch id := row["id"].(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}
