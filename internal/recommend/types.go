// Package recommend fans out to the job, hackathon and project matchers
// and merges their heterogeneous rows into one normalized shape.
package recommend

// Category names a recommendation list.
type Category string

const (
	CategoryJob       Category = "job"
	CategoryHackathon Category = "hackathon"
	CategoryProject   Category = "project"
)

// Item is one normalized recommendation.
type Item struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category Category `json:"category"`
	Score    float64  `json:"score"`
}

// Recommendations holds one list per category. Every list is non-nil.
type Recommendations struct {
	Jobs       []Item `json:"jobs"`
	Hackathons []Item `json:"hackathons"`
	Projects   []Item `json:"projects"`
}

func (r *Recommendations) set(c Category, items []Item) {
	switch c {
	case CategoryJob:
		r.Jobs = items
	case CategoryHackathon:
		r.Hackathons = items
	case CategoryProject:
		r.Projects = items
	}
}

// Raw is a source row reduced to the fields the aggregator reads. A nil
// Similarity means the source did not score the row.
type Raw struct {
	ID         string
	Title      string
	Similarity *float64
}

// Filters narrow what the matchers return. Zero values mean "no filter".
type Filters struct {
	Location        string
	JobType         string
	HackathonType   string
	Skills          []string
	Categories      []string
	TeamSize        int
	Difficulty      string
	ProjectCategory []string
	HackathonOffset int
}
