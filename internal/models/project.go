package models

// Project is one entry of the persisted portfolio project list.
// Link is its identity; entries are appended once and never rewritten.
type Project struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Image           string   `json:"image"`
	Link            string   `json:"link"`
	WebsiteLink     string   `json:"websiteLink"`
	Tags            []string `json:"tags"`
	ComplexityScore int      `json:"complexityScore"`
	Architecture    string   `json:"architecture"`
	Difficulty      string   `json:"difficulty"`
	IsAutoSync      bool     `json:"isAutoSync"`
}

// Repository is the code-host view of a repository considered for sync.
type Repository struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	HTMLURL     string   `json:"html_url"`
	Homepage    string   `json:"homepage"`
	Topics      []string `json:"topics"`
}

// HasTopic reports whether the repository is tagged with topic.
func (r Repository) HasTopic(topic string) bool {
	for _, t := range r.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// ProjectAnalysis holds the AI-derived metadata for one repository.
// Zero values mean "not provided" and are replaced by fallbacks.
type ProjectAnalysis struct {
	Description     string   `json:"description"`
	Tags            []string `json:"tags"`
	ComplexityScore int      `json:"complexityScore" validate:"omitempty,min=1,max=10"`
	Architecture    string   `json:"architecture"`
	Difficulty      string   `json:"difficulty" validate:"omitempty,oneof=Easy Medium Hard"`
}
