package model

// CommitUser identifies the author or committer of a commit.
type CommitUser struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
}

// CommitInfo is the identity of the code state a benchmark run was measured
// against. It is produced once by CI for every run and never modified.
type CommitInfo struct {
	Author    CommitUser `json:"author" yaml:"author"`
	Committer CommitUser `json:"committer" yaml:"committer"`
	// Distinct and TreeID are only present in push-event payloads; they
	// are carried through so rewrites keep them.
	Distinct  *bool  `json:"distinct,omitempty" yaml:"distinct,omitempty"`
	ID        string `json:"id" yaml:"id"`
	Message   string `json:"message" yaml:"message"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	TreeID    string `json:"tree_id,omitempty" yaml:"tree_id,omitempty"`
	URL       string `json:"url" yaml:"url"`
}

// ShortID returns the abbreviated commit hash.
func (c CommitInfo) ShortID() string {
	if len(c.ID) > 7 {
		return c.ID[:7]
	}
	return c.ID
}
