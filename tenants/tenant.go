// Package tenants models the external CMS instances ("sites") the console
// administers. A site may carry a stored username/secret pair: a tenant-level
// fallback credential usable only by privileged subjects.
package tenants

import "time"

// Site is one configured tenant.
type Site struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Username  string    `json:"username,omitempty"`
	Secret    string    `json:"-"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	// AssignedSubjectIDs restricts which subjects the site is offered to in
	// the console. Empty means unrestricted.
	AssignedSubjectIDs []string `json:"assigned_subject_ids,omitempty"`
}

// HasStoredCredential reports whether the site carries the tenant-level
// fallback credential.
func (s *Site) HasStoredCredential() bool {
	return s.Username != "" && s.Secret != ""
}

// IsAssignedTo reports whether a subject may see this site. An empty
// assignment list leaves the site open to everyone.
func (s *Site) IsAssignedTo(subjectID string) bool {
	if len(s.AssignedSubjectIDs) == 0 {
		return true
	}
	for _, id := range s.AssignedSubjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}
