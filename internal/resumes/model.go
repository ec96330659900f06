package resumes

import (
	"time"

	"resumind/internal/feedback"
)

// KeyPrefix namespaces résumé records in the key/value store.
const KeyPrefix = "resume:"

// Record is one analyzed résumé. It is written once and never mutated.
type Record struct {
	ID             string             `json:"id"`
	ImageURL       string             `json:"imageUrl"`
	CompanyName    string             `json:"companyName"`
	JobTitle       string             `json:"jobTitle"`
	JobDescription string             `json:"jobDescription"`
	Feedback       *feedback.Feedback `json:"feedback"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Key is the storage key for the record with id.
func Key(id string) string {
	return KeyPrefix + id
}

// Pending reports whether the record has no feedback yet.
func (r Record) Pending() bool {
	return r.Feedback == nil
}
