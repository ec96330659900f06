// Package feedback holds the structured résumé feedback model and the decoder
// that recovers it from free-text model completions.
package feedback

// Tip types.
const (
	TipGood    = "good"
	TipImprove = "improve"
)

// Feedback is the scored analysis of one résumé against one job.
type Feedback struct {
	OverallScore int      `json:"overallScore"`
	ATS          Category `json:"ATS"`
	ToneAndStyle Category `json:"toneAndStyle"`
	Content      Category `json:"content"`
	Structure    Category `json:"structure"`
	Skills       Category `json:"skills"`
}

// Category is one scored section of the feedback.
type Category struct {
	Score int   `json:"score"`
	Tips  []Tip `json:"tips"`
}

// Tip is a single piece of advice. ATS tips carry no explanation.
type Tip struct {
	Type        string `json:"type"`
	Tip         string `json:"tip"`
	Explanation string `json:"explanation,omitempty"`
}

// Categories returns the five categories keyed by their JSON name, in prompt order.
func (f Feedback) Categories() []NamedCategory {
	return []NamedCategory{
		{Name: "ATS", Category: f.ATS},
		{Name: "toneAndStyle", Category: f.ToneAndStyle},
		{Name: "content", Category: f.Content},
		{Name: "structure", Category: f.Structure},
		{Name: "skills", Category: f.Skills},
	}
}

// NamedCategory pairs a category with its JSON key.
type NamedCategory struct {
	Name string
	Category
}
