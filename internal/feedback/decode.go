package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// PreviewLimit bounds the raw text carried by a DecodeError.
const PreviewLimit = 1000

// DecodeError reports a completion from which no valid Feedback could be recovered.
type DecodeError struct {
	Reason  string
	Preview string
}

func (e *DecodeError) Error() string {
	return "decode feedback: " + e.Reason
}

// Decode recovers Feedback from a model completion. It first parses the whole
// trimmed text, then the span from the first '{' to the last '}'. Only that
// one span is tried, so trailing objects may be over-captured.
func Decode(raw string) (Feedback, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Feedback{}, &DecodeError{Reason: "empty completion"}
	}

	fb, firstErr := parse(trimmed)
	if firstErr == nil {
		return fb, nil
	}

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start >= 0 && end > start {
		if fb, err := parse(trimmed[start : end+1]); err == nil {
			return fb, nil
		}
	}

	return Feedback{}, &DecodeError{Reason: firstErr.Error(), Preview: Preview(raw, PreviewLimit)}
}

// Preview returns at most n runes of s without splitting a UTF-8 sequence.
func Preview(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

type wireFeedback struct {
	OverallScore *json.Number  `json:"overallScore"`
	ATS          *wireCategory `json:"ATS"`
	ToneAndStyle *wireCategory `json:"toneAndStyle"`
	Content      *wireCategory `json:"content"`
	Structure    *wireCategory `json:"structure"`
	Skills       *wireCategory `json:"skills"`
}

type wireCategory struct {
	Score *json.Number `json:"score"`
	Tips  []Tip        `json:"tips"`
}

func parse(text string) (Feedback, error) {
	var w wireFeedback
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return Feedback{}, err
	}
	return w.validate()
}

func (w wireFeedback) validate() (Feedback, error) {
	overall, err := score("overallScore", w.OverallScore)
	if err != nil {
		return Feedback{}, err
	}
	fb := Feedback{OverallScore: overall}
	fields := []struct {
		name string
		in   *wireCategory
		out  *Category
	}{
		{"ATS", w.ATS, &fb.ATS},
		{"toneAndStyle", w.ToneAndStyle, &fb.ToneAndStyle},
		{"content", w.Content, &fb.Content},
		{"structure", w.Structure, &fb.Structure},
		{"skills", w.Skills, &fb.Skills},
	}
	for _, f := range fields {
		if f.in == nil {
			return Feedback{}, fmt.Errorf("missing %s", f.name)
		}
		s, err := score(f.name+".score", f.in.Score)
		if err != nil {
			return Feedback{}, err
		}
		tips := f.in.Tips
		if tips == nil {
			tips = []Tip{}
		}
		for i, t := range tips {
			if t.Type != TipGood && t.Type != TipImprove {
				return Feedback{}, fmt.Errorf("%s.tips[%d]: type must be %q or %q", f.name, i, TipGood, TipImprove)
			}
			if strings.TrimSpace(t.Tip) == "" {
				return Feedback{}, fmt.Errorf("%s.tips[%d]: empty tip", f.name, i)
			}
		}
		*f.out = Category{Score: s, Tips: tips}
	}
	return fb, nil
}

var errNotInteger = errors.New("must be an integer between 0 and 100")

func score(name string, n *json.Number) (int, error) {
	if n == nil {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := n.Float64()
	if err != nil || math.Trunc(v) != v || v < 0 || v > 100 {
		return 0, fmt.Errorf("%s %s", name, errNotInteger)
	}
	return int(v), nil
}
