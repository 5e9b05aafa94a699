package spacedrep

import (
	"strings"

	"github.com/abhisek/lingva/internal/errs"
)

// Response is the learner's qualitative recall rating for a review.
type Response string

const (
	ResponseAgain Response = "again"
	ResponseHard  Response = "hard"
	ResponseGood  Response = "good"
	ResponseEasy  Response = "easy"
)

// AllResponses returns the response buckets from worst to best.
func AllResponses() []Response {
	return []Response{ResponseAgain, ResponseHard, ResponseGood, ResponseEasy}
}

// Valid reports whether r is one of the four buckets.
func (r Response) Valid() bool {
	switch r {
	case ResponseAgain, ResponseHard, ResponseGood, ResponseEasy:
		return true
	}
	return false
}

// Correct reports whether the response counts as a correct recall.
func (r Response) Correct() bool {
	return r.Valid() && r != ResponseAgain
}

// ParseResponse converts user input into a Response.
func ParseResponse(s string) (Response, error) {
	r := Response(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", errs.InvalidArgument("response", "unknown review response %q", s)
	}
	return r, nil
}

func parseRecent(s string) []Response {
	if s == "" {
		return nil
	}
	var out []Response
	for _, part := range strings.Split(s, ",") {
		if r := Response(part); r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

func formatRecent(rs []Response) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}
