package assessment

import (
	"fmt"
	"strconv"
	"strings"
)

// QuestionKind describes how a question is answered and judged.
type QuestionKind string

const (
	QuestionMultipleChoice QuestionKind = "multiple_choice"
	QuestionText           QuestionKind = "text"     // e.g. "la casa"
	QuestionInteger        QuestionKind = "integer"  // e.g. "623", "-15"
	QuestionDecimal        QuestionKind = "decimal"  // e.g. "3.75", "0.5"
	QuestionFraction       QuestionKind = "fraction" // e.g. "3/4", "7/2"
)

// Question is one scored item of a quiz or exam section.
type Question struct {
	ID     string       `json:"id"`
	Prompt string       `json:"prompt"`
	Kind   QuestionKind `json:"kind"`
	// Options is populated only for multiple choice questions.
	Options []string `json:"options,omitempty"`
	// Answer is the canonical correct answer. For multiple choice it is the
	// text of the correct option.
	Answer string `json:"answer"`
	// Alternatives are further accepted answers for text questions.
	Alternatives []string `json:"alternatives,omitempty"`
	// Points defaults to 1 when zero.
	Points float64 `json:"points,omitempty"`
}

// MaxPoints returns the points awarded for a correct answer.
func (q Question) MaxPoints() float64 {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// CheckAnswer compares the learner's response against the correct answer.
//
// Normalization rules:
//   - Whitespace is trimmed and, for text, inner runs collapse to one space
//   - Comparison is case-insensitive
//   - Fractions: equivalent fractions are accepted ("2/4" matches "1/2")
//   - Decimals: trailing zeros are ignored ("3.50" matches "3.5")
//   - Integers: leading zeros are ignored ("007" matches "7")
//   - Multiple choice: matches the option text or its 1-based index
func CheckAnswer(response string, q Question) bool {
	response = strings.TrimSpace(response)
	if response == "" {
		return false
	}

	switch q.Kind {
	case QuestionMultipleChoice:
		return checkMultipleChoice(response, q)
	case QuestionText, "":
		got := normalizeText(response)
		for _, want := range append([]string{q.Answer}, q.Alternatives...) {
			if got == normalizeText(want) {
				return true
			}
		}
		return false
	}

	normalizedResponse, err := normalizeAnswer(response, q.Kind)
	if err != nil {
		return false
	}
	normalizedCorrect, err := normalizeAnswer(q.Answer, q.Kind)
	if err != nil {
		return false
	}
	return normalizedResponse == normalizedCorrect
}

// checkMultipleChoice checks the response against the question's options.
func checkMultipleChoice(response string, q Question) bool {
	if idx, err := strconv.Atoi(response); err == nil && idx >= 1 && idx <= len(q.Options) {
		return strings.EqualFold(
			strings.TrimSpace(q.Options[idx-1]),
			strings.TrimSpace(q.Answer),
		)
	}
	return strings.EqualFold(response, strings.TrimSpace(q.Answer))
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// normalizeAnswer normalizes a numeric answer for comparison.
func normalizeAnswer(answer string, kind QuestionKind) (string, error) {
	answer = strings.TrimSpace(answer)

	switch kind {
	case QuestionInteger:
		n, err := strconv.ParseInt(answer, 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid integer: %w", err)
		}
		return strconv.FormatInt(n, 10), nil

	case QuestionDecimal:
		f, err := strconv.ParseFloat(answer, 64)
		if err != nil {
			return "", fmt.Errorf("invalid decimal: %w", err)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil

	case QuestionFraction:
		num, den, err := parseFraction(answer)
		if err != nil {
			return "", err
		}
		if den == 0 {
			return "", fmt.Errorf("zero denominator")
		}
		if den < 0 {
			num = -num
			den = -den
		}
		g := gcd(abs(num), den)
		if g == 0 {
			g = 1
		}
		return fmt.Sprintf("%d/%d", num/g, den/g), nil

	default:
		return "", fmt.Errorf("unknown question kind %q", kind)
	}
}

// parseFraction parses "a/b" into numerator and denominator.
func parseFraction(s string) (int64, int64, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid fraction format: %q", s)
	}
	num, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid numerator: %w", err)
	}
	den, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid denominator: %w", err)
	}
	return num, den, nil
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
