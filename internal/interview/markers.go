package interview

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Bracketed or tagged forms such as [END_INTERVIEW], <end interview/>,
	// (End-Of-Interview), plus the bare END_INTERVIEW token.
	endMarkerPattern = regexp.MustCompile(`(?i)[\[<{(]+\s*end[\s_-]*(?:of[\s_-]*)?interview\s*/?\s*[\]>})]+[.!]?|\bend_interview\b`)

	preparationPattern = regexp.MustCompile(`(?i)preparation[\s_-]*percentage\W{0,4}(n/?a\b|\d{1,3}(?:\.\d+)?)\s*%?`)
)

// HasEndMarker reports whether reply contains the end-of-interview marker anywhere
func HasEndMarker(reply string) bool {
	return endMarkerPattern.MatchString(reply)
}

// StripEndMarker removes every end marker and tidies the remaining text
func StripEndMarker(reply string) string {
	return strings.Join(strings.Fields(endMarkerPattern.ReplaceAllString(reply, " ")), " ")
}

// ParsePreparation extracts the preparation percentage from a summary.
// It returns nil when the line is missing or reads N/A. Values are clamped
// to 0..100.
func ParsePreparation(summary string) *int {
	m := preparationPattern.FindStringSubmatch(summary)
	if m == nil {
		return nil
	}

	raw := strings.ToLower(m[1])
	if strings.HasPrefix(raw, "n") {
		return nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	v := int(math.Round(math.Max(0, math.Min(100, f))))
	return &v
}
