package clean

import (
	"regexp"
	"strings"
)

// unitMarker is one recognised scale marker. Order matters: longer markers
// must be tested before their prefixes ("万亿" before "万" and "亿").
type unitMarker struct {
	token      string
	multiplier float64
	name       string
}

var cjkMarkers = []unitMarker{
	{"万亿", 1e12, "trillion"},
	{"千亿", 1e11, "hundred_billion"},
	{"百亿", 1e10, "ten_billion"},
	{"亿", 1e8, "hundred_million"},
	{"千万", 1e7, "ten_million"},
	{"百万", 1e6, "million"},
	{"万", 1e4, "ten_thousand"},
	{"千", 1e3, "thousand"},
}

var (
	// english magnitude words, matched as whole words
	englishScaleRe = regexp.MustCompile(`\b(trillions?|tn|billions?|bn|millions?|mn|mm|thousands?|000s)\b`)
	// trailing single-letter suffix on a bare number: 12.5k, 3m, 1.2b
	numberSuffixRe = regexp.MustCompile(`^([-+]?[\d.,]+)\s*([kmbt])$`)
)

// DetectScale finds a unit multiplier in free text such as a key annotation
// ("营业收入(亿元)", "Revenue (in millions)") or a value ("1.2亿").
// Returns 1 and "" when no marker is present.
func DetectScale(text string) (float64, string) {
	if text == "" {
		return 1, ""
	}
	lower := strings.ToLower(text)

	for _, m := range cjkMarkers {
		if strings.Contains(lower, m.token) {
			return m.multiplier, m.name
		}
	}

	if m := englishScaleRe.FindString(lower); m != "" {
		switch {
		case strings.HasPrefix(m, "tr") || m == "tn":
			return 1e12, "trillion"
		case strings.HasPrefix(m, "b"):
			return 1e9, "billion"
		case strings.HasPrefix(m, "m"):
			return 1e6, "million"
		default:
			return 1e3, "thousand"
		}
	}
	return 1, ""
}

// splitNumberSuffix handles compact forms like "12.5k" or "3M".
func splitNumberSuffix(s string) (string, float64, bool) {
	m := numberSuffixRe.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return s, 1, false
	}
	switch m[2] {
	case "k":
		return m[1], 1e3, true
	case "m":
		return m[1], 1e6, true
	case "b":
		return m[1], 1e9, true
	case "t":
		return m[1], 1e12, true
	}
	return s, 1, false
}

// stripUnitWords removes every scale marker and currency word from s.
func stripUnitWords(s string) string {
	for _, m := range cjkMarkers {
		s = strings.ReplaceAll(s, m.token, "")
	}
	s = englishScaleRe.ReplaceAllString(strings.ToLower(s), "")
	return s
}
