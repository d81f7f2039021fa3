package alias

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	// Unit annotations like "(亿元)", "（单位：万元）", "(in millions)", "[%]".
	unitSuffixRe = regexp.MustCompile(`[\(\[]\s*(?:单位\s*:?\s*)?(?:人民币)?\s*(?:万亿元|万亿|亿元|亿|百万元|千万元|万元|万|千元|元|rmb|cny|usd|\$|in\s+(?:millions|thousands|billions)|millions?|thousands?|billions?|mn|bn|%)\s*[\)\]]`)
	separatorRe  = regexp.MustCompile(`[\s\-_.·/]+`)
)

// Fold normalizes an observed key for matching: NFKC, width folding,
// lowercase, unit-annotation removal and separator collapsing.
func Fold(key string) string {
	s := norm.NFKC.String(key)
	s = width.Fold.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = unitSuffixRe.ReplaceAllString(s, "")
	s = separatorRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_:：")
}

// Tokens splits a folded key into keywords. Runs of Han characters are
// additionally split into bigrams so Chinese keys can overlap partially.
func Tokens(folded string) []string {
	parts := strings.FieldsFunc(folded, func(r rune) bool {
		switch r {
		case '_', ' ', ',', '，', '、', '(', ')', '（', '）', ':', '：', '&', '/':
			return true
		}
		return false
	})

	seen := map[string]bool{}
	var out []string
	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	for _, p := range parts {
		if !hasHan(p) {
			add(p)
			continue
		}
		runes := []rune(p)
		if len(runes) <= 2 {
			add(p)
			continue
		}
		for i := 0; i+1 < len(runes); i++ {
			add(string(runes[i : i+2]))
		}
	}
	return out
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// substringEligible reports whether a folded string is long enough to take
// part in containment matching. Han strings need 2 runes, others 4.
func substringEligible(folded string) bool {
	n := utf8.RuneCountInString(folded)
	if hasHan(folded) {
		return n >= 2
	}
	return n >= 4
}

var ratioMarkers = []string{"率", "倍数", "周转", "增长", "ratio", "margin", "turnover", "growth", "coverage", "%"}

// looksLikeRatio reports whether a folded key names a ratio rather than an amount.
func looksLikeRatio(folded string) bool {
	for _, m := range ratioMarkers {
		if strings.Contains(folded, m) {
			return true
		}
	}
	return false
}

// exclusionMarkers turn a line item into a different item than the one it
// contains: 非流动资产 is not 流动资产, 营业外收入 is not 营业收入.
var exclusionMarkers = []string{"非", "营业外", "其他", "non_", "other"}

// exclusionsIn returns the exclusion markers present in a folded key.
func exclusionsIn(folded string) []string {
	var out []string
	for _, m := range exclusionMarkers {
		if strings.Contains(folded, m) {
			out = append(out, m)
		}
	}
	return out
}

// carriesAll reports whether alias contains every marker.
func carriesAll(alias string, markers []string) bool {
	for _, m := range markers {
		if !strings.Contains(alias, m) {
			return false
		}
	}
	return true
}
