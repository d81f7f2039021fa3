package normalize

import (
	"regexp"
	"strings"
)

const numberPattern = `\(?[-+]?\d[\d,，]*(?:\.\d+)?\)?\s*(?:万亿|千亿|百亿|亿|千万|百万|万|千|million|billion|thousand|mn|bn)?\s*(?:元|美元|%)?`

var (
	// 营业收入: 500亿 / revenue = 1,200 million
	labelledRe = regexp.MustCompile(`([\p{Han}A-Za-z][\p{Han}A-Za-z_ ()（）]{0,30}?)\s*[:：=]\s*(` + numberPattern + `)`)
	// 营业收入为500亿元 / 净利润达到12亿
	narrativeRe = regexp.MustCompile(`(\p{Han}{2,12}?)(?:为|达到|达|约为|约)\s*(` + numberPattern + `)`)
)

// ExtractTextMetrics pulls "label: value" figures out of free text. Values
// keep their unit words so the cleaner can scale them. The first occurrence
// of a label wins.
func ExtractTextMetrics(text string) map[string]interface{} {
	out := map[string]interface{}{}
	for _, re := range []*regexp.Regexp{labelledRe, narrativeRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			label := strings.TrimSpace(m[1])
			value := strings.TrimSpace(m[2])
			if label == "" || value == "" {
				continue
			}
			if _, exists := out[label]; !exists {
				out[label] = value
			}
		}
	}
	return out
}

func (b *builder) text(root cursor, s string) {
	extracted := ExtractTextMetrics(s)
	if len(extracted) == 0 {
		b.diag.Notes = append(b.diag.Notes, "no figures found in text payload")
		return
	}
	c := root
	c.path = "$text"
	b.walkMap(c, extracted, nil)
}
