package normalize

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"finsight/pkg/core/alias"
	"finsight/pkg/core/detect"
	"finsight/pkg/models"
)

// metaKeys describe the payload rather than carry figures.
var metaKeys = map[string]bool{
	"company": true, "company_name": true, "name": true, "公司名称": true, "公司": true,
	"stock_code": true, "code": true, "ticker": true, "symbol": true, "股票代码": true,
	"currency": true, "币种": true, "unit": true, "units": true, "单位": true,
	"source": true, "数据来源": true, "industry": true, "行业": true,
	"notes": true, "note": true, "备注": true, "description": true, "说明": true,
	"years": true, "年份": true,
}

func isMetaKey(k string) bool {
	return metaKeys[strings.ToLower(strings.TrimSpace(k))]
}

// currentKeys label the latest unlabeled period inside a section.
var currentKeys = map[string]bool{
	"current": true, "latest": true, "本期": true, "当期": true, "最新": true,
}

// periodKeyLabel reports whether a container key labels a period and returns that label.
func periodKeyLabel(k string) (string, bool) {
	trimmed := strings.TrimSpace(k)
	if currentKeys[strings.ToLower(trimmed)] {
		return CurrentLabel, true
	}
	if strings.HasPrefix(trimmed, "period_") {
		return trimmed, true
	}
	if _, ok := yearOf(trimmed); ok {
		return trimmed, true
	}
	return "", false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// withUnit picks up a container-level unit annotation ("unit": "亿元").
func (c cursor) withUnit(m map[string]interface{}) cursor {
	for _, k := range []string{"unit", "units", "单位"} {
		if v, ok := detect.LookupKey(m, k); ok {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
				c.unit = strings.TrimSpace(s)
				return c
			}
		}
	}
	return c
}

// reservedKeys lists the top-level keys handled outside the generic walk.
func (b *builder) reservedKeys(m map[string]interface{}, det detect.Detection) map[string]bool {
	skip := map[string]bool{}
	reserve := func(name string) {
		for k := range m {
			if strings.EqualFold(strings.TrimSpace(k), name) {
				skip[k] = true
			}
		}
	}
	for _, keys := range det.Sections {
		for _, k := range keys {
			reserve(k)
		}
	}
	if det.HistoryKey != "" {
		reserve(det.HistoryKey)
	}
	if det.ArrayTrends {
		for k, v := range m {
			if _, isList := v.([]interface{}); isList {
				skip[k] = true
			}
		}
	}
	return skip
}

// =============================================================================
// GENERIC WALK
// =============================================================================

// walkMap stores every figure of m under the cursor's period, descending into
// period containers, ratio groups and metric -> {year -> value} maps.
func (b *builder) walkMap(c cursor, m map[string]interface{}, skip map[string]bool) {
	if c.label == CurrentLabel {
		if label, ok := detect.PeriodLabel(m); ok {
			c.label = label
		}
	}
	for _, k := range sortedKeys(m) {
		if skip[k] || detect.IsPeriodKey(k) || isMetaKey(k) {
			continue
		}
		switch t := m[k].(type) {
		case map[string]interface{}:
			b.walkNested(c, k, t)
		case []interface{}:
			if isRecordList(t) {
				b.periodList(c.at(k), t)
				continue
			}
			b.put(c, k, t)
		default:
			b.put(c, k, t)
		}
	}
}

func (b *builder) walkNested(c cursor, k string, inner map[string]interface{}) {
	if label, ok := periodKeyLabel(k); ok {
		b.walkMap(c.in(label).at(k).withUnit(inner), inner, nil)
		return
	}
	if detect.IsRatioGroupKey(k) {
		rc := c.at(k)
		rc.category = alias.CategoryRatio
		b.walkMap(rc, inner, nil)
		return
	}
	if hasYearKey(inner) {
		pc := c.withUnit(inner)
		for _, y := range sortedKeys(inner) {
			if _, ok := yearOf(y); !ok {
				continue
			}
			yc := pc.in(y)
			yc.path = c.path + "[" + y + "]"
			b.put(yc, k, inner[y])
		}
		return
	}
	if raw, ok := numericLeaf(inner); ok {
		b.put(c.withUnit(inner), k, raw)
		return
	}
	// nothing numeric one level down
	b.put(c, k, inner)
}

// numericLeaf finds the figure inside {"value": 1.2, "unit": "亿元"}-style wrappers.
func numericLeaf(m map[string]interface{}) (interface{}, bool) {
	for _, k := range []string{"value", "amount", "值", "数值", "金额", "current", "本期"} {
		if v, ok := detect.LookupKey(m, k); ok && isScalarNumber(v) {
			return v, true
		}
	}
	for _, k := range sortedKeys(m) {
		if isMetaKey(k) || detect.IsPeriodKey(k) {
			continue
		}
		if isScalarNumber(m[k]) {
			return m[k], true
		}
	}
	return nil, false
}

func isScalarNumber(v interface{}) bool {
	switch t := v.(type) {
	case float64:
		return !math.IsNaN(t) && !math.IsInf(t, 0)
	case int, int64:
		return true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		_, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		return err == nil
	}
	return false
}

func hasYearKey(m map[string]interface{}) bool {
	for k := range m {
		if detect.IsYearKey(k) {
			return true
		}
	}
	return false
}

func isRecordList(list []interface{}) bool {
	if len(list) == 0 {
		return false
	}
	for _, item := range list {
		if _, ok := item.(map[string]interface{}); !ok {
			return false
		}
	}
	return true
}

// periodList walks a list of period records.
func (b *builder) periodList(c cursor, list []interface{}) {
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			b.diag.InvalidTypes = append(b.diag.InvalidTypes, fmt.Sprintf("%s[%d]", c.path, i))
			continue
		}
		label, found := detect.PeriodLabel(m)
		if !found {
			label = fmt.Sprintf("period_%d", i)
		}
		ic := c.in(label)
		ic.path = fmt.Sprintf("%s[%d]", c.path, i)
		b.walkMap(ic.withUnit(m), m, nil)
	}
}

// =============================================================================
// NESTED SECTIONS
// =============================================================================

func (b *builder) nestedSections(m map[string]interface{}, det detect.Detection, root cursor) {
	for _, section := range models.SectionNames() {
		keys := det.Sections[section]
		if len(keys) == 0 {
			continue
		}
		merged := mergeSection(m, keys)

		c := root
		c.category = alias.Category(section)
		c.path = "$." + strings.Join(keys, "+")

		switch t := merged.(type) {
		case map[string]interface{}:
			b.walkMap(c.withUnit(t), t, nil)
		case []interface{}:
			b.periodList(c, t)
		}
	}
}

// mergeSection combines the containers of one section found under several
// bilingual keys. Keys are ordered English first, so Chinese keys win collisions.
func mergeSection(m map[string]interface{}, keys []string) interface{} {
	var acc interface{}
	for _, k := range keys {
		v, ok := detect.LookupKey(m, k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case map[string]interface{}:
			if dst, isMap := acc.(map[string]interface{}); isMap {
				acc = deepMerge(dst, t)
			} else if len(t) > 0 || acc == nil {
				acc = deepMerge(map[string]interface{}{}, t)
			}
		case []interface{}:
			if len(t) > 0 || acc == nil {
				acc = t
			}
		}
	}
	return acc
}

// deepMerge returns a copy of dst with src merged in; src wins on leaves.
func deepMerge(dst, src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if sm, ok := v.(map[string]interface{}); ok {
			if dm, ok := out[k].(map[string]interface{}); ok {
				out[k] = deepMerge(dm, sm)
				continue
			}
		}
		out[k] = v
	}
	return out
}
