// Package clean turns raw scalars from untrusted financial payloads into
// validated float values. A rejected value means "field absent", never zero.
package clean

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"finsight/pkg/core/alias"

	"github.com/shopspring/decimal"
)

// DefaultMagnitudeLimit bounds the absolute value of any cleaned figure.
const DefaultMagnitudeLimit = 1e15

// Options tunes unit inference and plausibility checks.
type Options struct {
	// ImplicitKinds lists the value kinds eligible for implicit small-number
	// scaling. Ratio and count kinds are ignored even when listed.
	ImplicitKinds []alias.Kind
	// ImplicitFields optionally narrows implicit scaling to these field ids.
	ImplicitFields []string
	// ImplicitThreshold is the magnitude below which implicit scaling applies.
	ImplicitThreshold float64
	// ImplicitMultiplier is applied when implicit scaling triggers.
	ImplicitMultiplier float64
	// MagnitudeLimit rejects values whose absolute value exceeds it.
	MagnitudeLimit float64
}

// DefaultOptions leaves implicit scaling disabled.
func DefaultOptions() Options {
	return Options{
		ImplicitThreshold:  1e4,
		ImplicitMultiplier: 1e8,
		MagnitudeLimit:     DefaultMagnitudeLimit,
	}
}

// Outcome carries the full result of cleaning one value.
type Outcome struct {
	Value      float64 `json:"value"`
	OK         bool    `json:"ok"`
	Multiplier float64 `json:"multiplier"`
	Implicit   bool    `json:"implicit"`
	Reason     string  `json:"reason,omitempty"`
}

// Rejection records a value the cleaner refused.
type Rejection struct {
	Field  string      `json:"field"`
	Key    string      `json:"key"`
	Raw    interface{} `json:"raw"`
	Reason string      `json:"reason"`
}

// Cleaner validates raw values for canonical fields.
type Cleaner struct {
	opts           Options
	implicitKinds  map[alias.Kind]bool
	implicitFields map[string]bool
}

// New creates a cleaner. Zero-valued numeric options fall back to defaults.
func New(opts Options) *Cleaner {
	def := DefaultOptions()
	if opts.ImplicitThreshold <= 0 {
		opts.ImplicitThreshold = def.ImplicitThreshold
	}
	if opts.ImplicitMultiplier <= 0 {
		opts.ImplicitMultiplier = def.ImplicitMultiplier
	}
	if opts.MagnitudeLimit <= 0 {
		opts.MagnitudeLimit = def.MagnitudeLimit
	}

	c := &Cleaner{opts: opts, implicitKinds: map[alias.Kind]bool{}, implicitFields: map[string]bool{}}
	for _, k := range opts.ImplicitKinds {
		if k == alias.KindMonetary || k == alias.KindSignedMonetary {
			c.implicitKinds[k] = true
		}
	}
	for _, f := range opts.ImplicitFields {
		c.implicitFields[f] = true
	}
	return c
}

var defaultCleaner = New(DefaultOptions())

// Clean validates raw for fieldID with default options.
func Clean(fieldID string, raw interface{}) (float64, bool) {
	return defaultCleaner.Clean(fieldID, raw)
}

// Clean validates raw for fieldID. false means the value must be treated as absent.
func (c *Cleaner) Clean(fieldID string, raw interface{}) (float64, bool) {
	out := c.CleanKeyed(fieldID, "", raw)
	return out.Value, out.OK
}

// CleanKeyed validates raw for fieldID, honouring unit annotations in the
// observed key (e.g. "营业收入(亿元)").
func (c *Cleaner) CleanKeyed(fieldID, observedKey string, raw interface{}) Outcome {
	kind, known := alias.KindOf(fieldID)
	if !known {
		kind = alias.KindSignedMonetary
	}

	v, explicit, reason := parseRaw(raw)
	if reason != "" {
		return Outcome{Reason: reason}
	}

	multiplier := 1.0
	scalable := kind == alias.KindMonetary || kind == alias.KindSignedMonetary
	if scalable {
		if explicit != 1 {
			multiplier = explicit
		} else if keyScale, _ := DetectScale(observedKey); keyScale != 1 {
			multiplier = keyScale
		}
	}

	implicit := false
	if scalable && multiplier == 1 && c.implicitApplies(fieldID, kind, v) {
		multiplier = c.opts.ImplicitMultiplier
		implicit = true
	}
	v *= multiplier

	if reason := c.plausible(fieldID, kind, v); reason != "" {
		return Outcome{Reason: reason, Multiplier: multiplier}
	}
	return Outcome{Value: v, OK: true, Multiplier: multiplier, Implicit: implicit}
}

func (c *Cleaner) implicitApplies(fieldID string, kind alias.Kind, v float64) bool {
	if !c.implicitKinds[kind] {
		return false
	}
	if len(c.implicitFields) > 0 && !c.implicitFields[fieldID] {
		return false
	}
	return v != 0 && math.Abs(v) < c.opts.ImplicitThreshold
}

func (c *Cleaner) plausible(fieldID string, kind alias.Kind, v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "not a finite number"
	}
	if math.Abs(v) > c.opts.MagnitudeLimit {
		return fmt.Sprintf("magnitude %.4g exceeds limit %.4g", v, c.opts.MagnitudeLimit)
	}
	switch kind {
	case alias.KindMonetary:
		if v < 0 && !AllowsNegative(fieldID) {
			return "negative value not allowed"
		}
	case alias.KindCount:
		if v < 0 {
			return "negative count"
		}
	case alias.KindRatio:
		if math.Abs(v) > 1000 {
			return "ratio outside [-1000, 1000]"
		}
	}
	return ""
}

// allowsNegative lists monetary fields that may legitimately be negative even
// when their kind is non-negative.
var allowsNegative = map[string]bool{
	alias.NetProfit:         true,
	alias.NetProfitParent:   true,
	alias.OperatingProfit:   true,
	alias.TotalProfit:       true,
	alias.GrossProfit:       true,
	alias.OperatingCashFlow: true,
	alias.InvestingCashFlow: true,
	alias.FinancingCashFlow: true,
	alias.FreeCashFlow:      true,
	alias.NetCashFlow:       true,
	alias.RetainedEarnings:  true,
}

// AllowsNegative reports whether fieldID may hold a negative value.
func AllowsNegative(fieldID string) bool {
	if allowsNegative[fieldID] {
		return true
	}
	kind, ok := alias.KindOf(fieldID)
	return ok && kind != alias.KindMonetary && kind != alias.KindCount
}

// =============================================================================
// RAW PARSING
// =============================================================================

var (
	absentTokens = map[string]bool{
		"": true, "-": true, "--": true, "—": true, "n/a": true, "na": true, "nan": true,
		"null": true, "none": true, "nil": true, "/": true, "不适用": true, "无": true,
	}
	currencyRe   = regexp.MustCompile(`(?i)(rmb|cny|usd|hkd|eur|人民币|元|[¥￥$€£])`)
	separatorsRe = regexp.MustCompile(`[,，\s'_]`)
)

// parseRaw converts raw into a float and an explicit unit multiplier.
// A non-empty reason means the value is absent or unparseable.
func parseRaw(raw interface{}) (float64, float64, string) {
	switch v := raw.(type) {
	case nil:
		return 0, 1, "missing value"
	case float64:
		return v, 1, ""
	case float32:
		return float64(v), 1, ""
	case int:
		return float64(v), 1, ""
	case int8:
		return float64(v), 1, ""
	case int16:
		return float64(v), 1, ""
	case int32:
		return float64(v), 1, ""
	case int64:
		return float64(v), 1, ""
	case uint:
		return float64(v), 1, ""
	case uint8:
		return float64(v), 1, ""
	case uint16:
		return float64(v), 1, ""
	case uint32:
		return float64(v), 1, ""
	case uint64:
		return float64(v), 1, ""
	case json.Number:
		return parseString(v.String())
	case decimal.Decimal:
		return v.InexactFloat64(), 1, ""
	case bool:
		return 0, 1, "boolean is not numeric"
	case string:
		return parseString(v)
	}
	return 0, 1, fmt.Sprintf("unsupported type %T", raw)
}

func parseString(s string) (float64, float64, string) {
	s = strings.TrimSpace(s)
	if absentTokens[strings.ToLower(s)] {
		return 0, 1, "empty or placeholder value"
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	multiplier, _ := DetectScale(s)
	body := stripUnitWords(s)
	body = currencyRe.ReplaceAllString(body, "")
	body = strings.ReplaceAll(body, "%", "")
	body = separatorsRe.ReplaceAllString(body, "")

	if multiplier == 1 {
		var ok bool
		if body, multiplier, ok = splitNumberSuffix(body); !ok {
			multiplier = 1
		}
	}
	if body == "" {
		return 0, 1, "no digits"
	}

	d, err := decimal.NewFromString(body)
	if err != nil {
		return 0, 1, fmt.Sprintf("not numeric: %q", s)
	}
	f := d.InexactFloat64()
	if negative {
		f = -f
	}
	return f, multiplier, ""
}
