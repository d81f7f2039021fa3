package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v2"
)

// ErrParseFailed is returned when a text payload cannot be decoded into a
// structured tree by any strategy.
var ErrParseFailed = errors.New("payload could not be parsed")

// ParseResult reports which strategy decoded a payload.
type ParseResult struct {
	Value    interface{}
	Strategy string // "json", "yaml", "json_repair", "hjson"
	Lenient  bool
}

// ParsePayload decodes a text payload.
// Order of attempts:
// 1. Standard JSON (or YAML for documents starting with "---")
// 2. JSON repair, only when the text looks like an object or array
// 3. Hjson
// Lenient results (2, 3) are accepted only when they yield a non-empty map or
// slice carrying at least one numeric leaf and no null or empty leaves, which
// is what repair produces when it fills in missing values. A strict decode to
// a scalar is returned as-is: that is a shape problem for the caller, not a
// parse failure.
func ParsePayload(text string) (ParseResult, error) {
	trimmed := strings.TrimSpace(stripCodeFence(text))
	if trimmed == "" {
		return ParseResult{}, fmt.Errorf("%w: EMPTY_PAYLOAD", ErrParseFailed)
	}

	if strings.HasPrefix(trimmed, "---") {
		v, err := ParseYAML(trimmed)
		if err == nil {
			return ParseResult{Value: v, Strategy: "yaml"}, nil
		}
	}

	var v interface{}
	strictErr := json.Unmarshal([]byte(trimmed), &v)
	if strictErr == nil {
		return ParseResult{Value: v, Strategy: "json"}, nil
	}

	if strings.ContainsAny(trimmed, "{[") {
		if repaired, err := RepairJSON(trimmed); err == nil {
			var rv interface{}
			if err := json.Unmarshal([]byte(repaired), &rv); err == nil && isRecoverable(rv) {
				return ParseResult{Value: rv, Strategy: "json_repair", Lenient: true}, nil
			}
		}
	}

	if hv, err := ParseHJSON(trimmed); err == nil && isRecoverable(hv) {
		return ParseResult{Value: hv, Strategy: "hjson", Lenient: true}, nil
	}

	return ParseResult{}, fmt.Errorf("%w: JSON_STRUCTURAL_ERROR: %v", ErrParseFailed, strictErr)
}

// RepairJSON attempts to fix common JSON errors (single quotes, unquoted keys,
// trailing commas, unclosed brackets, comments).
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (comments, unquoted keys and strings,
// optional commas) into a generic tree with JSON-compatible types.
func ParseHJSON(hjsonData string) (interface{}, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return nil, fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	// round-trip so numbers and maps use encoding/json types
	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	var out interface{}
	if err := json.Unmarshal(jsonBytes, &out); err != nil {
		return nil, fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return out, nil
}

// ParseYAML decodes a YAML document and converts yaml.v2's interface-keyed
// maps into string-keyed maps.
func ParseYAML(data string) (interface{}, error) {
	var raw interface{}
	if err := yaml.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("YAML_PARSE_ERROR: %v", err)
	}
	return stringifyKeys(raw), nil
}

func stringifyKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringifyKeys(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = stringifyKeys(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = stringifyKeys(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return v
}

func isRecoverable(v interface{}) bool {
	switch t := v.(type) {
	case map[string]interface{}:
		if len(t) == 0 {
			return false
		}
	case []interface{}:
		if len(t) == 0 {
			return false
		}
	default:
		return false
	}
	numeric := 0
	if !walkLeaves(v, &numeric) {
		return false
	}
	return numeric > 0
}

// walkLeaves counts numeric leaves and reports false on a null or blank leaf.
func walkLeaves(v interface{}, numeric *int) bool {
	switch t := v.(type) {
	case nil:
		return false
	case map[string]interface{}:
		for _, val := range t {
			if !walkLeaves(val, numeric) {
				return false
			}
		}
	case []interface{}:
		for _, val := range t {
			if !walkLeaves(val, numeric) {
				return false
			}
		}
	case float64:
		*numeric++
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return false
		}
		if strings.ContainsAny(s, "0123456789") {
			*numeric++
		}
	}
	return true
}

// stripCodeFence removes an outer ``` fence (```json, ```yaml) if present.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	t = strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.ContainsAny(t[:nl], "{[") {
		t = t[nl+1:]
	}
	return t
}

// CanonicalJSON renders v with sorted map keys. encoding/json already sorts
// map keys, so this is a stable content encoding for hashing.
func CanonicalJSON(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return b, nil
}
