// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package query

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ConfigChange is one field whose current value differs from the baseline.
type ConfigChange struct {
	Path     string `json:"path"`
	Expected any    `json:"expected"`
	Current  any    `json:"current"`
}

// WholeConfig is the path used when a summary has no "field: value" pairs.
const WholeConfig = ""

// FieldsToIgnore are volatile fields that change on every scan and are never drift.
var FieldsToIgnore = map[string]bool{
	"last_modified":      true,
	"last_modified_time": true,
	"updated_at":         true,
	"scan_time":          true,
	"etag":               true,
}

// ConfigChanges compares the expected and current config summaries of a
// drifted resource, e.g. "Backup retention: 30 days, Encrypted: true", and
// returns the fields that differ, sorted by path.
func ConfigChanges(expected, current string) []ConfigChange {
	changes := compare("", ParseConfigSummary(expected), ParseConfigSummary(current))
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

// ParseConfigSummary reads a "field: value, field: value" summary into a map.
// A segment that does not start a new pair is appended to the previous value,
// so "Inbound: 80, 443" keeps both ports. Text with no pairs at all is stored
// whole under WholeConfig. Values that look like booleans or numbers are
// converted so "True" and "true" or "30" and "30.0" compare equal.
func ParseConfigSummary(s string) map[string]any {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]any{}
	}

	raw := map[string]string{}
	var order []string
	last := ""
	for _, seg := range strings.Split(s, ", ") {
		if key, value, ok := splitPair(seg); ok {
			raw[key] = value
			order = append(order, key)
			last = key
			continue
		}
		if last == "" {
			// leading text before any pair; the summary is not a field list
			return map[string]any{WholeConfig: scalar(s)}
		}
		raw[last] += ", " + seg
	}

	out := make(map[string]any, len(order))
	for _, k := range order {
		out[k] = scalar(raw[k])
	}
	return out
}

// splitPair splits "Field name: value". Keys never contain parentheses,
// which keeps "sg-1 (ports: 80)" from parsing as a field named "sg-1 (ports".
func splitPair(seg string) (string, string, bool) {
	idx := strings.Index(seg, ": ")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(seg[:idx])
	if key == "" || strings.ContainsAny(key, "()[]{}") {
		return "", "", false
	}
	return key, strings.TrimSpace(seg[idx+2:]), true
}

func scalar(v string) any {
	switch strings.ToLower(v) {
	case "true", "enabled":
		return true
	case "false", "disabled":
		return false
	case "none", "null", "<not set>":
		return nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

// compare recursively compares expected against current and returns differences.
func compare(path string, expected, current any) []ConfigChange {
	if path != "" && shouldIgnore(path) {
		return nil
	}

	if expected == nil && current == nil {
		return nil
	}
	if expected == nil || current == nil {
		return []ConfigChange{{Path: path, Expected: expected, Current: current}}
	}

	if reflect.TypeOf(expected) != reflect.TypeOf(current) {
		if numbersEqual(expected, current) {
			return nil
		}
		return []ConfigChange{{Path: path, Expected: expected, Current: current}}
	}

	var changes []ConfigChange
	switch exp := expected.(type) {
	case map[string]any:
		cur := current.(map[string]any)
		for k, v := range exp {
			changes = append(changes, compare(joinPath(path, k), v, cur[k])...)
		}
		for k, v := range cur {
			if _, exists := exp[k]; !exists {
				changes = append(changes, compare(joinPath(path, k), nil, v)...)
			}
		}

	case []any:
		cur := current.([]any)
		if len(exp) != len(cur) {
			return []ConfigChange{{Path: path, Expected: exp, Current: cur}}
		}
		for i := range exp {
			changes = append(changes, compare(fmt.Sprintf("%s[%d]", path, i), exp[i], cur[i])...)
		}

	case string:
		if !strings.EqualFold(exp, current.(string)) {
			changes = append(changes, ConfigChange{Path: path, Expected: expected, Current: current})
		}

	default:
		if !reflect.DeepEqual(expected, current) {
			changes = append(changes, ConfigChange{Path: path, Expected: expected, Current: current})
		}
	}
	return changes
}

// shouldIgnore matches FieldsToIgnore case-insensitively, by exact path or prefix.
func shouldIgnore(path string) bool {
	p := strings.ToLower(strings.ReplaceAll(path, " ", "_"))
	if FieldsToIgnore[p] {
		return true
	}
	for ignore := range FieldsToIgnore {
		if strings.HasPrefix(p, ignore+".") || strings.HasPrefix(p, ignore+"[") {
			return true
		}
	}
	return false
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// numbersEqual checks whether two values are numerically equal despite type differences.
func numbersEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
