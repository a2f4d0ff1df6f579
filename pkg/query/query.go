// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package query provides a small filter language over backend records
// (scans, drift items, coverage items, compliance rules, accounts).
//
// Query Syntax:
//
//	field=value           Exact match (case-insensitive, * wildcards)
//	field!=value          Not equal
//	field~=pattern        Regex match
//	field:text            Substring match (case-insensitive)
//	field=value1,value2   IN list (comma-separated)
//
// Operators:
//
//	AND                   Both conditions must match (default)
//	OR                    Either condition must match
//
// Operators are applied left to right without precedence.
//
// Examples:
//
//	status=failed
//	severity=High AND service=EC2
//	status=running OR status=failed
//	region=us-* AND type!=compliance
//	name:prod
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// Operator joins two conditions.
type Operator string

const (
	OpAnd Operator = "AND"
	OpOr  Operator = "OR"
)

// Comparator says how a field value is compared.
type Comparator string

const (
	CmpEqual    Comparator = "="
	CmpNotEqual Comparator = "!="
	CmpRegex    Comparator = "~="
	CmpContains Comparator = ":"
	CmpIn       Comparator = "IN"
)

// Condition is a single field comparison.
type Condition struct {
	Field      string
	Comparator Comparator
	Value      string
	Values     []string       // for CmpIn
	Regex      *regexp.Regexp // for CmpRegex and wildcard CmpEqual
}

// Query is a parsed filter.
type Query struct {
	Conditions []Condition
	Operators  []Operator // len(Operators) == len(Conditions)-1
}

// Matchable is implemented by every record that can be filtered.
type Matchable interface {
	GetField(field string) (string, bool)
}

// Parse parses a filter string. An empty string matches everything.
func Parse(input string) (*Query, error) {
	q := &Query{}
	if strings.TrimSpace(input) == "" {
		return q, nil
	}

	for i, token := range tokenize(input) {
		if token == string(OpAnd) || token == string(OpOr) {
			if len(q.Conditions) == 0 || len(q.Operators) == len(q.Conditions) {
				return nil, fmt.Errorf("operator %s without preceding condition", token)
			}
			q.Operators = append(q.Operators, Operator(token))
			continue
		}

		cond, err := parseCondition(token)
		if err != nil {
			return nil, fmt.Errorf("invalid condition at position %d: %w", i, err)
		}
		// Adjacent conditions without an operator are ANDed.
		if len(q.Conditions) > len(q.Operators) {
			q.Operators = append(q.Operators, OpAnd)
		}
		q.Conditions = append(q.Conditions, cond)
	}

	if len(q.Conditions) > 0 && len(q.Operators) >= len(q.Conditions) {
		return nil, fmt.Errorf("query ends with operator %s", q.Operators[len(q.Operators)-1])
	}
	return q, nil
}

// MustParse is Parse that panics on error, for fixed queries in code and tests.
func MustParse(input string) *Query {
	q, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return q
}

// tokenize splits on whitespace into conditions and upper-cased AND/OR.
// Each whitespace-separated word that is not an operator is its own condition.
func tokenize(input string) []string {
	words := strings.Fields(input)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		switch strings.ToUpper(w) {
		case string(OpAnd), string(OpOr):
			tokens = append(tokens, strings.ToUpper(w))
		default:
			tokens = append(tokens, w)
		}
	}
	return tokens
}

func parseCondition(s string) (Condition, error) {
	if idx := strings.Index(s, "~="); idx > 0 {
		field, value := s[:idx], s[idx+2:]
		re, err := regexp.Compile(value)
		if err != nil {
			return Condition{}, fmt.Errorf("invalid regex %q: %w", value, err)
		}
		return Condition{Field: field, Comparator: CmpRegex, Value: value, Regex: re}, nil
	}

	if idx := strings.Index(s, "!="); idx > 0 {
		return Condition{Field: s[:idx], Comparator: CmpNotEqual, Value: s[idx+2:]}, nil
	}

	eq := strings.Index(s, "=")
	colon := strings.Index(s, ":")
	if colon > 0 && (eq < 0 || colon < eq) {
		return Condition{Field: s[:colon], Comparator: CmpContains, Value: s[colon+1:]}, nil
	}

	if eq > 0 {
		field, value := s[:eq], s[eq+1:]
		if strings.Contains(value, ",") {
			var values []string
			for _, v := range strings.Split(value, ",") {
				if v = strings.TrimSpace(v); v != "" {
					values = append(values, v)
				}
			}
			return Condition{Field: field, Comparator: CmpIn, Values: values}, nil
		}
		cond := Condition{Field: field, Comparator: CmpEqual, Value: value}
		if strings.Contains(value, "*") {
			pattern := "(?i)^" + strings.ReplaceAll(regexp.QuoteMeta(value), `\*`, ".*") + "$"
			cond.Regex = regexp.MustCompile(pattern)
		}
		return cond, nil
	}

	return Condition{}, fmt.Errorf("invalid condition syntax: %q (expected field=value)", s)
}

// Matches evaluates the query against one record.
func (q *Query) Matches(entry Matchable) bool {
	if q == nil || len(q.Conditions) == 0 {
		return true
	}
	result := q.Conditions[0].eval(entry)
	for i, op := range q.Operators {
		next := q.Conditions[i+1].eval(entry)
		switch op {
		case OpAnd:
			result = result && next
		case OpOr:
			result = result || next
		}
	}
	return result
}

// Filter returns the records of items matched by q, preserving order.
func Filter[T Matchable](q *Query, items []T) []T {
	if q == nil || len(q.Conditions) == 0 {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if q.Matches(item) {
			out = append(out, item)
		}
	}
	return out
}

func (c Condition) eval(entry Matchable) bool {
	value, exists := entry.GetField(c.Field)

	switch c.Comparator {
	case CmpEqual:
		if !exists {
			return false
		}
		if c.Regex != nil {
			return c.Regex.MatchString(value)
		}
		return strings.EqualFold(value, c.Value)

	case CmpNotEqual:
		if !exists {
			return true // a missing field differs from every value
		}
		return !strings.EqualFold(value, c.Value)

	case CmpRegex:
		return exists && c.Regex.MatchString(value)

	case CmpContains:
		return exists && strings.Contains(strings.ToLower(value), strings.ToLower(c.Value))

	case CmpIn:
		if !exists {
			return false
		}
		for _, v := range c.Values {
			if strings.EqualFold(value, v) {
				return true
			}
		}
	}
	return false
}

// String renders the query back in its input syntax.
func (q *Query) String() string {
	if q == nil || len(q.Conditions) == 0 {
		return ""
	}
	parts := make([]string, 0, 2*len(q.Conditions))
	for i, cond := range q.Conditions {
		parts = append(parts, cond.String())
		if i < len(q.Operators) {
			parts = append(parts, string(q.Operators[i]))
		}
	}
	return strings.Join(parts, " ")
}

// String renders the condition in its input syntax.
func (c Condition) String() string {
	switch c.Comparator {
	case CmpIn:
		return c.Field + "=" + strings.Join(c.Values, ",")
	case CmpRegex:
		return c.Field + "~=" + c.Value
	case CmpNotEqual:
		return c.Field + "!=" + c.Value
	case CmpContains:
		return c.Field + ":" + c.Value
	default:
		return c.Field + "=" + c.Value
	}
}
