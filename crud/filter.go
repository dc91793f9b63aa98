package crud

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dkoval/tabletalk/model"
)

// Filter operators accepted in a filter mapping. A filter value is either a
// bare literal (exact match) or an object keyed by one of these operators,
// e.g. {"age": {"gt": 10}}.
const (
	OpLike = "like" // substring containment on the text form
	OpEq   = "eq"   // exact equality
	OpGt   = "gt"   // greater-than
	OpLt   = "lt"   // less-than
)

// ApplyFilters returns the records matching every entry of the filter
// mapping. A record missing a filtered field never matches.
func ApplyFilters(records []model.Record, filters map[string]any) []model.Record {
	if len(filters) == 0 {
		return records
	}
	matched := make([]model.Record, 0, len(records))
	for _, rec := range records {
		if matchRecord(rec, filters) {
			matched = append(matched, rec)
		}
	}
	return matched
}

func matchRecord(rec model.Record, filters map[string]any) bool {
	for field, cond := range filters {
		value, ok := rec[field]
		if !ok {
			return false
		}
		if !matchCondition(value, cond) {
			return false
		}
	}
	return true
}

// matchCondition evaluates one filter entry against a field value. Operator
// objects apply their comparison; anything else is treated as a literal and
// matched for equality.
func matchCondition(value, cond any) bool {
	ops, ok := cond.(map[string]any)
	if !ok {
		return equalValues(value, cond)
	}
	for op, operand := range ops {
		switch op {
		case OpLike:
			if !strings.Contains(textForm(value), textForm(operand)) {
				return false
			}
		case OpEq:
			if !equalValues(value, operand) {
				return false
			}
		case OpGt:
			cmp, comparable := compareValues(value, operand)
			if !comparable || cmp <= 0 {
				return false
			}
		case OpLt:
			cmp, comparable := compareValues(value, operand)
			if !comparable || cmp >= 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// equalValues compares numerically when both sides look numeric, falling
// back to text-form equality otherwise.
func equalValues(a, b any) bool {
	if av, aok := numericForm(a); aok {
		if bv, bok := numericForm(b); bok {
			return av == bv
		}
	}
	return textForm(a) == textForm(b)
}

// compareValues orders two values, numerically when possible and
// lexicographically otherwise. The second return is false when the sides
// cannot be compared.
func compareValues(a, b any) (int, bool) {
	if av, aok := numericForm(a); aok {
		if bv, bok := numericForm(b); bok {
			switch {
			case av < bv:
				return -1, true
			case av > bv:
				return 1, true
			}
			return 0, true
		}
	}
	return strings.Compare(textForm(a), textForm(b)), true
}

func numericForm(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func textForm(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}
