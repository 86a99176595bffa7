package intake

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

var leadingNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// FieldLookup returns the value of a field if it was extracted or entered.
type FieldLookup func(fieldID string) (any, bool)

// EvaluateRule returns the violation message, or "" when the rule holds.
func EvaluateRule(rule domain.CrossFieldRule, lookup FieldLookup) string {
	if !conditionHolds(rule.When, lookup) {
		return ""
	}

	missing := make([]string, 0)
	for _, fieldID := range rule.Require {
		if value, ok := lookup(fieldID); !ok || isBlank(value) {
			missing = append(missing, fieldID)
		}
	}
	if len(missing) == 0 {
		return ""
	}
	if rule.Message != "" {
		return rule.Message
	}
	return fmt.Sprintf("%s: %s required when %s %s %s", rule.ID, strings.Join(missing, ", "), rule.When.Field, rule.When.Operator, rule.When.Value)
}

func conditionHolds(cond domain.RuleCondition, lookup FieldLookup) bool {
	value, ok := lookup(cond.Field)
	present := ok && !isBlank(value)

	switch cond.Operator {
	case domain.OpPresent:
		return present
	case domain.OpAbsent:
		return !present
	}
	if !present {
		return false
	}

	actual := valueString(value)
	switch cond.Operator {
	case domain.OpEqual:
		return equalValues(actual, cond.Value)
	case domain.OpNotEqual:
		return !equalValues(actual, cond.Value)
	}

	left, lok := parseLeadingNumber(actual)
	right, rok := parseLeadingNumber(cond.Value)
	if !lok || !rok {
		return false
	}
	switch cond.Operator {
	case domain.OpLessThan:
		return left < right
	case domain.OpLessOrEqual:
		return left <= right
	case domain.OpGreaterThan:
		return left > right
	case domain.OpGreaterOrEqual:
		return left >= right
	default:
		return false
	}
}

func equalValues(a, b string) bool {
	if x, ok := parseLeadingNumber(a); ok {
		if y, ok := parseLeadingNumber(b); ok {
			return x == y
		}
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func parseLeadingNumber(s string) (float64, bool) {
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	return n, err == nil
}

func valueString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	default:
		return fmt.Sprint(t)
	}
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}
