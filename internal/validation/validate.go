// Package validation evaluates declared form field rules against submitted values.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/backy/backend/internal/model"
)

// Violation is a single failed rule on a field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validate = validator.New()

const patternCacheSize = 256

// patterns holds compiled pattern rules keyed by their source.
var patterns, _ = lru.New[string, *regexp.Regexp](patternCacheSize)

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patterns.Add(pattern, re)
	return re, nil
}

// Validate runs every field's rules in declaration order and collects all
// violations. An empty result means the values are valid.
func Validate(fields []model.FormField, values map[string]any) []Violation {
	var out []Violation
	for _, field := range fields {
		out = append(out, validateField(field, values[field.Key])...)
	}
	return out
}

func validateField(field model.FormField, raw any) []Violation {
	var out []Violation
	label := field.Label
	if label == "" {
		label = field.Key
	}
	required := field.Required || hasRule(field.Rules, model.RuleRequired)
	empty := isEmpty(field, raw)
	str := stringValue(raw)

	if field.Required && !hasRule(field.Rules, model.RuleRequired) && empty {
		out = append(out, Violation{Field: field.Key, Message: label + " is required"})
	}

	if len(field.Rules) == 0 && field.Type == model.FieldEmail && !empty {
		if validate.Var(strings.TrimSpace(str), "email") != nil {
			out = append(out, Violation{Field: field.Key, Message: label + " must be a valid email address"})
		}
		return out
	}

	for _, rule := range field.Rules {
		msg, failed := check(rule, label, str, raw, empty, required)
		if !failed {
			continue
		}
		if rule.Message != "" {
			msg = rule.Message
		}
		out = append(out, Violation{Field: field.Key, Message: msg})
	}
	return out
}

// check evaluates one rule. It returns the default message and whether the rule failed.
func check(rule model.FieldRule, label, str string, raw any, empty, required bool) (string, bool) {
	switch rule.Kind {
	case model.RuleRequired:
		return label + " is required", empty

	case model.RuleMinLength:
		if empty && !required {
			return "", false
		}
		return fmt.Sprintf("%s must be at least %d characters", label, rule.Length),
			utf8.RuneCountInString(str) < rule.Length

	case model.RuleMaxLength:
		if empty && !required {
			return "", false
		}
		return fmt.Sprintf("%s must be at most %d characters", label, rule.Length),
			utf8.RuneCountInString(str) > rule.Length

	case model.RulePattern:
		re, err := compilePattern(rule.Pattern)
		if err != nil {
			return label + " has an invalid pattern rule", true
		}
		if empty {
			return "", false
		}
		return label + " is not in the expected format", !re.MatchString(str)

	case model.RuleMin:
		n, ok := numberValue(raw)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s must be at least %s", label, formatNumber(rule.Limit)), n < rule.Limit

	case model.RuleMax:
		n, ok := numberValue(raw)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s must be at most %s", label, formatNumber(rule.Limit)), n > rule.Limit

	case model.RuleEmail:
		if empty {
			return "", false
		}
		return label + " must be a valid email address", validate.Var(strings.TrimSpace(str), "email") != nil
	}
	return "", false
}

func hasRule(rules []model.FieldRule, kind model.RuleKind) bool {
	for _, r := range rules {
		if r.Kind == kind {
			return true
		}
	}
	return false
}

// isEmpty treats missing values, nil, whitespace-only strings, empty lists and
// an unchecked checkbox as empty.
func isEmpty(field model.FormField, raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case bool:
		return field.Type == model.FieldCheckbox && !v
	}
	return false
}

// stringValue renders a submitted value the way it is measured and matched.
func stringValue(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, stringValue(p))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(v, ", ")
	}
	return fmt.Sprint(raw)
}

func numberValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	}
	return 0, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// IsEmail reports whether s is a syntactically valid email address.
func IsEmail(s string) bool {
	return validate.Var(s, "email") == nil
}
