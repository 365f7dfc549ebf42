package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/backy/backend/internal/model"
)

func contactFields() []model.FormField {
	return []model.FormField{
		{Key: "name", Label: "Name", Type: model.FieldText, Required: true},
		{Key: "email", Label: "Email", Type: model.FieldEmail, Required: true},
		{Key: "message", Label: "Message", Type: model.FieldTextarea, Rules: []model.FieldRule{
			{Kind: model.RuleRequired},
			{Kind: model.RuleMinLength, Length: 10},
		}},
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	assert := assert.New(t)

	got := Validate(contactFields(), map[string]any{
		"name":    "",
		"email":   "bad",
		"message": "hi",
	})

	assert.Equal([]Violation{
		{Field: "name", Message: "Name is required"},
		{Field: "email", Message: "Email must be a valid email address"},
		{Field: "message", Message: "Message must be at least 10 characters"},
	}, got)
}

func TestValidateValidValues(t *testing.T) {
	got := Validate(contactFields(), map[string]any{
		"name":    "Ada",
		"email":   "ada@example.com",
		"message": "Hello there, long enough",
	})
	assert.Empty(t, got)
}

func TestValidateRequiredWithoutRules(t *testing.T) {
	assert := assert.New(t)
	fields := []model.FormField{{Key: "company", Type: model.FieldText, Required: true}}

	assert.Len(Validate(fields, map[string]any{}), 1)
	assert.Len(Validate(fields, map[string]any{"company": "   "}), 1)
	assert.Equal("company is required", Validate(fields, nil)[0].Message)
	assert.Empty(Validate(fields, map[string]any{"company": "Acme"}))
}

func TestValidateLengthSkippedWhenEmptyAndOptional(t *testing.T) {
	fields := []model.FormField{{Key: "bio", Type: model.FieldTextarea, Rules: []model.FieldRule{
		{Kind: model.RuleMinLength, Length: 5},
		{Kind: model.RuleMaxLength, Length: 8},
	}}}

	assert.Empty(t, Validate(fields, map[string]any{"bio": ""}))
	assert.Len(t, Validate(fields, map[string]any{"bio": "abc"}), 1)
	assert.Len(t, Validate(fields, map[string]any{"bio": "abcdefghijk"}), 1)
	// rune length, not byte length
	assert.Empty(t, Validate(fields, map[string]any{"bio": "日本語のテキスト"}))
}

func TestValidateInvalidPatternIsFieldError(t *testing.T) {
	assert := assert.New(t)
	fields := []model.FormField{{Key: "code", Type: model.FieldText, Rules: []model.FieldRule{
		{Kind: model.RulePattern, Pattern: "([a-z"},
	}}}

	got := Validate(fields, map[string]any{"code": "abc"})
	assert.Len(got, 1)
	assert.Equal("code", got[0].Field)
	assert.Contains(got[0].Message, "invalid pattern")
}

func TestValidatePattern(t *testing.T) {
	fields := []model.FormField{{Key: "zip", Label: "ZIP", Type: model.FieldText, Rules: []model.FieldRule{
		{Kind: model.RulePattern, Pattern: `^\d{3}-\d{4}$`, Message: "use 123-4567"},
	}}}

	assert.Empty(t, Validate(fields, map[string]any{"zip": "150-0001"}))
	assert.Equal(t, []Violation{{Field: "zip", Message: "use 123-4567"}}, Validate(fields, map[string]any{"zip": "1500001"}))
	assert.Empty(t, Validate(fields, map[string]any{}))
}

func TestValidateNumericBounds(t *testing.T) {
	fields := []model.FormField{{Key: "guests", Type: model.FieldNumber, Rules: []model.FieldRule{
		{Kind: model.RuleMin, Limit: 1},
		{Kind: model.RuleMax, Limit: 10},
	}}}

	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"in range number", float64(4), 0},
		{"in range string", "4", 0},
		{"below", float64(0), 1},
		{"above", "11", 1},
		{"non numeric skipped", "lots", 0},
		{"missing skipped", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Validate(fields, map[string]any{"guests": tt.value}), tt.want)
		})
	}
}

func TestValidateEmailTypeWithExplicitRulesSkipsImplicitCheck(t *testing.T) {
	fields := []model.FormField{{Key: "email", Type: model.FieldEmail, Rules: []model.FieldRule{
		{Kind: model.RuleMaxLength, Length: 100},
	}}}
	assert.Empty(t, Validate(fields, map[string]any{"email": "not-an-email"}))
}

func TestValidateExplicitEmailRule(t *testing.T) {
	fields := []model.FormField{{Key: "reply_to", Type: model.FieldText, Rules: []model.FieldRule{
		{Kind: model.RuleEmail},
	}}}
	assert.Len(t, Validate(fields, map[string]any{"reply_to": "nope"}), 1)
	assert.Empty(t, Validate(fields, map[string]any{"reply_to": "a@b.co"}))
}

func TestValidateUncheckedRequiredCheckbox(t *testing.T) {
	fields := []model.FormField{{Key: "consent", Type: model.FieldCheckbox, Required: true}}
	assert.Len(t, Validate(fields, map[string]any{"consent": false}), 1)
	assert.Empty(t, Validate(fields, map[string]any{"consent": true}))
}

func TestCompilePatternReusesCompiled(t *testing.T) {
	assert := assert.New(t)

	first, err := compilePattern(`^[A-Z]{3}-\d+$`)
	assert.NoError(err)
	second, err := compilePattern(`^[A-Z]{3}-\d+$`)
	assert.NoError(err)
	assert.Same(first, second)

	_, err = compilePattern(`([unclosed`)
	assert.Error(err)
	assert.False(patterns.Contains(`([unclosed`))
}
