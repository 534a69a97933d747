package validation_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-kernel/framework/http/validation"
)

type ruleCase struct {
	name  string
	data  map[string]string
	field string // empty when the data should pass
}

func run(t *testing.T, rules validation.Rules, cases []ruleCase) {
	t.Helper()
	rs, err := validation.Compile(rules)
	require.NoError(t, err)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := rs.Validate(tc.data)
			if tc.field == "" {
				assert.False(t, errs.Has(), "unexpected errors: %v", errs.Bag)
				return
			}
			assert.NotEmpty(t, errs.First(tc.field), "expected an error on %q", tc.field)
		})
	}
}

func one(key, value string) map[string]string { return map[string]string{key: value} }

func TestRequired(t *testing.T) {
	run(t, validation.Rules{"name": "required"}, []ruleCase{
		{"present", one("name", "Alice"), ""},
		{"empty", one("name", ""), "name"},
		{"whitespace", one("name", "   "), "name"},
		{"missing", map[string]string{}, "name"},
	})

	errs := validation.MustCompile(validation.Rules{"name": "required"}).Validate(nil)
	assert.Equal(t, "The name field is required.", errs.First("name"))
}

func TestLengthRules(t *testing.T) {
	run(t, validation.Rules{"name": "min:3"}, []ruleCase{
		{"exact", one("name", "abc"), ""},
		{"short", one("name", "ab"), "name"},
		{"runes counted", one("name", "日本語"), ""},
		{"runes short", one("name", "日本"), "name"},
	})
	run(t, validation.Rules{"bio": "max:5"}, []ruleCase{
		{"exact", one("bio", "hello"), ""},
		{"long", one("bio", "toolong"), "bio"},
	})
	run(t, validation.Rules{"code": "size:4"}, []ruleCase{
		{"exact", one("code", "1234"), ""},
		{"short", one("code", "123"), "code"},
		{"long", one("code", "12345"), "code"},
	})
	run(t, validation.Rules{"pin": "between:4,6"}, []ruleCase{
		{"lower bound", one("pin", "1234"), ""},
		{"upper bound", one("pin", "123456"), ""},
		{"short", one("pin", "123"), "pin"},
		{"long", one("pin", "1234567"), "pin"},
	})
}

func TestFormatRules(t *testing.T) {
	run(t, validation.Rules{"email": "email"}, []ruleCase{
		{"valid", one("email", "user@example.com"), ""},
		{"no at", one("email", "notanemail"), "email"},
		{"no domain", one("email", "user@"), "email"},
	})
	run(t, validation.Rules{"website": "url"}, []ruleCase{
		{"https", one("website", "https://example.com/path?q=1"), ""},
		{"bare host", one("website", "example.com"), "website"},
		{"ftp", one("website", "ftp://example.com"), "website"},
	})
	run(t, validation.Rules{"zip": `regex:^\d{5}$`}, []ruleCase{
		{"digits", one("zip", "12345"), ""},
		{"four digits", one("zip", "1234"), "zip"},
		{"letters", one("zip", "abcde"), "zip"},
	})
	run(t, validation.Rules{"slug": "alpha_dash"}, []ruleCase{
		{"dash and underscore", one("slug", "user_name-123"), ""},
		{"dot", one("slug", "user.name"), "slug"},
	})
	run(t, validation.Rules{"slug": "alpha_num"}, []ruleCase{
		{"letters and digits", one("slug", "user123"), ""},
		{"dash", one("slug", "user-123"), "slug"},
	})
	run(t, validation.Rules{"name": "alpha"}, []ruleCase{
		{"letters", one("name", "HelloWorld"), ""},
		{"digits", one("name", "hello123"), "name"},
	})
}

func TestTypeRules(t *testing.T) {
	run(t, validation.Rules{"amount": "numeric"}, []ruleCase{
		{"float", one("amount", "3.14"), ""},
		{"negative", one("amount", "-5.5"), ""},
		{"mixed", one("amount", "12abc"), "amount"},
	})
	run(t, validation.Rules{"count": "integer"}, []ruleCase{
		{"negative", one("count", "-3"), ""},
		{"float", one("count", "3.14"), "count"},
	})
	run(t, validation.Rules{"active": "boolean"}, []ruleCase{
		{"yes", one("active", "yes"), ""},
		{"mixed case", one("active", "False"), ""},
		{"maybe", one("active", "maybe"), "active"},
	})
	run(t, validation.Rules{"role": "in:admin,editor,viewer"}, []ruleCase{
		{"listed", one("role", "editor"), ""},
		{"unlisted", one("role", "superuser"), "role"},
		{"empty", one("role", ""), "role"},
	})
	run(t, validation.Rules{"status": "not_in:banned,suspended"}, []ruleCase{
		{"allowed", one("status", "active"), ""},
		{"banned", one("status", "banned"), "status"},
	})
}

func TestNumericComparisons(t *testing.T) {
	run(t, validation.Rules{"age": "gt:18"}, []ruleCase{
		{"above", one("age", "19"), ""},
		{"equal", one("age", "18"), "age"},
	})
	run(t, validation.Rules{"age": "gte:18"}, []ruleCase{
		{"equal", one("age", "18"), ""},
		{"below", one("age", "17"), "age"},
	})
	run(t, validation.Rules{"score": "lt:100"}, []ruleCase{
		{"below", one("score", "99"), ""},
		{"equal", one("score", "100"), "score"},
	})
	run(t, validation.Rules{"score": "lte:100"}, []ruleCase{
		{"equal", one("score", "100"), ""},
		{"above", one("score", "101"), "score"},
	})
}

func TestCrossFieldRules(t *testing.T) {
	run(t, validation.Rules{"password": "confirmed"}, []ruleCase{
		{"match", map[string]string{"password": "secret", "password_confirmation": "secret"}, ""},
		{"mismatch", map[string]string{"password": "secret", "password_confirmation": "wrong"}, "password"},
		{"missing", one("password", "secret"), "password"},
	})
	run(t, validation.Rules{"confirm_email": "same:email"}, []ruleCase{
		{"same", map[string]string{"email": "a@b.com", "confirm_email": "a@b.com"}, ""},
		{"different", map[string]string{"email": "a@b.com", "confirm_email": "c@d.com"}, "confirm_email"},
	})
	run(t, validation.Rules{"new_password": "different:old_password"}, []ruleCase{
		{"different", map[string]string{"old_password": "old", "new_password": "new"}, ""},
		{"same", map[string]string{"old_password": "x", "new_password": "x"}, "new_password"},
	})
}

func TestNullableAndSometimes(t *testing.T) {
	run(t, validation.Rules{"bio": "nullable|min:10"}, []ruleCase{
		{"empty skips the rest", one("bio", ""), ""},
		{"present is checked", one("bio", "short"), "bio"},
	})
	run(t, validation.Rules{"nickname": "sometimes|min:3"}, []ruleCase{
		{"absent", map[string]string{}, ""},
		{"present", one("nickname", "coolname"), ""},
		{"present and short", one("nickname", "ab"), "nickname"},
	})
}

func TestFirstFailureStopsField(t *testing.T) {
	errs := validation.MustCompile(validation.Rules{"age": "required|integer|gte:18"}).
		Validate(one("age", "abc"))

	assert.Equal(t, []string{"The age must be an integer."}, errs.Bag["age"])
}

func TestCompile_RejectsUnknownRule(t *testing.T) {
	_, err := validation.Compile(validation.Rules{"name": "required|shiny"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown rule "shiny"`)
}

func TestCompile_RejectsBadRegex(t *testing.T) {
	_, err := validation.Compile(validation.Rules{"zip": "regex:(["})
	require.Error(t, err)
}

func TestRuleset_ConcurrentUse(t *testing.T) {
	rs := validation.MustCompile(validation.Rules{"id": "required|integer"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, rs.Passes(one("id", "42")))
			assert.False(t, rs.Passes(one("id", "x")))
		}()
	}
	wg.Wait()
}

func TestValidator_Make(t *testing.T) {
	rules := validation.Rules{
		"email":    "required|email",
		"password": "required|min:8|confirmed",
		"age":      "required|integer|gte:18",
	}

	ok := validation.Make(map[string]string{
		"email":                 "user@example.com",
		"password":              "secret123",
		"password_confirmation": "secret123",
		"age":                   "25",
	}, rules)
	assert.True(t, ok.Passes(), "errors: %v", ok.Errors().Bag)

	bad := validation.Make(map[string]string{"email": "nope", "password": "short", "age": "16"}, rules)
	require.True(t, bad.Fails())
	for _, field := range []string{"email", "password", "age"} {
		assert.NotEmpty(t, bad.Errors().First(field), field)
	}
	assert.Empty(t, bad.Errors().First("nonexistent"))
}

func TestValidator_InvalidRulesFail(t *testing.T) {
	v := validation.Make(one("name", "x"), validation.Rules{"name": "bogus"})
	assert.True(t, v.Fails())
	assert.NotEmpty(t, v.Errors().First("rules"))
}

func TestErrors_JSONShape(t *testing.T) {
	v := validation.Make(one("email", ""), validation.Rules{"email": "required"})
	require.True(t, v.Fails())

	b, err := json.Marshal(v.Errors())
	require.NoError(t, err)
	assert.JSONEq(t, `{"errors":{"email":["The email field is required."]}}`, string(b))
}
