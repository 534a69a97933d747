package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ── Types ────────────────────────────────────────────────────────────────────

// Errors holds validation errors, shaped like Laravel's MessageBag.
// JSON output: {"errors": {"field": ["msg1", "msg2"]}}
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *Errors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs, ok := e.Bag[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Rules is a map of field → pipe-separated rule string.
// e.g. Rules{"email": "required|email", "age": "required|numeric|min:18"}
type Rules map[string]string

// ── Ruleset ──────────────────────────────────────────────────────────────────

// rule is one parsed "name:param" entry.
type rule struct {
	name  string
	param string
	re    *regexp.Regexp // regex rule only
	check func(r *rule, field, value string, data map[string]string) string
}

type fieldRules struct {
	field string
	rules []*rule
}

// Ruleset is a compiled Rules map. It is immutable and safe for concurrent
// use, so it can be compiled once at startup and reused for every request.
type Ruleset struct {
	fields []fieldRules
}

// Compile parses rules once. Unknown rule names and invalid regex patterns
// are reported here instead of at validation time.
func Compile(rules Rules) (*Ruleset, error) {
	rs := &Ruleset{}
	for field, expr := range rules {
		fr := fieldRules{field: field}
		for _, raw := range strings.Split(expr, "|") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			name, param, _ := strings.Cut(raw, ":")
			check, ok := checks[name]
			if !ok && name != "nullable" && name != "sometimes" {
				return nil, fmt.Errorf("validation: unknown rule %q for field %q", name, field)
			}
			r := &rule{name: name, param: param, check: check}
			if name == "regex" {
				re, err := regexp.Compile(param)
				if err != nil {
					return nil, fmt.Errorf("validation: field %q: %w", field, err)
				}
				r.re = re
			}
			fr.rules = append(fr.rules, r)
		}
		rs.fields = append(rs.fields, fr)
	}
	sort.Slice(rs.fields, func(i, j int) bool { return rs.fields[i].field < rs.fields[j].field })
	return rs, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(rules Rules) *Ruleset {
	rs, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return rs
}

// Validate checks data and returns the error bag. Rules of a field stop at
// the first failure, like Laravel's bail.
func (rs *Ruleset) Validate(data map[string]string) *Errors {
	errs := &Errors{}
	for _, fr := range rs.fields {
		value := data[fr.field]
		for _, r := range fr.rules {
			if (r.name == "nullable" || r.name == "sometimes") && strings.TrimSpace(value) == "" {
				break
			}
			if r.check == nil {
				continue
			}
			if msg := r.check(r, fr.field, value, data); msg != "" {
				errs.add(fr.field, msg)
				break
			}
		}
	}
	return errs
}

// Passes reports whether data satisfies every rule.
func (rs *Ruleset) Passes(data map[string]string) bool {
	return !rs.Validate(data).Has()
}

// ── Validator ────────────────────────────────────────────────────────────────

// Validator validates a flat map of input values.
type Validator struct {
	data   map[string]string
	rules  *Ruleset
	err    error
	errors *Errors
}

// Make creates a new Validator, like Validator::make($data, $rules).
// A rule that does not compile makes Fails report true with the problem
// recorded under the offending field.
func Make(data map[string]string, rules Rules) *Validator {
	rs, err := Compile(rules)
	return &Validator{data: data, rules: rs, err: err}
}

// Fails runs validation and returns true if any rule fails.
func (v *Validator) Fails() bool {
	if v.err != nil {
		v.errors = &Errors{}
		v.errors.add("rules", v.err.Error())
		return true
	}
	v.errors = v.rules.Validate(v.data)
	return v.errors.Has()
}

// Passes runs validation and returns true if all rules pass.
func (v *Validator) Passes() bool { return !v.Fails() }

// Errors returns the validation error bag of the last run.
func (v *Validator) Errors() *Errors {
	if v.errors == nil {
		return &Errors{}
	}
	return v.errors
}

// ── Rules ────────────────────────────────────────────────────────────────────

var (
	urlPattern       = regexp.MustCompile(`^https?://`)
	alphaPattern     = regexp.MustCompile(`^[a-zA-Z]+$`)
	alphaNumPattern  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	alphaDashPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

var booleans = map[string]bool{"true": true, "false": true, "1": true, "0": true, "yes": true, "no": true}

// checks maps a rule name to its check; an empty message means the rule passed.
var checks = map[string]func(r *rule, field, value string, data map[string]string) string{
	"required": func(_ *rule, field, value string, _ map[string]string) string {
		if strings.TrimSpace(value) == "" {
			return fmt.Sprintf("The %s field is required.", field)
		}
		return ""
	},
	"string": func(*rule, string, string, map[string]string) string { return "" },
	"numeric": func(_ *rule, field, value string, _ map[string]string) string {
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Sprintf("The %s must be a number.", field)
		}
		return ""
	},
	"integer": func(_ *rule, field, value string, _ map[string]string) string {
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Sprintf("The %s must be an integer.", field)
		}
		return ""
	},
	"boolean": func(_ *rule, field, value string, _ map[string]string) string {
		if !booleans[strings.ToLower(value)] {
			return fmt.Sprintf("The %s field must be true or false.", field)
		}
		return ""
	},
	"email": func(_ *rule, field, value string, _ map[string]string) string {
		if _, err := mail.ParseAddress(value); err != nil {
			return fmt.Sprintf("The %s must be a valid email address.", field)
		}
		return ""
	},
	"url": func(_ *rule, field, value string, _ map[string]string) string {
		if !urlPattern.MatchString(value) {
			return fmt.Sprintf("The %s must be a valid URL.", field)
		}
		return ""
	},
	"min": func(r *rule, field, value string, _ map[string]string) string {
		n, _ := strconv.Atoi(r.param)
		if utf8.RuneCountInString(value) < n {
			return fmt.Sprintf("The %s must be at least %d characters.", field, n)
		}
		return ""
	},
	"max": func(r *rule, field, value string, _ map[string]string) string {
		n, _ := strconv.Atoi(r.param)
		if utf8.RuneCountInString(value) > n {
			return fmt.Sprintf("The %s may not be greater than %d characters.", field, n)
		}
		return ""
	},
	"size": func(r *rule, field, value string, _ map[string]string) string {
		n, _ := strconv.Atoi(r.param)
		if utf8.RuneCountInString(value) != n {
			return fmt.Sprintf("The %s must be %d characters.", field, n)
		}
		return ""
	},
	"between": func(r *rule, field, value string, _ map[string]string) string {
		lo, hi, ok := strings.Cut(r.param, ",")
		if !ok {
			return ""
		}
		min, _ := strconv.Atoi(strings.TrimSpace(lo))
		max, _ := strconv.Atoi(strings.TrimSpace(hi))
		if l := utf8.RuneCountInString(value); l < min || l > max {
			return fmt.Sprintf("The %s must be between %d and %d characters.", field, min, max)
		}
		return ""
	},
	"in": func(r *rule, field, value string, _ map[string]string) string {
		for _, a := range strings.Split(r.param, ",") {
			if strings.TrimSpace(a) == value {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", field)
	},
	"not_in": func(r *rule, field, value string, _ map[string]string) string {
		for _, d := range strings.Split(r.param, ",") {
			if strings.TrimSpace(d) == value {
				return fmt.Sprintf("The selected %s is invalid.", field)
			}
		}
		return ""
	},
	"confirmed": func(_ *rule, field, value string, data map[string]string) string {
		if data[field+"_confirmation"] != value {
			return fmt.Sprintf("The %s confirmation does not match.", field)
		}
		return ""
	},
	"same": func(r *rule, field, value string, data map[string]string) string {
		if data[r.param] != value {
			return fmt.Sprintf("The %s and %s must match.", field, r.param)
		}
		return ""
	},
	"different": func(r *rule, field, value string, data map[string]string) string {
		if data[r.param] == value {
			return fmt.Sprintf("The %s and %s must be different.", field, r.param)
		}
		return ""
	},
	"alpha": func(_ *rule, field, value string, _ map[string]string) string {
		if !alphaPattern.MatchString(value) {
			return fmt.Sprintf("The %s may only contain letters.", field)
		}
		return ""
	},
	"alpha_num": func(_ *rule, field, value string, _ map[string]string) string {
		if !alphaNumPattern.MatchString(value) {
			return fmt.Sprintf("The %s may only contain letters and numbers.", field)
		}
		return ""
	},
	"alpha_dash": func(_ *rule, field, value string, _ map[string]string) string {
		if !alphaDashPattern.MatchString(value) {
			return fmt.Sprintf("The %s may only contain letters, numbers, dashes and underscores.", field)
		}
		return ""
	},
	"regex": func(r *rule, field, value string, _ map[string]string) string {
		if !r.re.MatchString(value) {
			return fmt.Sprintf("The %s format is invalid.", field)
		}
		return ""
	},
	"gt":  compare(func(f, t float64) bool { return f > t }, "greater than"),
	"gte": compare(func(f, t float64) bool { return f >= t }, "greater than or equal to"),
	"lt":  compare(func(f, t float64) bool { return f < t }, "less than"),
	"lte": compare(func(f, t float64) bool { return f <= t }, "less than or equal to"),
}

func compare(ok func(f, t float64) bool, phrase string) func(*rule, string, string, map[string]string) string {
	return func(r *rule, field, value string, _ map[string]string) string {
		f, _ := strconv.ParseFloat(value, 64)
		t, _ := strconv.ParseFloat(r.param, 64)
		if !ok(f, t) {
			return fmt.Sprintf("The %s must be %s %s.", field, phrase, r.param)
		}
		return ""
	}
}
