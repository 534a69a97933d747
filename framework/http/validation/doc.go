// Package validation provides Laravel-style input validation.
//
// Rules are pipe-separated strings keyed by field name. A Rules map is
// compiled once into a Ruleset, which is immutable and can be shared across
// requests; the router uses the same rulesets for parameter constraints.
//
//	rs := validation.MustCompile(validation.Rules{
//	    "name":  "required|min:2|max:100",
//	    "email": "required|email",
//	})
//
//	if errs := rs.Validate(req.All()); errs.Has() {
//	    return gohttp.ValidationError(errs.Bag), nil
//	}
//
// Make wraps the same machinery in the familiar one-shot form:
//
//	v := validation.Make(data, rules)
//	if v.Fails() { ... v.Errors() ... }
//
// # Available Rules
//
// Length: required, string, min:n, max:n, size:n, between:min,max (counted
// in runes).
//
// Format: email, url (http or https), alpha, alpha_num, alpha_dash,
// regex:pattern.
//
// Numeric: numeric, integer, gt:n, gte:n, lt:n, lte:n.
//
// Comparison: confirmed (field_confirmation must match), same:other,
// different:other, in:a,b,c, not_in:a,b,c, boolean.
//
// Control: nullable and sometimes skip the remaining rules of a field whose
// value is empty.
//
// Rules of one field stop at the first failure. Errors marshal to the
// Laravel shape:
//
//	{"errors": {"email": ["The email must be a valid email address."]}}
package validation
