package executor

import "slices"

// Predicate checks one parameter value. It receives the raw value from the
// context's bag; typed helpers below take care of the type assertion.
type Predicate func(value any) bool

// ValidationRule ties a parameter name to a predicate and the message shown
// when it fails. Rules are immutable once registered. An Optional rule is
// skipped when the parameter is absent and enforced once a value is supplied.
type ValidationRule struct {
	Param     string
	Predicate Predicate
	Message   string
	Optional  bool
}

// StringRule adapts a string predicate; a non-string value fails the rule.
func StringRule(pred func(string) bool) Predicate {
	return func(value any) bool {
		s, ok := value.(string)
		return ok && pred(s)
	}
}

// NumberRule adapts a numeric predicate; a non-numeric value fails the rule.
func NumberRule(pred func(float64) bool) Predicate {
	return func(value any) bool {
		switch v := value.(type) {
		case float64:
			return pred(v)
		case int:
			return pred(float64(v))
		case int64:
			return pred(float64(v))
		}
		return false
	}
}

// EnumRule accepts only the listed string values.
func EnumRule(allowed ...string) Predicate {
	return func(value any) bool {
		s, ok := value.(string)
		return ok && slices.Contains(allowed, s)
	}
}

// AddValidator registers a rule on this executor instance. Rules run before
// any store or network access, so malformed input never consumes rate-limit
// budget.
func (e *Executor) AddValidator(param string, pred Predicate, message string) {
	e.validators = append(e.validators, ValidationRule{Param: param, Predicate: pred, Message: message})
}

// AddOptionalValidator registers a rule that only applies when the parameter
// is present. Used for parameters with a stored fallback, like server.
func (e *Executor) AddOptionalValidator(param string, pred Predicate, message string) {
	e.validators = append(e.validators, ValidationRule{Param: param, Predicate: pred, Message: message, Optional: true})
}

// Validate runs every registered rule against the context's parameter bag
// and returns the message of each rule that failed. A rule fails when the
// parameter is absent, mistyped, or the predicate rejects it. All rules are
// evaluated so the caller sees every violation at once.
func (e *Executor) Validate(cc *CommandContext) []string {
	var errs []string
	for _, rule := range e.validators {
		value, ok := cc.Param(rule.Param)
		if !ok {
			if !rule.Optional {
				errs = append(errs, rule.Message)
			}
			continue
		}
		if !rule.Predicate(value) {
			errs = append(errs, rule.Message)
		}
	}
	return errs
}
