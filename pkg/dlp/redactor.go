package dlp

import (
	"regexp"
	"sort"
)

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

// Redactor masks personal data in free text and event payloads. A nil
// Redactor leaves input untouched.
type Redactor struct {
	rules []compiledRule
}

func NewRedactor(cfg RulesConfig) (*Redactor, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Redactor{rules: compiled}, nil
}

func (r *Redactor) Redact(text string) string {
	if r == nil {
		return text
	}
	for _, rule := range r.rules {
		text = rule.re.ReplaceAllString(text, rule.rule.Mask)
	}
	return text
}

// Detect reports which rule types match text, sorted.
func (r *Redactor) Detect(text string) []string {
	if r == nil {
		return nil
	}
	var types []string
	seen := make(map[string]struct{})
	for _, rule := range r.rules {
		if _, ok := seen[rule.rule.Type]; ok {
			continue
		}
		if rule.re.MatchString(text) {
			seen[rule.rule.Type] = struct{}{}
			types = append(types, rule.rule.Type)
		}
	}
	sort.Strings(types)
	return types
}

// Sanitize returns a masked deep copy of data.
func (r *Redactor) Sanitize(data map[string]interface{}) map[string]interface{} {
	if r == nil || data == nil {
		return data
	}

	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		out[key] = r.sanitizeValue(value)
	}
	return out
}

func (r *Redactor) sanitizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return r.Redact(v)
	case map[string]interface{}:
		return r.Sanitize(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, nested := range v {
			out[i] = r.sanitizeValue(nested)
		}
		return out
	default:
		return value
	}
}
