package trace

import (
	"regexp"
	"strings"
)

// Redactor scrubs secrets and local paths out of trace payloads before
// they reach disk. Regexes are compiled once at construction, never on
// the hot path.
type Redactor struct {
	patterns []*regexp.Regexp
	replace  string
}

var defaultPatterns = []string{
	`sk-[A-Za-z0-9]{20,}`,                     // OpenAI-style keys
	`(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`,      // bearer tokens
	`(?i)(password|passwd|pwd)\s*[:=]\s*\S+`, // password assignments
	`(?i)(api[_-]?key)\s*[:=]\s*\S+`,          // generic api-key assignments
}

// NewRedactor compiles the default redaction pattern set plus any
// caller-supplied extras.
func NewRedactor(extra ...string) *Redactor {
	all := append(append([]string{}, defaultPatterns...), extra...)
	r := &Redactor{replace: "***REDACTED***"}
	for _, p := range all {
		if re, err := regexp.Compile(p); err == nil {
			r.patterns = append(r.patterns, re)
		}
	}
	return r
}

var pathPrefixes = []struct{ from, to string }{
	{"/Users/", "~/"},
	{"/home/", "~/"},
	{`\Users\`, `~\`},
}

// Redact returns a shallow-clone-on-write copy of the payload with
// secrets and local-path prefixes replaced. If anything panics during
// redaction, the original event is returned unmodified (better leaked
// than crashed).
func (r *Redactor) Redact(payload map[string]any) (out map[string]any) {
	defer func() {
		if recover() != nil {
			out = payload
		}
	}()
	if payload == nil {
		return nil
	}
	out, _ = r.redactMap(payload)
	return out
}

func (r *Redactor) redactMap(m map[string]any) (map[string]any, bool) {
	var cloned map[string]any
	for k, v := range m {
		nv, changed := r.redactValue(v)
		if changed {
			if cloned == nil {
				cloned = make(map[string]any, len(m))
				for ck, cv := range m {
					cloned[ck] = cv
				}
			}
			cloned[k] = nv
		}
	}
	if cloned != nil {
		return cloned, true
	}
	return m, false
}

func (r *Redactor) redactValue(v any) (any, bool) {
	switch val := v.(type) {
	case string:
		redacted := r.redactString(val)
		return redacted, redacted != val
	case map[string]any:
		return r.redactMap(val)
	case []any:
		changed := false
		out := make([]any, len(val))
		for i, item := range val {
			nv, c := r.redactValue(item)
			out[i] = nv
			if c {
				changed = true
			}
		}
		if changed {
			return out, true
		}
		return val, false
	default:
		return v, false
	}
}

func (r *Redactor) redactString(s string) string {
	for _, re := range r.patterns {
		if re.MatchString(s) {
			s = re.ReplaceAllString(s, r.replace)
		}
	}
	for _, p := range pathPrefixes {
		if strings.Contains(s, p.from) {
			s = strings.ReplaceAll(s, p.from, p.to)
		}
	}
	return s
}
