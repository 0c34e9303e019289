package telemetry

import (
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// FilterConfig declares how credential material is scrubbed before it is
// attached to spans or metrics.
type FilterConfig struct {
	// Mask is the replacement string applied whenever a pattern matches.
	Mask string
	// Patterns augments the default regular expressions used to detect
	// passwords, tokens and authorization headers.
	Patterns []string
}

// Filter masks strings that should never reach telemetry backends. Database
// URLs carry basic-auth credentials and queries occasionally embed tokens;
// both are scrubbed here.
type Filter struct {
	mask     string
	patterns []*regexp.Regexp
}

var defaultPatterns = []string{
	`(?i)basic\s+[a-z0-9+/=]{8,}`,
	`(?i)bearer\s+[a-z0-9\-_.]{8,}`,
	`(?i)(password|passwd|secret|token|api[_-]?key)[\s:=]+[^\s&"]{4,}`,
	`//[^/\s:]+:[^@\s]+@`,
}

// NewFilter compiles the configured mask and regex patterns.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	mask := strings.TrimSpace(cfg.Mask)
	if mask == "" {
		mask = "[redacted]"
	}
	patterns := make([]string, 0, len(defaultPatterns)+len(cfg.Patterns))
	patterns = append(patterns, defaultPatterns...)
	patterns = append(patterns, cfg.Patterns...)

	seen := map[string]struct{}{}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("telemetry: compile filter pattern %q: %w", raw, err)
		}
		compiled = append(compiled, re)
	}
	return &Filter{mask: mask, patterns: compiled}, nil
}

// MaskText replaces every credential match in the provided value.
func (f *Filter) MaskText(value string) string {
	if f == nil || value == "" {
		return value
	}
	masked := value
	for _, re := range f.patterns {
		masked = re.ReplaceAllString(masked, f.mask)
	}
	return masked
}

// MaskAttributes scrubs string attribute values and returns the sanitized set.
func (f *Filter) MaskAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	if f == nil || len(attrs) == 0 {
		return attrs
	}
	out := make([]attribute.KeyValue, len(attrs))
	for i, kv := range attrs {
		if kv.Value.Type() == attribute.STRING {
			out[i] = attribute.String(string(kv.Key), f.MaskText(kv.Value.AsString()))
			continue
		}
		out[i] = kv
	}
	return out
}
