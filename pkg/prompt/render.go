// Package prompt renders stage templates by literal marker substitution.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// markerPattern matches the reserved marker syntax: <UPPER_SNAKE>.
var markerPattern = regexp.MustCompile(`<[A-Z][A-Z0-9_]*>`)

// IsMarker reports whether s is exactly one marker, such as "<RESUME>".
func IsMarker(s string) bool {
	loc := markerPattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// Policy controls what happens when a template contains a marker with no binding.
type Policy string

const (
	// PolicyStrict fails the render with an UnresolvedMarkerError.
	PolicyStrict Policy = "strict"
	// PolicyWarn renders anyway and reports the markers through the logger.
	PolicyWarn Policy = "warn"
	// PolicyIgnore leaves unresolved markers in place silently.
	PolicyIgnore Policy = "ignore"
)

// ParsePolicy converts a config value into a Policy. Empty means strict.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyWarn:
		return PolicyWarn, nil
	case PolicyIgnore:
		return PolicyIgnore, nil
	default:
		return "", fmt.Errorf("unknown marker policy %q (want strict, warn or ignore)", value)
	}
}

// UnresolvedMarkerError reports template markers that had no binding.
type UnresolvedMarkerError struct {
	Template string
	Markers  []string
}

func (e *UnresolvedMarkerError) Error() string {
	if e.Template != "" {
		return fmt.Sprintf("%s template has unresolved markers: %s", e.Template, strings.Join(e.Markers, ", "))
	}
	return fmt.Sprintf("unresolved markers: %s", strings.Join(e.Markers, ", "))
}

// Render replaces every occurrence of each binding marker with its value.
// Matching is exact and literal, and the substitution is a single pass, so
// marker text inside a substituted value is never expanded again.
func Render(template string, bindings map[string]string) string {
	if len(bindings) == 0 || template == "" {
		return template
	}

	markers := make([]string, 0, len(bindings))
	for marker := range bindings {
		if marker == "" {
			continue
		}
		markers = append(markers, marker)
	}
	// Longest marker wins when two markers share a prefix.
	sort.Slice(markers, func(i, j int) bool {
		if len(markers[i]) != len(markers[j]) {
			return len(markers[i]) > len(markers[j])
		}
		return markers[i] < markers[j]
	})

	pairs := make([]string, 0, len(markers)*2)
	for _, marker := range markers {
		pairs = append(pairs, marker, bindings[marker])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Markers returns the distinct reserved markers in template, in order of first appearance.
func Markers(template string) []string {
	found := markerPattern.FindAllString(template, -1)
	seen := make(map[string]struct{}, len(found))
	var markers []string
	for _, m := range found {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		markers = append(markers, m)
	}
	return markers
}

// Unresolved returns the markers present in template that have no binding.
func Unresolved(template string, bindings map[string]string) []string {
	var missing []string
	for _, marker := range Markers(template) {
		if _, ok := bindings[marker]; !ok {
			missing = append(missing, marker)
		}
	}
	return missing
}

// Renderer applies a marker policy around Render.
type Renderer struct {
	Policy Policy
	Logger func(format string, args ...any)
}

// Render substitutes bindings into template. name labels the template in
// errors and warnings (for example "extract_keywords/user").
func (r Renderer) Render(name, template string, bindings map[string]string) (string, error) {
	missing := Unresolved(template, bindings)
	if len(missing) > 0 {
		switch r.Policy {
		case PolicyIgnore:
		case PolicyWarn:
			if r.Logger != nil {
				r.Logger("warning: %s template has unresolved markers: %s", name, strings.Join(missing, ", "))
			}
		default:
			return "", &UnresolvedMarkerError{Template: name, Markers: missing}
		}
	}
	return Render(template, bindings), nil
}
