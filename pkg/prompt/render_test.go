package prompt

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRenderReplacesAllOccurrences(t *testing.T) {
	got := Render("Extract: <JD>\nAgain: <JD>", map[string]string{"<JD>": "Java backend role"})
	want := "Extract: Java backend role\nAgain: Java backend role"
	if got != want {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderIsSinglePass(t *testing.T) {
	bindings := map[string]string{
		"<RESUME>":   "contains <KEYWORDS> literally",
		"<KEYWORDS>": "go, kafka",
	}
	got := Render("<RESUME> | <KEYWORDS>", bindings)
	want := "contains <KEYWORDS> literally | go, kafka"
	if got != want {
		t.Fatalf("value was re-expanded: %q", got)
	}
}

func TestRenderLeavesUnboundMarkers(t *testing.T) {
	got := Render("<A> and <B>", map[string]string{"<A>": "x"})
	if got != "x and <B>" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderIdempotentOnFullyBoundTemplates(t *testing.T) {
	templates := []string{
		"Use: <KEYWORDS>",
		"<RESUME>\n\n<RANKED_KEYWORDS>\n<RESUME>",
		"no markers at all",
		"",
	}
	bindings := map[string]string{
		"<KEYWORDS>":        "java, backend",
		"<RESUME>":          "Ten years of Go.",
		"<RANKED_KEYWORDS>": "1. go\n2. grpc",
	}
	for _, tmpl := range templates {
		first := Render(tmpl, bindings)
		second := Render(tmpl, bindings)
		if first != second {
			t.Fatalf("render not deterministic for %q", tmpl)
		}
		for marker := range bindings {
			if strings.Contains(first, marker) {
				t.Fatalf("marker %s left in output %q", marker, first)
			}
		}
	}
}

func TestRenderPrefersLongestMarker(t *testing.T) {
	got := Render("<RESUME_BODY>", map[string]string{"<RESUME": "bad", "<RESUME_BODY>": "good"})
	if got != "good" {
		t.Fatalf("expected longest marker to win, got %q", got)
	}
}

func TestMarkersAndUnresolved(t *testing.T) {
	tmpl := "<RESUME> then <TAILORED_RESUME> then <RESUME> and <lower> and <X1>"
	if got := Markers(tmpl); !reflect.DeepEqual(got, []string{"<RESUME>", "<TAILORED_RESUME>", "<X1>"}) {
		t.Fatalf("unexpected markers: %v", got)
	}
	missing := Unresolved(tmpl, map[string]string{"<RESUME>": ""})
	if !reflect.DeepEqual(missing, []string{"<TAILORED_RESUME>", "<X1>"}) {
		t.Fatalf("unexpected unresolved markers: %v", missing)
	}
}

func TestRendererPolicies(t *testing.T) {
	tmpl := "<A> <B>"
	bindings := map[string]string{"<A>": "a"}

	_, err := Renderer{Policy: PolicyStrict}.Render("stage/user", tmpl, bindings)
	var unresolved *UnresolvedMarkerError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedMarkerError, got %v", err)
	}
	if unresolved.Template != "stage/user" || !reflect.DeepEqual(unresolved.Markers, []string{"<B>"}) {
		t.Fatalf("unexpected error contents: %+v", unresolved)
	}

	var warnings []string
	out, err := Renderer{Policy: PolicyWarn, Logger: func(format string, args ...any) {
		warnings = append(warnings, format)
	}}.Render("stage/user", tmpl, bindings)
	if err != nil {
		t.Fatalf("warn policy should not fail: %v", err)
	}
	if out != "a <B>" || len(warnings) != 1 {
		t.Fatalf("unexpected warn result: %q, %d warnings", out, len(warnings))
	}

	out, err = Renderer{Policy: PolicyIgnore}.Render("stage/user", tmpl, bindings)
	if err != nil || out != "a <B>" {
		t.Fatalf("unexpected ignore result: %q, %v", out, err)
	}
}

func TestZeroRendererIsStrict(t *testing.T) {
	if _, err := (Renderer{}).Render("x", "<MISSING>", nil); err == nil {
		t.Fatalf("expected zero-value renderer to be strict")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want Policy
		err  bool
	}{
		{"", PolicyStrict, false},
		{"STRICT", PolicyStrict, false},
		{" warn ", PolicyWarn, false},
		{"ignore", PolicyIgnore, false},
		{"loose", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Fatalf("ParsePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestIsMarker(t *testing.T) {
	for in, want := range map[string]bool{
		"<RESUME>":          true,
		"<TAILORED_RESUME>": true,
		"<STEP_2>":          true,
		"<resume>":          false,
		"<2FAST>":           false,
		"RESUME":            false,
		"<RESUME> ":         false,
		"<A><B>":            false,
	} {
		if got := IsMarker(in); got != want {
			t.Fatalf("IsMarker(%q) = %v, want %v", in, got, want)
		}
	}
}
