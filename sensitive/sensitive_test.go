package sensitive

import (
	"testing"

	"github.com/harrydbarnes/recordsteps/dom"
)

func node(attrs map[string]string) *dom.Node {
	return &dom.Node{Tag: "input", Attrs: attrs}
}

func TestElementPasswordType(t *testing.T) {
	if !Element(node(map[string]string{"type": "password"})) {
		t.Fatal("password input not flagged")
	}
	if !Element(node(map[string]string{"type": "PASSWORD"})) {
		t.Fatal("case-folded password input not flagged")
	}
}

func TestElementKeywordBoundaries(t *testing.T) {
	cases := []struct {
		attr, val string
		want      bool
	}{
		{"name", "user_api_key", true},
		{"name", "apikeyword", false},
		{"name", "card-number", true},
		{"name", "cc", true},
		{"name", "cc-exp", true},
		{"name", "accept", false},
		{"name", "shipping", false},
		{"id", "PIN_entry", true},
		{"id", "spinach", false},
		{"autocomplete", "current-password", true},
		{"type", "email", true},
		{"placeholder", "Enter your phone number", true},
		{"aria-label", "Social security number", true},
		{"name", "authorization", false},
		{"name", "auth.token", true},
		{"name", "q", false},
		{"name", "", false},
	}
	for _, tc := range cases {
		got := Element(node(map[string]string{tc.attr: tc.val}))
		if got != tc.want {
			t.Errorf("Element(%s=%q) = %v, want %v", tc.attr, tc.val, got, tc.want)
		}
	}
}

func TestElementInspectsOnlyKnownAttributes(t *testing.T) {
	if Element(node(map[string]string{"data-label": "password hint"})) {
		t.Fatal("uninspected attribute triggered redaction")
	}
}

func TestElementNil(t *testing.T) {
	if Element(nil) {
		t.Fatal("nil element flagged")
	}
}

func TestElementUsesDedicatedIDField(t *testing.T) {
	n := &dom.Node{Tag: "input", ID: "tax_id"}
	if !Element(n) {
		t.Fatal("id field not inspected")
	}
}
