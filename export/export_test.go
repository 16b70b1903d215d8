package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/harrydbarnes/recordsteps/step"
)

func TestFlattenExpandsBatches(t *testing.T) {
	recs := []step.Record{
		{Type: step.TypeClick, RelativeTimeMs: 10},
		{Type: step.TypeAttributes, RelativeTimeMs: 20, Changes: []step.AttributeChange{
			{Selector: "#a", Name: "aria-checked", OldValue: "false", Value: "true"},
			{Selector: "#b", Name: "disabled", Value: "disabled"},
		}},
		{Type: step.TypePageLoad, RelativeTimeMs: 30},
	}

	flat := Flatten(recs)
	if len(flat) != 4 {
		t.Fatalf("flatten: got %d records, want 4", len(flat))
	}
	if flat[0].Type != step.TypeClick || flat[3].Type != step.TypePageLoad {
		t.Fatalf("flatten reordered records: %v, %v", flat[0].Type, flat[3].Type)
	}
	for i := 1; i <= 2; i++ {
		if flat[i].Type != TypeAttributeChange {
			t.Fatalf("flat[%d]: got type %q, want attributeChange", i, flat[i].Type)
		}
		if len(flat[i].Changes) != 1 {
			t.Fatalf("flat[%d]: got %d changes, want 1", i, len(flat[i].Changes))
		}
		if flat[i].RelativeTimeMs != 20 {
			t.Fatalf("flat[%d]: lost the batch timestamp", i)
		}
	}
	if flat[1].Changes[0].Name != "aria-checked" || flat[2].Changes[0].Name != "disabled" {
		t.Fatal("flatten broke in-batch order")
	}
}

func TestJSONIsOrderedArray(t *testing.T) {
	data, err := JSON([]step.Record{
		{Type: step.TypeClick, Seq: 1},
		{Type: step.TypeHover, Seq: 2},
	})
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var out []step.Record
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 2 || out[0].Seq != 1 || out[1].Seq != 2 {
		t.Fatalf("json round trip: %+v", out)
	}
}

func TestPlaywrightScript(t *testing.T) {
	recs := []step.Record{
		{Type: step.TypePageLoad, URL: "https://example.com/login"},
		{Type: step.TypeClick, Element: &step.ElementDescriptor{Selector: "#open"}},
		{Type: step.TypeInputSequence,
			Element:    &step.ElementDescriptor{Selector: "input[name=\"user\"]"},
			FinalValue: "alice"},
		{Type: step.TypeInputSequence,
			Element:    &step.ElementDescriptor{Selector: "#password"},
			FinalValue: step.Redacted},
		{Type: step.TypeKeypress, Key: "Enter"},
		{Type: step.TypePageLoad, URL: "https://example.com/home"},
	}

	script := string(Playwright("login flow", recs))

	for _, want := range []string{
		"await page.goto('https://example.com/login');",
		"await page.click('#open');",
		"await page.fill('input[name=\"user\"]', 'alice');",
		"await page.fill('#password', FILL_ME);",
		"await page.keyboard.press('Enter');",
		"await page.waitForURL('https://example.com/home');",
		"const FILL_ME",
	} {
		if !strings.Contains(script, want) {
			t.Fatalf("script missing %q:\n%s", want, script)
		}
	}
	if strings.Contains(script, step.Redacted) && !strings.Contains(script, "redacted at capture") {
		t.Fatalf("redaction marker leaked without placeholder:\n%s", script)
	}
}

func TestPlaywrightShadowLocator(t *testing.T) {
	got := locator(&step.ElementDescriptor{
		Selector:   "#inner",
		ShadowPath: []string{"my-app", "user-card"},
	})
	want := "my-app user-card #inner"
	if got != want {
		t.Fatalf("locator: got %q, want %q", got, want)
	}
}

func TestHTMLReportSanitizesCapturedMarkup(t *testing.T) {
	recs := []step.Record{
		{Type: step.TypeClick, Element: &step.ElementDescriptor{
			Selector: `#x<script>alert(1)</script>`,
		}},
	}
	out := string(HTMLReport("report<script>bad()</script>", recs))
	if strings.Contains(out, "<script>") {
		t.Fatalf("unsanitized markup in report:\n%s", out)
	}
	if !strings.Contains(out, "click") {
		t.Fatalf("report lost the record:\n%s", out)
	}
}
