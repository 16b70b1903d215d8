package capture

import (
	"strings"
	"testing"

	"github.com/harrydbarnes/recordsteps/recorder/internal/page"
	"github.com/harrydbarnes/recordsteps/step"
)

func TestDecodeEventsBatch(t *testing.T) {
	payload := `[
		{"kind":"click","at_ms":1700000001000,"url":"https://example.com",
		 "target":{"path":[{"tag":"button","id":"go","nth":1}],"text":"Go"},
		 "x":120.5,"y":44},
		{"kind":"keydown","at_ms":1700000001050,"url":"https://example.com",
		 "target":{"path":[{"tag":"input","attrs":{"type":"text","name":"q"},"nth":1}],
		  "editable":true,"input_type":"text","value":"a"},
		 "key":"a","code":"KeyA"},
		{"kind":"attr","at_ms":1700000001100,"url":"https://example.com",
		 "target":{"path":[{"tag":"div","id":"status","nth":1}]},
		 "attr":{"name":"aria-busy","old_value":"true","value":"false"}}
	]`

	events, err := decodeEvents([]byte(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("decode: got %d events, want 3", len(events))
	}

	click := events[0]
	if click.Kind != page.KindClick || click.X != 120.5 || click.Y != 44 {
		t.Fatalf("click: %+v", click)
	}
	if el := click.Target.El(); el == nil || el.ID != "go" {
		t.Fatalf("click target: %+v", click.Target)
	}

	key := events[1]
	if key.Kind != page.KindKeydown || key.Key != "a" || key.Code != "KeyA" {
		t.Fatalf("keydown: %+v", key)
	}
	if !key.Target.Editable {
		t.Fatal("keydown target not editable")
	}

	attr := events[2]
	if attr.Attr == nil || attr.Attr.Name != "aria-busy" || attr.Attr.Old != "true" {
		t.Fatalf("attr: %+v", attr.Attr)
	}
}

func TestDecodeEventsShadowPath(t *testing.T) {
	payload := `[{"kind":"focus","at_ms":1,
		"target":{"path":[
			{"tag":"input","nth":1},
			{"tag":"user-card","nth":1,"shadow_host":true},
			{"tag":"body","nth":1},
			{"tag":"html","nth":1}
		],"editable":true}}]`

	events, err := decodeEvents([]byte(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !events[0].Target.InShadow() {
		t.Fatal("shadow host marker lost in decode")
	}
}

func TestDecodeEventsRejectsGarbage(t *testing.T) {
	if _, err := decodeEvents([]byte(`{"not":"an array"}`)); err == nil {
		t.Fatal("object payload accepted")
	}
	if _, err := decodeEvents([]byte(`nope`)); err == nil {
		t.Fatal("non-JSON payload accepted")
	}
}

// The capture script is the page half of the feed contract; these
// checks pin the identifiers the Go side depends on.
func TestCaptureScriptContract(t *testing.T) {
	for _, want := range []string{
		bindingName,
		"window.__recordsteps",
		"setLevel",
		"addEventListener('click'",
		"addEventListener('paste'",
		"MutationObserver",
		"attributeOldValue: true",
	} {
		if !strings.Contains(captureJS, want) {
			t.Fatalf("capture.js missing %q", want)
		}
	}
	if !strings.Contains(captureJS, step.Redacted) {
		t.Fatal("capture.js does not mask password values with the redaction marker")
	}
}
