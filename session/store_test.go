package session

import (
	"context"
	"errors"
	"testing"

	"github.com/harrydbarnes/recordsteps/dbopen"
	"github.com/harrydbarnes/recordsteps/step"

	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return NewStore(db)
}

func TestStateRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	got, err := st.State(ctx)
	if err != nil {
		t.Fatalf("initial state: %v", err)
	}
	if got.Active {
		t.Fatal("fresh store reports active recording")
	}

	want := step.State{
		Active:      true,
		SessionID:   "sess-1",
		StartedAtMs: 1700000000000,
		Verbosity:   step.VerbosityDetailed,
	}
	if err := st.SetState(ctx, want); err != nil {
		t.Fatalf("set state: %v", err)
	}
	got, err = st.State(ctx)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if got != want {
		t.Fatalf("state round trip: got %+v, want %+v", got, want)
	}
}

func TestAppendStepSequencing(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	sess := &Session{ID: "sess-1", StartedAtMs: 1000}
	if err := st.InsertSession(ctx, sess); err != nil {
		t.Fatalf("insert session: %v", err)
	}

	for i := 0; i < 3; i++ {
		rec, err := st.AppendStep(ctx, "sess-1", stepIDf(i), step.Record{
			Type: step.TypeClick, URL: "https://example.com",
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if rec.Seq != uint64(i+1) {
			t.Fatalf("append %d: got seq %d, want %d", i, rec.Seq, i+1)
		}
	}

	recs, err := st.Steps(ctx, "sess-1")
	if err != nil {
		t.Fatalf("steps: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("steps: got %d records, want 3", len(recs))
	}
	for i, rec := range recs {
		if rec.Seq != uint64(i+1) {
			t.Fatalf("steps[%d]: got seq %d, want %d", i, rec.Seq, i+1)
		}
		if rec.SessionID != "sess-1" {
			t.Fatalf("steps[%d]: got session %q", i, rec.SessionID)
		}
	}
}

func TestAppendStepPreservesPayload(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.InsertSession(ctx, &Session{ID: "sess-1", StartedAtMs: 1000}); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	in := step.Record{
		Type:           step.TypeInputSequence,
		RelativeTimeMs: 42,
		URL:            "https://example.com/form",
		Element:        &step.ElementDescriptor{Selector: "#email", Tag: "input"},
		Events: []step.InputEvent{
			{Type: step.SubKeydown, Key: "a", Code: "KeyA"},
			{Type: step.SubInput, InputType: "insertText", Data: "a", Value: "a"},
		},
		FinalValue: "a",
	}
	if _, err := st.AppendStep(ctx, "sess-1", "step-1", in); err != nil {
		t.Fatalf("append: %v", err)
	}

	recs, err := st.Steps(ctx, "sess-1")
	if err != nil {
		t.Fatalf("steps: %v", err)
	}
	got := recs[0]
	if got.Type != step.TypeInputSequence || got.FinalValue != "a" {
		t.Fatalf("payload mangled: %+v", got)
	}
	if len(got.Events) != 2 || got.Events[0].Key != "a" {
		t.Fatalf("events mangled: %+v", got.Events)
	}
	if got.Element == nil || got.Element.Selector != "#email" {
		t.Fatalf("element mangled: %+v", got.Element)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.InsertSession(ctx, &Session{ID: "sess-1", StartedAtMs: 1000}); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	if _, err := st.AppendStep(ctx, "sess-1", "step-1", step.Record{Type: step.TypeClick}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := st.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, err := st.StepCount(ctx, "sess-1")
	if err != nil {
		t.Fatalf("step count: %v", err)
	}
	if n != 0 {
		t.Fatalf("cascade: got %d steps after delete, want 0", n)
	}

	if err := st.DeleteSession(ctx, "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestGetSessionCountsSteps(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.InsertSession(ctx, &Session{ID: "sess-1", StartedAtMs: 1000, Verbosity: 2}); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := st.AppendStep(ctx, "sess-1", stepIDf(i), step.Record{Type: step.TypeClick}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	sess, err := st.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.StepCount != 2 {
		t.Fatalf("got step count %d, want 2", sess.StepCount)
	}
	if sess.Verbosity != 2 {
		t.Fatalf("got verbosity %d, want 2", sess.Verbosity)
	}

	if _, err := st.GetSession(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing session: got %v, want ErrNotFound", err)
	}
}

func stepIDf(i int) string {
	return "step-" + string(rune('a'+i))
}
