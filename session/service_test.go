package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/harrydbarnes/recordsteps/dbopen"
	"github.com/harrydbarnes/recordsteps/idgen"
	"github.com/harrydbarnes/recordsteps/step"

	_ "modernc.org/sqlite"
)

func testService(t *testing.T) *Service {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	n := 0
	gen := func() string {
		n++
		return itoa(n)
	}
	return NewService(NewStore(db),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDGenerators(idgen.Prefixed("sess_", gen), idgen.Prefixed("step_", gen)),
	)
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return itoa(n/10) + string(rune('0'+n%10))
}

func TestStartStopLifecycle(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, "https://example.com", step.VerbosityFocus)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.ID == "" || sess.StartedAtMs == 0 {
		t.Fatalf("start returned incomplete session: %+v", sess)
	}

	st, err := svc.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !st.Active || st.SessionID != sess.ID || st.Verbosity != step.VerbosityFocus {
		t.Fatalf("state after start: %+v", st)
	}

	if _, err := svc.Start(ctx, "", 0); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("double start: got %v, want ErrAlreadyRecording", err)
	}

	stopped, err := svc.Stop(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.ID != sess.ID || stopped.EndedAtMs == 0 {
		t.Fatalf("stop returned %+v", stopped)
	}

	st, err = svc.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.Active {
		t.Fatal("state still active after stop")
	}
	if st.Verbosity != step.VerbosityFocus {
		t.Fatalf("verbosity not kept across stop: got %d", st.Verbosity)
	}

	if _, err := svc.Stop(ctx); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("double stop: got %v, want ErrNotRecording", err)
	}
}

func TestAppendRequiresActiveSession(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.Append(ctx, step.Record{Type: step.TypeClick}); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("append while idle: got %v, want ErrNotRecording", err)
	}

	sess, err := svc.Start(ctx, "", 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	rec, err := svc.Append(ctx, step.Record{Type: step.TypeClick, URL: "https://example.com"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if rec.SessionID != sess.ID || rec.Seq != 1 || rec.ID == "" {
		t.Fatalf("append assigned %+v", rec)
	}

	status, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.StepCount != 1 {
		t.Fatalf("status step count: got %d, want 1", status.StepCount)
	}
}

func TestSubscribeReceivesAppends(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "", 0); err != nil {
		t.Fatalf("start: %v", err)
	}

	ch, cancel := svc.Subscribe()
	defer cancel()

	if _, err := svc.Append(ctx, step.Record{Type: step.TypePaste, Pasted: "hello"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case rec := <-ch:
		if rec.Type != step.TypePaste || rec.Pasted != "hello" {
			t.Fatalf("subscriber got %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the appended record")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after cancel")
	}
}

func TestClearRefusesActiveSession(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, "", 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.Clear(ctx, sess.ID); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("clear active: got %v, want ErrAlreadyRecording", err)
	}

	if _, err := svc.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := svc.Clear(ctx, sess.ID); err != nil {
		t.Fatalf("clear stopped: %v", err)
	}
	if _, err := svc.Session(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session survives clear: %v", err)
	}
}
