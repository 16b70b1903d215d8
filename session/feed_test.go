package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/harrydbarnes/recordsteps/dbopen"
	"github.com/harrydbarnes/recordsteps/step"

	_ "modernc.org/sqlite"
)

func TestStateFeedBroadcastsChanges(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	store := NewStore(db)
	feed := NewStateFeed(store, FeedOptions{
		Interval: 10 * time.Millisecond,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	ch, unsub := feed.Subscribe()
	defer unsub()

	// The subscription may first deliver the seeded idle state.
	want := step.State{
		Active:      true,
		SessionID:   "sess-1",
		StartedAtMs: 1700000000000,
		Verbosity:   step.VerbosityDetailed,
	}
	if err := store.SetState(ctx, want); err != nil {
		t.Fatalf("set state: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-ch:
			if st == want {
				return
			}
		case <-deadline:
			t.Fatal("feed never broadcast the state change")
		}
	}
}

func TestStateFeedCurrentReadsStore(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	store := NewStore(db)
	feed := NewStateFeed(store, FeedOptions{Interval: time.Minute})

	ctx := context.Background()
	want := step.State{Active: true, SessionID: "sess-2", StartedAtMs: 5, Verbosity: step.VerbosityFull}
	if err := store.SetState(ctx, want); err != nil {
		t.Fatalf("set state: %v", err)
	}
	got, err := feed.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got != want {
		t.Fatalf("current: got %+v, want %+v", got, want)
	}
}
