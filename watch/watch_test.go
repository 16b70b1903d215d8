package watch

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func stateDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE state (id INTEGER PRIMARY KEY CHECK (id = 1), version INTEGER NOT NULL);
		INSERT INTO state (id, version) VALUES (1, 0)`); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func rowVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, `SELECT version FROM state WHERE id = 1`).Scan(&v)
	return v, err
}

func bump(t *testing.T, db *sql.DB) {
	t.Helper()
	if _, err := db.Exec(`UPDATE state SET version = version + 1 WHERE id = 1`); err != nil {
		t.Fatal(err)
	}
}

func TestPragmaDataVersion(t *testing.T) {
	v, err := PragmaDataVersion(context.Background(), stateDB(t))
	if err != nil {
		t.Fatal(err)
	}
	if v < 0 {
		t.Fatalf("version = %d, want >= 0", v)
	}
}

func TestPragmaUserVersion(t *testing.T) {
	db := stateDB(t)
	ctx := context.Background()

	if _, err := db.Exec("PRAGMA user_version = 42"); err != nil {
		t.Fatal(err)
	}
	v, err := PragmaUserVersion(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Fatalf("user_version = %d, want 42", v)
	}
}

func TestOnChangeFiresPerVersion(t *testing.T) {
	db := stateDB(t)

	var reloads atomic.Int32
	w := New(db, Options{
		Interval: 20 * time.Millisecond,
		Detector: rowVersion,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		reloads.Add(1)
		return nil
	})

	time.Sleep(50 * time.Millisecond) // initial version seeded

	bump(t, db)
	time.Sleep(80 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Fatalf("reloads = %d after first bump, want 1", got)
	}

	bump(t, db)
	time.Sleep(80 * time.Millisecond)
	if got := reloads.Load(); got != 2 {
		t.Fatalf("reloads = %d after second bump, want 2", got)
	}

	// Quiet database: no further reloads.
	time.Sleep(80 * time.Millisecond)
	if got := reloads.Load(); got != 2 {
		t.Fatalf("reloads = %d with no writes, want 2", got)
	}
}

func TestOnChangeDebouncesBursts(t *testing.T) {
	db := stateDB(t)

	var reloads atomic.Int32
	w := New(db, Options{
		Interval: 20 * time.Millisecond,
		Debounce: 100 * time.Millisecond,
		Detector: rowVersion,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		reloads.Add(1)
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		bump(t, db)
		time.Sleep(15 * time.Millisecond)
	}
	if got := reloads.Load(); got != 0 {
		t.Fatalf("reloads = %d inside debounce window, want 0", got)
	}

	time.Sleep(200 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Fatalf("reloads = %d after burst settled, want 1", got)
	}
}

func TestOnChangeRetriesFailedReload(t *testing.T) {
	db := stateDB(t)

	var calls atomic.Int32
	w := New(db, Options{
		Interval: 20 * time.Millisecond,
		Detector: rowVersion,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		if calls.Add(1) == 1 {
			return fmt.Errorf("state read race")
		}
		return nil
	})

	time.Sleep(50 * time.Millisecond)
	bump(t, db)
	time.Sleep(120 * time.Millisecond)

	if got := calls.Load(); got < 2 {
		t.Fatalf("calls = %d, want >= 2 (failure then retry)", got)
	}
	if v := w.Version(); v != 1 {
		t.Fatalf("Version() = %d after successful retry, want 1", v)
	}
}

func TestOnChangeStopsOnCancel(t *testing.T) {
	db := stateDB(t)
	w := New(db, Options{Interval: 10 * time.Millisecond, Detector: rowVersion})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.OnChange(ctx, func() error { return nil })
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnChange did not return after cancel")
	}
}
