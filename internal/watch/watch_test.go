package watch

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func TestScanFiltersHiddenEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"visible.txt", ".hidden", "readme.md", ".config"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	got, err := w.Scan()
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(got)

	want := []string{filepath.Join(dir, "readme.md"), filepath.Join(dir, "visible.txt")}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCreateEventClassification(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "icon.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := <-w.Events
	if ev.Kind != Create {
		t.Fatalf("got kind %s, want Create", ev.Kind)
	}
	if ev.Path != path {
		t.Fatalf("got path %s, want %s", ev.Path, path)
	}
}

func TestHiddenPathEventsAreFiltered(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".secret"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "visible.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := <-w.Events
	if ev.Kind != Create || filepath.Base(ev.Path) != "visible.txt" {
		t.Fatalf("expected only the visible.txt create event, got %+v", ev)
	}
}

func TestCloseSignalsDisconnected(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	w.Close()

	select {
	case <-w.Disconnected:
	case <-time.After(time.Second):
		t.Fatal("Disconnected was not closed after Close")
	}
}

func TestFsnotifyEventsChannelCloseSignalsDisconnected(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	// Closing the underlying fsnotify watcher directly (bypassing w.Close)
	// simulates the source dying out from under the loop rather than a
	// clean shutdown; the loop must still notice and signal Disconnected.
	w.fsw.Close()

	select {
	case <-w.Disconnected:
	case <-time.After(time.Second):
		t.Fatal("Disconnected was not closed after the fsnotify source died")
	}
}
