package adapter

import (
	"testing"

	"github.com/banksean/deskicond/internal/wire"
)

// fakeRasterizer and fakeWindowAdapter exist to pin the interfaces
// against a concrete implementation, the same role mockContainerOps
// plays against ContainerOps in the teacher's tests.

type fakeRasterizer struct {
	lastCmds []wire.DrawingCommand
	lastSize uint32
}

func (f *fakeRasterizer) Rasterize(cmds []wire.DrawingCommand, size uint32) (Pixmap, error) {
	f.lastCmds = cmds
	f.lastSize = size
	return "pixmap:" + string(wire.KindFile), nil
}

type fakeWindowAdapter struct {
	placed  map[string]wire.Position
	removed []string
}

func newFakeWindowAdapter() *fakeWindowAdapter {
	return &fakeWindowAdapter{placed: make(map[string]wire.Position)}
}

func (f *fakeWindowAdapter) Place(iconID string, pos wire.Position, pix Pixmap) error {
	f.placed[iconID] = pos
	return nil
}

func (f *fakeWindowAdapter) Remove(iconID string) error {
	f.removed = append(f.removed, iconID)
	return nil
}

var (
	_ Rasterizer    = (*fakeRasterizer)(nil)
	_ WindowAdapter = (*fakeWindowAdapter)(nil)
)

func TestRasterizerFakeCapturesInputs(t *testing.T) {
	r := &fakeRasterizer{}
	cmds := []wire.DrawingCommand{wire.Clear("#000000")}
	pix, err := r.Rasterize(cmds, 64)
	if err != nil {
		t.Fatal(err)
	}
	if pix == nil {
		t.Fatal("expected non-nil pixmap")
	}
	if r.lastSize != 64 {
		t.Errorf("lastSize = %d, want 64", r.lastSize)
	}
}

func TestWindowAdapterPlaceAndRemove(t *testing.T) {
	w := newFakeWindowAdapter()
	pos := wire.Position{X: 10, Y: 20}
	if err := w.Place("icon-1", pos, "pixmap"); err != nil {
		t.Fatal(err)
	}
	if got := w.placed["icon-1"]; got != pos {
		t.Errorf("placed = %+v, want %+v", got, pos)
	}

	if err := w.Remove("icon-1"); err != nil {
		t.Fatal(err)
	}
	if len(w.removed) != 1 || w.removed[0] != "icon-1" {
		t.Errorf("removed = %v", w.removed)
	}
}

func TestInputSourceDeliversIconEvents(t *testing.T) {
	events := make(chan IconEvent, 1)
	events <- IconEvent{IconKey: "icon-1", Event: wire.ClickAt(1, 2, 3)}
	close(events)

	src := staticInputSource{ch: events}
	ev, ok := <-src.Events()
	if !ok {
		t.Fatal("expected one event")
	}
	if ev.IconKey != "icon-1" {
		t.Errorf("IconKey = %q", ev.IconKey)
	}
}

type staticInputSource struct{ ch chan IconEvent }

func (s staticInputSource) Events() <-chan IconEvent { return s.ch }

var _ InputSource = staticInputSource{}
