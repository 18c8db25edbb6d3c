package stream

import (
	"testing"

	"github.com/cwrk-planet/mesh-service/internal/wire"
)

func TestInsertIdempotent(t *testing.T) {
	m := NewMerger()
	msg := wire.Message{Timestamp: 1000, Sender: "alice", Content: "hi"}

	if !m.Insert(msg) {
		t.Fatal("first insert must report new")
	}
	if m.Insert(msg) {
		t.Fatal("duplicate insert must be a no-op")
	}
	if m.Len() != 1 {
		t.Fatalf("len = %d, want 1", m.Len())
	}
}

func TestOrdering(t *testing.T) {
	m := NewMerger()
	for _, ts := range []uint64{300, 100, 200} {
		m.Insert(wire.Message{Timestamp: ts, Sender: "a", Content: "x"})
	}

	snap := m.Snapshot()
	want := []uint64{100, 200, 300}
	for i, ts := range want {
		if snap[i].Timestamp != ts {
			t.Fatalf("snapshot[%d].Timestamp = %d, want %d", i, snap[i].Timestamp, ts)
		}
	}
}

func TestStableTieBreak(t *testing.T) {
	m := NewMerger()
	m.Insert(wire.Message{Timestamp: 50, Sender: "first", Content: "1"})
	m.Insert(wire.Message{Timestamp: 50, Sender: "second", Content: "2"})
	m.Insert(wire.Message{Timestamp: 10, Sender: "third", Content: "3"})

	snap := m.Snapshot()
	if snap[0].Sender != "third" || snap[1].Sender != "first" || snap[2].Sender != "second" {
		t.Fatalf("tie-break broke arrival order: %+v", snap)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	m := NewMerger()
	m.Insert(wire.Message{Timestamp: 1, Sender: "a", Content: "x"})

	snap := m.Snapshot()
	snap[0].Content = "mutated"

	if m.Snapshot()[0].Content != "x" {
		t.Fatal("snapshot must not alias internal state")
	}
}

func TestCloseDropsLateInserts(t *testing.T) {
	m := NewMerger()
	m.Close()

	// поздний колбэк истории после unmount
	if m.Insert(wire.Message{Timestamp: 1, Sender: "a", Content: "late"}) {
		t.Fatal("insert after close must be dropped")
	}
	if m.Len() != 0 {
		t.Fatalf("len = %d, want 0", m.Len())
	}
}
