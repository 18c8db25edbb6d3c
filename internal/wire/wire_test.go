package wire

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	msgs := []Message{
		{Timestamp: 0, Sender: "", Content: ""},
		{Timestamp: 1700000000000, Sender: "alice", Content: "hi"},
		{Timestamp: 1<<63 + 42, Sender: "user-1", Content: "привет, мир"},
		{Timestamp: 123, Sender: "bob", Content: string(make([]byte, 300))},
	}

	for _, m := range msgs {
		b := Encode(m)
		got := Decode(b)
		if got == nil {
			t.Fatalf("Decode(Encode(%+v)) = nil", m)
		}
		if *got != m {
			t.Fatalf("round trip mismatch: got %+v, want %+v", *got, m)
		}
		// повторное кодирование байт-в-байт стабильно
		if !bytes.Equal(Encode(*got), b) {
			t.Fatalf("re-encode not byte-identical for %+v", m)
		}
	}
}

func TestDecodeRobustness(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{1, 2, 3},                          // короче заголовка
		{0, 0, 0, 0, 0, 0, 0, 1},           // только timestamp
		{0, 0, 0, 0, 0, 0, 0, 1, 200, 200}, // битая длина
		{0, 0, 0, 0, 0, 0, 0, 1, 50, 'a'},  // длина больше остатка
		append(Encode(Message{Timestamp: 1, Sender: "a", Content: "b"}), 0xFF), // мусор в хвосте
		[]byte("completely foreign payload"),
	}
	for _, b := range cases {
		if got := Decode(b); got != nil {
			t.Fatalf("Decode(%v) = %+v, want nil", b, got)
		}
	}
}

func TestKey(t *testing.T) {
	m := Message{Timestamp: 1000, Sender: "alice", Content: "hi"}
	if m.Key() != "1000-alice" {
		t.Fatalf("key = %s", m.Key())
	}
}
