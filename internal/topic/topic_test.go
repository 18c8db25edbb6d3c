package topic

import "testing"

func TestSpaceRoundTrip(t *testing.T) {
	n := NewNamer("cwrkmesh", "1")

	got := n.Space("abc123")
	if got != "/cwrkmesh/1/space-abc123/bin" {
		t.Fatalf("unexpected space topic: %s", got)
	}

	p := n.Parse(got)
	if p.Kind != KindSpace || p.ID != "abc123" {
		t.Fatalf("parse mismatch: %+v", p)
	}
}

func TestDirectSymmetry(t *testing.T) {
	n := NewNamer("", "")

	ab := n.Direct("alice", "bob")
	ba := n.Direct("bob", "alice")
	if ab != ba {
		t.Fatalf("direct topic not symmetric: %s != %s", ab, ba)
	}
	if ab != "/cwrkmesh/1/dm-alice-bob/bin" {
		t.Fatalf("unexpected direct topic: %s", ab)
	}

	p := n.Parse(ab)
	if p.Kind != KindDirect || p.ID != "alice-bob" {
		t.Fatalf("parse mismatch: %+v", p)
	}
}

func TestParseMalformed(t *testing.T) {
	n := NewNamer("cwrkmesh", "1")

	bad := []string{
		"",
		"garbage",
		"/cwrkmesh/1/space-abc",              // нет сегмента кодировки
		"/cwrkmesh/1/space-abc/bin/extra",    // лишний сегмент
		"/othermesh/1/space-abc/bin",         // чужой namespace
		"/cwrkmesh/2/space-abc/bin",          // чужая версия
		"/cwrkmesh/1/space-abc/proto",        // чужая кодировка
		"/cwrkmesh/1/room-abc/bin",           // неизвестный префикс
		"/cwrkmesh/1/space-/bin",             // пустой id
		"/cwrkmesh/1/dm-alice/bin",           // dm без пары
		"cwrkmesh/1/space-abc/bin",           // нет ведущего слэша
	}
	for _, s := range bad {
		p := n.Parse(s)
		if p.Kind != KindUnknown || p.ID != "" {
			t.Fatalf("Parse(%q) = %+v, want unknown", s, p)
		}
	}
}

func TestNamespacesDoNotCollide(t *testing.T) {
	a := NewNamer("cwrkmesh", "1")
	b := NewNamer("cwrkmesh", "2")

	if a.Space("s") == b.Space("s") {
		t.Fatal("different schema versions must produce different topics")
	}
	if p := a.Parse(b.Space("s")); p.Kind != KindUnknown {
		t.Fatalf("foreign-version topic parsed as %+v", p)
	}
}
