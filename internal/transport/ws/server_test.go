package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/mesh-service/internal/memnet"
	"github.com/cwrk-planet/mesh-service/internal/mesh"
	"github.com/cwrk-planet/mesh-service/internal/topic"
)

type rawFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	session := mesh.NewSession(memnet.New(0), mesh.SessionConfig{PeerWait: 50 * time.Millisecond})
	srv := NewServer(session, topic.NewNamer("", ""))

	r := chi.NewRouter()
	r.Get("/ws/spaces/{id}", srv.HandleSpace)
	r.Get("/ws/dm/{peer}", srv.HandleDirect)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) rawFrame {
	t.Helper()

	var f rawFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// ждём кадр нужного типа, пропуская остальные
func readFrameOfType(t *testing.T, conn *websocket.Conn, typ string) rawFrame {
	t.Helper()

	for i := 0; i < 10; i++ {
		f := readFrame(t, conn)
		if f.Type == typ {
			return f
		}
	}
	t.Fatalf("frame of type %s never arrived", typ)
	return rawFrame{}
}

func TestMountSendAck(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts, "/ws/spaces/room1?user_id=alice")

	state := readFrame(t, conn)
	if state.Type != TypeState {
		t.Fatalf("first frame = %s, want state", state.Type)
	}

	if err := conn.WriteJSON(Frame{Type: TypeChat, Payload: ChatPayload{Content: "  hi  "}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	msg := readFrameOfType(t, conn, TypeMessage)
	var item MessageItem
	if err := json.Unmarshal(msg.Payload, &item); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if item.Sender != "alice" || item.Content != "hi" {
		t.Fatalf("message = %+v, want trimmed 'hi' from alice", item)
	}

	ack := readFrameOfType(t, conn, TypeChatAck)
	var ap ChatAckPayload
	if err := json.Unmarshal(ack.Payload, &ap); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ap.Key != item.Key {
		t.Fatalf("ack key %s != message key %s", ap.Key, item.Key)
	}
}

func TestEmptyMessageGetsErrorFrame(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts, "/ws/spaces/room1?user_id=alice")

	readFrame(t, conn) // state

	if err := conn.WriteJSON(Frame{Type: TypeChat, Payload: ChatPayload{Content: "   "}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := readFrame(t, conn)
	if f.Type != TypeError {
		t.Fatalf("frame = %s, want error", f.Type)
	}
}

func TestDirectDeliveryBetweenTwoViews(t *testing.T) {
	ts := newTestServer(t)

	// dm-топик симметричен: alice→bob и bob→alice это один канал
	alice := dial(t, ts, "/ws/dm/bob?user_id=alice")
	bob := dial(t, ts, "/ws/dm/alice?user_id=bob")

	readFrame(t, alice)
	readFrame(t, bob)

	if err := alice.WriteJSON(Frame{Type: TypeChat, Payload: ChatPayload{Content: "hi"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := readFrameOfType(t, bob, TypeMessage)
	var item MessageItem
	if err := json.Unmarshal(got.Payload, &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if item.Sender != "alice" || item.Content != "hi" {
		t.Fatalf("bob received %+v", item)
	}
}

func TestRejectsMissingUserID(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/spaces/room1"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("dial without user_id must fail")
	}
}
