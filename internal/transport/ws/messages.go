package ws

import "github.com/cwrk-planet/mesh-service/internal/wire"

// Типы кадров между фронтом и сервисом
const (
	TypeState   = "state"    // снапшот уже слитых сообщений при подключении
	TypeMessage = "message"  // одно новое сообщение (live, история или своё)
	TypeChat    = "chat"     // входящий кадр: отправить сообщение
	TypeChatAck = "chat_ack" // подтверждение отправки
	TypeError   = "error"    // отказ отправки; фронт не чистит поле ввода
)

type Frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type MessageItem struct {
	Key       string `json:"key"` // ключ списка на фронте
	Timestamp uint64 `json:"ts_ms"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
}

func toItem(m wire.Message) MessageItem {
	return MessageItem{
		Key:       m.Key(),
		Timestamp: m.Timestamp,
		Sender:    m.Sender,
		Content:   m.Content,
	}
}

type StatePayload struct {
	Topic    string        `json:"topic"`
	Messages []MessageItem `json:"messages"`
}

type ChatPayload struct {
	Content string `json:"content"`
}

type ChatAckPayload struct {
	Key string `json:"key"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
