// Package wire — бинарный формат сообщений на сети.
//
// Схема фиксированная и без версии: u64 timestamp (big-endian), затем
// sender и content как uvarint-длина + байты. Версионирование живёт в имени
// топика, не в пейлоаде.
package wire

import (
	"encoding/binary"
	"strconv"
)

// Message — одно чат-сообщение. Неизменяемо после создания: правок и
// удалений в протоколе нет, исправление шлётся новым сообщением.
type Message struct {
	Timestamp uint64 // мс с эпохи
	Sender    string
	Content   string
}

// Key — синтетический ключ "{timestamp}-{sender}" для дедупликации и
// ключей списков на фронте. По сети не передаётся.
func (m Message) Key() string {
	return strconv.FormatUint(m.Timestamp, 10) + "-" + m.Sender
}

func Encode(m Message) []byte {
	buf := make([]byte, 8, 8+2*binary.MaxVarintLen64+len(m.Sender)+len(m.Content))
	binary.BigEndian.PutUint64(buf, m.Timestamp)
	buf = binary.AppendUvarint(buf, uint64(len(m.Sender)))
	buf = append(buf, m.Sender...)
	buf = binary.AppendUvarint(buf, uint64(len(m.Content)))
	buf = append(buf, m.Content...)
	return buf
}

// Decode возвращает nil на любом битом или чужом пейлоаде — в топике могут
// оказаться данные других приложений, это не ошибка, их просто отбрасываем.
func Decode(b []byte) *Message {
	if len(b) < 8 {
		return nil
	}
	ts := binary.BigEndian.Uint64(b[:8])

	sender, rest, ok := readString(b[8:])
	if !ok {
		return nil
	}
	content, rest, ok := readString(rest)
	if !ok || len(rest) != 0 {
		return nil
	}

	return &Message{Timestamp: ts, Sender: sender, Content: content}
}

func readString(b []byte) (string, []byte, bool) {
	n, sz := binary.Uvarint(b)
	if sz <= 0 || n > uint64(len(b)-sz) {
		return "", nil, false
	}
	end := sz + int(n)
	return string(b[sz:end]), b[end:], true
}
