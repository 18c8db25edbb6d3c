// Package stream — упорядоченная склейка live- и history-потоков одного топика.
package stream

import (
	"sort"
	"sync"

	"github.com/cwrk-planet/mesh-service/internal/wire"
)

// Merger держит сообщения одного вида (комнаты или переписки), уникальные по
// Key(), по возрастанию timestamp. Live-подписка и history-запрос могут
// принести одно и то же сообщение — вставка идемпотентна, поэтому порядок и
// дубли доставки не важны.
//
// Живёт столько же, сколько открытый view; после Close поздние колбэки
// (например, дорабатывающий history-запрос) молча игнорируются.
type Merger struct {
	mu     sync.RWMutex
	seen   map[string]struct{}
	msgs   []wire.Message
	closed bool
}

func NewMerger() *Merger {
	return &Merger{seen: make(map[string]struct{})}
}

// Insert добавляет сообщение, если его ещё не было. Возвращает true, когда
// сообщение новое. Сортировка стабильная: при равных timestamp сохраняется
// порядок прихода.
func (m *Merger) Insert(msg wire.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	key := msg.Key()
	if _, ok := m.seen[key]; ok {
		return false
	}

	m.seen[key] = struct{}{}
	m.msgs = append(m.msgs, msg)
	sort.SliceStable(m.msgs, func(i, j int) bool {
		return m.msgs[i].Timestamp < m.msgs[j].Timestamp
	})
	return true
}

// Snapshot — копия для рендера.
func (m *Merger) Snapshot() []wire.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]wire.Message, len(m.msgs))
	copy(out, m.msgs)
	return out
}

func (m *Merger) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.msgs)
}

func (m *Merger) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
