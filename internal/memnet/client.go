// Package memnet — внутрипроцессная реализация mesh.Client: запуск без
// внешней сети (dev, один инстанс) и тесты. История ограничена кольцом на
// каждый топик, долговечности между рестартами нет.
package memnet

import (
	"context"
	"errors"
	"sync"

	"github.com/cwrk-planet/mesh-service/internal/mesh"
)

const DefaultHistoryLimit = 500

var ErrNotStarted = errors.New("memnet: client not started")

type Client struct {
	historyLimit int

	mu      sync.RWMutex
	started bool
	nextID  int
	subs    map[string]map[int]mesh.Handler
	history map[string][][]byte
}

func New(historyLimit int) *Client {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Client{
		historyLimit: historyLimit,
		subs:         make(map[string]map[int]mesh.Handler),
		history:      make(map[string][][]byte),
	}
}

func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return nil
}

func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.started = false
	c.subs = make(map[string]map[int]mesh.Handler)
	c.mu.Unlock()
	return nil
}

// WaitReady: локальный узел "пир" сам себе — готов сразу после Start.
func (c *Client) WaitReady(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.started {
		return ErrNotStarted
	}
	return nil
}

// Publish кладёт пейлоад в историю топика и раздаёт всем подписчикам,
// включая подписку отправителя — дедупликация на приёмнике это гасит.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) (mesh.PublishResult, error) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return mesh.PublishResult{Failures: []error{ErrNotStarted}}, ErrNotStarted
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)
	h := append(c.history[topic], buf)
	if len(h) > c.historyLimit {
		h = h[len(h)-c.historyLimit:]
	}
	c.history[topic] = h

	handlers := make([]mesh.Handler, 0, len(c.subs[topic]))
	for _, fn := range c.subs[topic] {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(buf)
	}
	return mesh.PublishResult{SuccessCount: 1}, nil
}

func (c *Client) SubscribeLive(ctx context.Context, topic string, h mesh.Handler) (mesh.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil, ErrNotStarted
	}

	if c.subs[topic] == nil {
		c.subs[topic] = make(map[int]mesh.Handler)
	}
	id := c.nextID
	c.nextID++
	c.subs[topic][id] = h

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if m, ok := c.subs[topic]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(c.subs, topic)
			}
		}
	}, nil
}

func (c *Client) QueryHistory(ctx context.Context, topic string, h mesh.Handler) error {
	c.mu.RLock()
	if !c.started {
		c.mu.RUnlock()
		return ErrNotStarted
	}
	payloads := make([][]byte, len(c.history[topic]))
	copy(payloads, c.history[topic])
	c.mu.RUnlock()

	for _, p := range payloads {
		h(p)
	}
	return nil
}
