// Package chat — оркестратор одного открытого view (комната пространства
// или личная переписка): подписка, бэкфилл истории, отправка.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cwrk-planet/mesh-service/internal/mesh"
	"github.com/cwrk-planet/mesh-service/internal/stream"
	"github.com/cwrk-planet/mesh-service/internal/wire"
)

var (
	ErrEmptyMessage = errors.New("empty message")
	ErrNotDelivered = errors.New("message not delivered")
)

const maxContentLen = 4000

type Options struct {
	// OnInsert дергается на каждое новое (после дедупликации) сообщение —
	// live, история или собственная оптимистичная вставка.
	OnInsert func(wire.Message)

	// Now подменяется в тестах.
	Now func() time.Time
}

// Controller живёт от открытия view до закрытия. Закрытие снимает только
// live-подписку: history-запрос одноразовый, он дорабатывает сам и его
// поздние результаты глохнут в закрытом Merger.
type Controller struct {
	session *mesh.Session
	topic   string
	userID  string

	merger     *stream.Merger
	cancelLive mesh.CancelFunc
	onInsert   func(wire.Message)
	now        func() time.Time
}

// Open монтирует view: подключение, live-подписка и параллельный бэкфилл
// истории через общий decode-and-insert обработчик.
func Open(ctx context.Context, session *mesh.Session, topicName, userID string, opts Options) (*Controller, error) {
	c := &Controller{
		session:  session,
		topic:    topicName,
		userID:   userID,
		merger:   stream.NewMerger(),
		onInsert: opts.OnInsert,
		now:      opts.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}

	if err := session.EnsureConnected(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	cancel, err := session.SubscribeLive(ctx, topicName, c.ingest)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topicName, err)
	}
	c.cancelLive = cancel

	// Бэкфилл не привязан к контексту view: одноразовый запрос дорабатывает
	// и после unmount, его поздние результаты гасятся закрытым Merger.
	hctx := context.WithoutCancel(ctx)
	go func() {
		// Комната работоспособна и live-only: отказ истории не ошибка view.
		if err := session.QueryHistory(hctx, topicName, c.ingest); err != nil {
			slog.Warn("chat: history backfill failed, live only",
				"topic", topicName, "err", err)
		}
	}()

	return c, nil
}

// ingest — общий путь live и истории: битое/чужое молча отбрасываем,
// дубликаты гасит Merger.
func (c *Controller) ingest(payload []byte) {
	msg := wire.Decode(payload)
	if msg == nil {
		return
	}
	if c.merger.Insert(*msg) && c.onInsert != nil {
		c.onInsert(*msg)
	}
}

// Send валидирует, публикует и при успехе оптимистично вставляет сообщение
// локально: собственная live-подписка publish отправителя может и не отразить,
// а если отразит — дедупликация съест эхо. Ретраев нет, отказ отдаём наверх.
func (c *Controller) Send(ctx context.Context, content string) (wire.Message, error) {
	msg, err := buildMessage(c.userID, content, c.now())
	if err != nil {
		return wire.Message{}, err
	}

	res, err := c.session.Publish(ctx, c.topic, wire.Encode(msg))
	if err != nil {
		return wire.Message{}, fmt.Errorf("publish: %w", err)
	}
	if res.SuccessCount == 0 {
		return wire.Message{}, ErrNotDelivered
	}

	if c.merger.Insert(msg) && c.onInsert != nil {
		c.onInsert(msg)
	}
	return msg, nil
}

// Messages — снапшот для рендера: по возрастанию timestamp, без дублей.
func (c *Controller) Messages() []wire.Message {
	return c.merger.Snapshot()
}

func (c *Controller) Topic() string { return c.topic }

// Close размонтирует view. Повторный вызов безопасен.
func (c *Controller) Close() {
	if c.cancelLive != nil {
		c.cancelLive()
		c.cancelLive = nil
	}
	c.merger.Close()
}

func buildMessage(sender, content string, now time.Time) (wire.Message, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return wire.Message{}, ErrEmptyMessage
	}
	if len(text) > maxContentLen {
		return wire.Message{}, fmt.Errorf("message longer than %d bytes", maxContentLen)
	}
	return wire.Message{
		Timestamp: uint64(now.UnixMilli()),
		Sender:    sender,
		Content:   text,
	}, nil
}
