package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/cwrk-planet/mesh-service/internal/mesh"
	"github.com/cwrk-planet/mesh-service/internal/stream"
	"github.com/cwrk-planet/mesh-service/internal/wire"
)

// Backfill — одноразовая выборка истории топика без live-подписки (REST).
// Сливается через Merger, так что порядок и дубли доставки не важны.
func Backfill(ctx context.Context, session *mesh.Session, topicName string) ([]wire.Message, error) {
	if err := session.EnsureConnected(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	m := stream.NewMerger()
	if err := session.QueryHistory(ctx, topicName, func(payload []byte) {
		if msg := wire.Decode(payload); msg != nil {
			m.Insert(*msg)
		}
	}); err != nil {
		return nil, fmt.Errorf("query history %s: %w", topicName, err)
	}
	return m.Snapshot(), nil
}

// SendOnce — отправка без смонтированного view (REST). Та же валидация и
// семантика отказа, что у Controller.Send, но без оптимистичной вставки:
// вставлять некуда.
func SendOnce(ctx context.Context, session *mesh.Session, topicName, sender, content string) (wire.Message, error) {
	if err := session.EnsureConnected(ctx); err != nil {
		return wire.Message{}, fmt.Errorf("connect: %w", err)
	}

	msg, err := buildMessage(sender, content, time.Now())
	if err != nil {
		return wire.Message{}, err
	}

	res, err := session.Publish(ctx, topicName, wire.Encode(msg))
	if err != nil {
		return wire.Message{}, fmt.Errorf("publish: %w", err)
	}
	if res.SuccessCount == 0 {
		return wire.Message{}, ErrNotDelivered
	}
	return msg, nil
}
