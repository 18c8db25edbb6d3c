package mesh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const DefaultPeerWait = 30 * time.Second

type SessionConfig struct {
	// PeerWait ограничивает ожидание готовых пиров при подключении.
	// По истечении сессия всё равно считается подключённой: UI должен
	// рендериться и без пиров, доставка догонит. Default: 30s.
	PeerWait time.Duration
}

// Session владеет единственным подключением процесса к сети. Все комнаты и
// переписки переиспользуют одну сессию и вешают на неё свои подписки.
type Session struct {
	client   Client
	peerWait time.Duration

	mu    sync.Mutex
	state State

	connect singleflight.Group
}

func NewSession(client Client, cfg SessionConfig) *Session {
	pw := cfg.PeerWait
	if pw <= 0 {
		pw = DefaultPeerWait
	}
	return &Session{client: client, peerWait: pw}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	sessionState.Set(float64(st))
}

// EnsureConnected доводит сессию до Connected и возвращает управление.
// Повторный вызов на подключённой сессии — мгновенный no-op; конкурентные
// вызовы во время подключения схлопываются в одну попытку (singleflight),
// второго подключения не будет.
//
// Отсутствие пиров за PeerWait — не ошибка: логируем warning и отдаём
// сессию как есть, вызывающий может работать и ретраить.
func (s *Session) EnsureConnected(ctx context.Context) error {
	if s.State() == StateConnected {
		return nil
	}

	_, err, _ := s.connect.Do("connect", func() (any, error) {
		if s.State() == StateConnected {
			return nil, nil
		}
		s.setState(StateConnecting)

		if err := s.client.Start(ctx); err != nil {
			s.setState(StateDisconnected)
			return nil, fmt.Errorf("start client: %w", err)
		}

		waitCtx, cancel := context.WithTimeout(ctx, s.peerWait)
		defer cancel()
		if err := s.client.WaitReady(waitCtx); err != nil {
			slog.Warn("mesh: peers not ready, continuing anyway",
				"wait", s.peerWait.String(), "err", err)
		}

		s.setState(StateConnected)
		return nil, nil
	})
	return err
}

// Publish — отправка без ретраев; результат отдаём вызывающему как есть.
func (s *Session) Publish(ctx context.Context, topic string, payload []byte) (PublishResult, error) {
	res, err := s.client.Publish(ctx, topic, payload)
	publishTotal.Inc()
	if err != nil || res.SuccessCount == 0 {
		publishFailed.Inc()
	}
	return res, err
}

func (s *Session) SubscribeLive(ctx context.Context, topic string, h Handler) (CancelFunc, error) {
	return s.client.SubscribeLive(ctx, topic, func(payload []byte) {
		receivedTotal.Inc()
		h(payload)
	})
}

func (s *Session) QueryHistory(ctx context.Context, topic string, h Handler) error {
	return s.client.QueryHistory(ctx, topic, h)
}

// Teardown останавливает клиент. Идемпотентен: на отключённой сессии — no-op.
func (s *Session) Teardown(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateDisconnected
	s.mu.Unlock()
	sessionState.Set(float64(StateDisconnected))

	if err := s.client.Stop(ctx); err != nil {
		return fmt.Errorf("stop client: %w", err)
	}
	return nil
}
