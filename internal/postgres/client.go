// Package postgres — mesh.Client поверх Postgres: INSERT + NOTIFY на
// публикацию, LISTEN на live-доставку, SELECT на историю. Годится, когда
// несколько инстансов сервиса делят одну БД; долговечность сообщений —
// забота базы.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cwrk-planet/mesh-service/internal/mesh"
)

const notifyChannel = "mesh_messages"

var ErrNotStarted = errors.New("postgres: client not started")

// по одной команде на Exec: extended protocol pgx не принимает пачку
var schema = []string{
	`CREATE TABLE IF NOT EXISTS mesh_messages (
		id         BIGSERIAL PRIMARY KEY,
		topic      TEXT NOT NULL,
		payload    BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS mesh_messages_topic_id_idx ON mesh_messages (topic, id)`,
}

type Client struct {
	dsn          string
	historyLimit int

	mu     sync.RWMutex
	pool   *pgxpool.Pool
	nextID int
	subs   map[string]map[int]mesh.Handler

	cancelListen context.CancelFunc
	listenDone   chan struct{}
}

func New(dsn string, historyLimit int) *Client {
	if historyLimit <= 0 {
		historyLimit = 500
	}
	return &Client{
		dsn:          dsn,
		historyLimit: historyLimit,
		subs:         make(map[string]map[int]mesh.Handler),
	}
}

func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool != nil {
		return nil
	}

	pool, err := NewPool(ctx, PoolConfig{DSN: c.dsn, ApplicationName: "mesh-service"})
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	c.pool = pool
	c.cancelListen = cancel
	c.listenDone = make(chan struct{})
	go c.listenLoop(listenCtx)

	return nil
}

func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	pool := c.pool
	cancel := c.cancelListen
	done := c.listenDone
	c.pool = nil
	c.cancelListen = nil
	c.subs = make(map[string]map[int]mesh.Handler)
	c.mu.Unlock()

	if pool == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
	pool.Close()
	return nil
}

// WaitReady: "пир" здесь — сама база; готовность = успешный пинг пула.
func (c *Client) WaitReady(ctx context.Context) error {
	c.mu.RLock()
	pool := c.pool
	c.mu.RUnlock()
	if pool == nil {
		return ErrNotStarted
	}
	return pool.Ping(ctx)
}

// Publish — вставка и NOTIFY одной командой. Уведомление вернётся и нашему
// собственному LISTEN-соединению, то есть подписчики этого же инстанса
// получат сообщение тем же путём, что и чужие.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) (mesh.PublishResult, error) {
	c.mu.RLock()
	pool := c.pool
	c.mu.RUnlock()
	if pool == nil {
		return mesh.PublishResult{Failures: []error{ErrNotStarted}}, ErrNotStarted
	}

	_, err := pool.Exec(ctx, `
		WITH ins AS (
			INSERT INTO mesh_messages (topic, payload) VALUES ($1, $2) RETURNING id
		)
		SELECT pg_notify($3, ins.id::text || ' ' || $1) FROM ins
	`, topic, payload, notifyChannel)
	if err != nil {
		return mesh.PublishResult{Failures: []error{err}}, err
	}
	return mesh.PublishResult{SuccessCount: 1}, nil
}

func (c *Client) SubscribeLive(ctx context.Context, topic string, h mesh.Handler) (mesh.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool == nil {
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
	pool := c.pool
	c.mu.RUnlock()
	if pool == nil {
		return ErrNotStarted
	}

	rows, err := pool.Query(ctx, `
		SELECT payload FROM mesh_messages
		WHERE topic = $1
		ORDER BY id DESC
		LIMIT $2
	`, topic, c.historyLimit)
	if err != nil {
		return err
	}
	defer rows.Close()

	// Порядок доставки истории не гарантируется контрактом — сортирует приёмник.
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return err
		}
		h(payload)
	}
	return rows.Err()
}

// listenLoop держит выделенное LISTEN-соединение и раздаёт уведомления
// локальным подписчикам. При обрыве переподключается с паузой.
func (c *Client) listenLoop(ctx context.Context) {
	defer close(c.listenDone)

	for ctx.Err() == nil {
		if err := c.listenOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("postgres: listen connection lost, reconnecting", "err", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
	}
}

func (c *Client) listenOnce(ctx context.Context) error {
	c.mu.RLock()
	pool := c.pool
	c.mu.RUnlock()
	if pool == nil {
		return ErrNotStarted
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		c.dispatch(ctx, pool, n.Payload)
	}
}

// dispatch: пейлоад уведомления — "<id> <topic>"; тело сообщения добираем
// из таблицы, чтобы не упираться в лимит размера NOTIFY.
func (c *Client) dispatch(ctx context.Context, pool *pgxpool.Pool, notification string) {
	idStr, topic, ok := strings.Cut(notification, " ")
	if !ok {
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}

	c.mu.RLock()
	handlers := make([]mesh.Handler, 0, len(c.subs[topic]))
	for _, fn := range c.subs[topic] {
		handlers = append(handlers, fn)
	}
	c.mu.RUnlock()
	if len(handlers) == 0 {
		return
	}

	var payload []byte
	if err := pool.QueryRow(ctx, `SELECT payload FROM mesh_messages WHERE id = $1`, id).Scan(&payload); err != nil {
		slog.Debug("postgres: fetch notified message failed", "id", id, "err", err)
		return
	}
	for _, fn := range handlers {
		fn(payload)
	}
}
