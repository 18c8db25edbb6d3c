// Package mesh — жизненный цикл подключения к внешней pub/sub-сети.
package mesh

import "context"

// Handler вызывается по одному разу на каждый сырой пейлоад топика.
type Handler func(payload []byte)

// CancelFunc снимает live-подписку; обязан вызываться при закрытии view,
// иначе подписка течёт.
type CancelFunc func()

// PublishResult — итог отправки. Успех = SuccessCount > 0; ретраев этот
// слой не делает, решение за вызывающим.
type PublishResult struct {
	SuccessCount int
	Failures     []error
}

// Client — узкий контракт внешней сети доставки сообщений. Транспорт, поиск
// пиров и долговечность — целиком её забота; нам нужны только publish,
// live-подписка и одноразовый запрос истории.
type Client interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// WaitReady блокирует, пока сеть не готова и публиковать, и доставлять
	// подписки (есть хотя бы один способный пир). Ограничивается контекстом.
	WaitReady(ctx context.Context) error

	Publish(ctx context.Context, topic string, payload []byte) (PublishResult, error)

	// SubscribeLive — колбэк на каждое новое сообщение топика с момента
	// подписки. История сюда не попадает.
	SubscribeLive(ctx context.Context, topic string, h Handler) (CancelFunc, error)

	// QueryHistory — одноразовый бэкфилл: колбэк на каждый найденный
	// исторический пейлоад в порядке доставки сети (не обязательно
	// отсортированном — финальный порядок наводит stream.Merger).
	QueryHistory(ctx context.Context, topic string, h Handler) error
}
