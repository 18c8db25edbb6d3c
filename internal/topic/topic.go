package topic

import "strings"

// Формат топика: /{app}/{version}/{channel}/bin
// app и version намеренно зашиты в Namer: смена схемы сообщений = bump версии,
// старые и новые клиенты расходятся по разным топикам без конфликтов.
const (
	DefaultApp     = "cwrkmesh"
	DefaultVersion = "1"

	encoding     = "bin"
	prefixSpace  = "space-"
	prefixDirect = "dm-"
)

type Kind string

const (
	KindSpace   Kind = "space"
	KindDirect  Kind = "dm"
	KindUnknown Kind = "unknown"
)

type Parsed struct {
	Kind Kind
	ID   string
}

// Namer строит и разбирает канонические имена топиков для одного
// пространства имён (app + version).
type Namer struct {
	app     string
	version string
}

func NewNamer(app, version string) *Namer {
	if app == "" {
		app = DefaultApp
	}
	if version == "" {
		version = DefaultVersion
	}
	return &Namer{app: app, version: version}
}

// Space — топик комнаты пространства.
func (n *Namer) Space(spaceID string) string {
	return "/" + n.app + "/" + n.version + "/" + prefixSpace + spaceID + "/" + encoding
}

// Direct — топик личной переписки. Идентификаторы сортируются, поэтому
// Direct(a, b) == Direct(b, a) независимо от того, кто отправитель.
func (n *Namer) Direct(a, b string) string {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return "/" + n.app + "/" + n.version + "/" + prefixDirect + lo + "-" + hi + "/" + encoding
}

// Parse разбирает топик, пришедший из сети. Топики приходят и от чужих
// пиров, поэтому любое отклонение — KindUnknown, никогда не ошибка.
func (n *Namer) Parse(s string) Parsed {
	unknown := Parsed{Kind: KindUnknown}

	parts := strings.Split(s, "/")
	if len(parts) != 5 || parts[0] != "" {
		return unknown
	}
	if parts[1] != n.app || parts[2] != n.version || parts[4] != encoding {
		return unknown
	}

	channel := parts[3]
	switch {
	case strings.HasPrefix(channel, prefixSpace):
		id := channel[len(prefixSpace):]
		if id == "" {
			return unknown
		}
		return Parsed{Kind: KindSpace, ID: id}
	case strings.HasPrefix(channel, prefixDirect):
		id := channel[len(prefixDirect):]
		if !strings.Contains(id, "-") {
			return unknown
		}
		return Parsed{Kind: KindDirect, ID: id}
	default:
		return unknown
	}
}
