package archive

import (
	"context"
	"strconv"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/shelfbot/internal/config"
	"github.com/eliseohh/shelfbot/internal/index"
	"github.com/eliseohh/shelfbot/internal/logger"
)

const DefaultLimit = 5

// Handle identifies the archive chat: "@username" or a numeric chat id.
type Handle string

func (h Handle) Configured() bool {
	return config.BotConfig{ArchiveChannel: string(h)}.ArchiveConfigured()
}

// Matches reports whether chat is the archive this handle names.
func (h Handle) Matches(chat *tele.Chat) bool {
	if chat == nil || !h.Configured() {
		return false
	}
	s := string(h)
	if strings.HasPrefix(s, "@") {
		return strings.EqualFold(s[1:], chat.Username)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	return err == nil && id == chat.ID
}

// ChatResolver is the subset of *tele.Bot used to look the archive up.
type ChatResolver interface {
	ChatByUsername(name string) (*tele.Chat, error)
	ChatByID(id int64) (*tele.Chat, error)
}

// Source is the searchable store of archive posts.
type Source interface {
	Search(ctx context.Context, chatID int64, query string, limit int) ([]index.Message, error)
}

type Gateway struct {
	handle Handle
	chats  ChatResolver
	source Source
	limit  int
	log    logger.ILogger

	mu   sync.Mutex
	chat *tele.Chat
}

func NewGateway(handle Handle, chats ChatResolver, source Source, limit int, log logger.ILogger) *Gateway {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Gateway{handle: handle, chats: chats, source: source, limit: limit, log: log}
}

func (g *Gateway) Handle() Handle { return g.handle }

// ArchiveChat resolves the archive through the Bot API once and caches it.
func (g *Gateway) ArchiveChat() (*tele.Chat, error) {
	if !g.handle.Configured() {
		return nil, ErrNotConfigured
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chat != nil {
		return g.chat, nil
	}

	var (
		chat *tele.Chat
		err  error
	)
	s := string(g.handle)
	if id, perr := strconv.ParseInt(s, 10, 64); perr == nil {
		chat, err = g.chats.ChatByID(id)
	} else {
		chat, err = g.chats.ChatByUsername(s)
	}
	if err != nil {
		return nil, err
	}
	g.chat = chat
	return chat, nil
}

// Search returns at most limit records for query. Every failure comes back
// as an *Error; a benign "not modified" rejection yields no records and no
// error. An empty result is not an error.
func (g *Gateway) Search(ctx context.Context, query string) ([]Record, error) {
	if !g.handle.Configured() {
		return nil, ErrNotConfigured
	}

	chat, err := g.ArchiveChat()
	if err != nil {
		return nil, g.fail(query, err)
	}

	msgs, err := g.source.Search(ctx, chat.ID, query, g.limit)
	if err != nil {
		return nil, g.fail(query, err)
	}

	records := project(msgs)
	g.log.Info("Search", "Archive searched", map[string]interface{}{
		"query":   query,
		"matched": len(msgs),
		"kept":    len(records),
	})
	return records, nil
}

func (g *Gateway) fail(query string, err error) error {
	classified := classify(err)
	if classified == nil {
		return nil
	}
	g.log.Warn("Search", "Archive search failed", map[string]interface{}{
		"query": query,
		"kind":  classified.Kind.String(),
		"error": err.Error(),
	})
	return classified
}
