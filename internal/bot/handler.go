package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/shelfbot/internal/archive"
	"github.com/eliseohh/shelfbot/internal/index"
	"github.com/eliseohh/shelfbot/internal/logger"
	"github.com/eliseohh/shelfbot/internal/selection"
	"github.com/eliseohh/shelfbot/internal/session"
)

// Searcher runs archive searches. *archive.Gateway implements it.
type Searcher interface {
	Search(ctx context.Context, query string) ([]archive.Record, error)
	Handle() archive.Handle
	ArchiveChat() (*tele.Chat, error)
}

// Selector turns button presses into forwards. *selection.Dispatcher implements it.
type Selector interface {
	Resolve(ctx context.Context, sessionID, data string) (int, error)
	Deliver(ctx context.Context, referenceID int, to tele.Recipient) error
}

// Indexer accepts archive posts for indexing. *index.Publisher implements it.
type Indexer interface {
	Publish(m index.Message) error
}

// Pruner drops archive posts that vanished from the channel. Telegram sends
// no update for deleted channel posts, so a failed forward is the only signal.
// *index.Publisher implements it.
type Pruner interface {
	Retract(chatID int64, messageID int) error
}

type StatsSource interface {
	Stats(ctx context.Context) (index.Stats, error)
}

// Messenger is the outbound part of *tele.Bot that handlers need message
// handles back from.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Config struct {
	Token          string
	PollTimeout    time.Duration
	RequestTimeout time.Duration
}

type Deps struct {
	Search   Searcher
	Cache    *session.Cache
	Selector Selector
	Indexer  Indexer
	Pruner   Pruner
	Stats    StatsSource
	Log      logger.ILogger
}

type Bot struct {
	api *tele.Bot
	out Messenger
	cfg Config
	Deps
}

// NewAPI connects to Telegram. Updates are dispatched concurrently, one
// goroutine per update.
func NewAPI(cfg Config, log logger.ILogger) (*tele.Bot, error) {
	pref := tele.Settings{
		Token: cfg.Token,
		Poller: &tele.LongPoller{
			Timeout: cfg.PollTimeout,
			AllowedUpdates: []string{
				"message", "callback_query", "channel_post", "edited_channel_post",
			},
		},
		OnError: func(err error, c tele.Context) {
			details := map[string]interface{}{"error": err}
			if c != nil && c.Chat() != nil {
				details["chat_id"] = c.Chat().ID
			}
			log.Error("Bot", "Unhandled handler error", details)
		},
	}
	return tele.NewBot(pref)
}

func New(api *tele.Bot, cfg Config, deps Deps) *Bot {
	b := &Bot{api: api, out: api, cfg: cfg, Deps: deps}
	b.register()
	return b
}

func (b *Bot) Start() {
	b.Log.Info("Bot", "Bot started", map[string]interface{}{"username": b.api.Me.Username})
	b.api.Start()
}

func (b *Bot) Stop() {
	b.api.Stop()
}

func (b *Bot) register() {
	b.api.Handle("/start", b.handleStart)
	b.api.Handle("/search", b.handleSearch)
	b.api.Handle("/status", b.handleStatus)
	b.api.Handle(tele.OnCallback, b.handleCallback)

	// Archive ingestion
	b.api.Handle(tele.OnChannelPost, b.handleChannelPost)
	b.api.Handle(tele.OnEditedChannelPost, b.handleChannelPost)

	// Free text in private chats gets a hint instead of silence.
	b.api.Handle(tele.OnText, b.handleText)
}

func (b *Bot) handleStart(c tele.Context) error {
	return c.Send(msgStart)
}

func (b *Bot) handleText(c tele.Context) error {
	if c.Chat() == nil || c.Chat().Type != tele.ChatPrivate {
		return nil
	}
	return c.Send(msgFreeText)
}

// /search <free text>
func (b *Bot) handleSearch(c tele.Context) error {
	query := strings.TrimSpace(c.Message().Payload)
	if query == "" {
		return c.Send(msgSearchUsage)
	}
	if !b.Search.Handle().Configured() {
		return c.Send(msgConfigError)
	}

	ctx, cancel := b.requestContext()
	defer cancel()

	status, err := b.out.Send(c.Chat(), fmt.Sprintf(msgSearching, query))
	if err != nil {
		return err
	}

	records, err := b.Search.Search(ctx, query)
	if err != nil {
		return b.edit(status, searchErrorText(err))
	}
	if len(records) == 0 {
		return b.edit(status, msgNoResults)
	}

	sess, err := b.Cache.StoreResults(ctx, session.IDFor(c.Chat().ID), query, records)
	if err != nil {
		b.Log.Error("Search", "Session write failed", map[string]interface{}{
			"chat_id": c.Chat().ID,
			"error":   err,
		})
		return b.edit(status, fmt.Sprintf(msgUnexpectedError, err))
	}

	b.Log.Info("Search", "Results rendered", map[string]interface{}{
		"chat_id":       c.Chat().ID,
		"query":         query,
		"results":       len(records),
		"result_set_id": sess.ResultSetID,
	})

	text, markup := renderResults(records)
	return b.edit(status, text, markup)
}

func (b *Bot) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	if err := c.Respond(); err != nil {
		b.Log.Debug("Selection", "Callback answer failed", map[string]interface{}{"error": err.Error()})
	}

	chat := c.Chat()
	if chat == nil {
		return nil
	}

	ctx, cancel := b.requestContext()
	defer cancel()

	ref, err := b.Selector.Resolve(ctx, session.IDFor(chat.ID), cb.Data)
	switch {
	case errors.Is(err, selection.ErrUnknownAction):
		return nil
	case errors.Is(err, selection.ErrInvalidSelection):
		return c.Send(msgInvalidSelection)
	case err != nil:
		return c.Send(fmt.Sprintf(msgUnexpectedError, err))
	}

	if err := c.Edit(msgSending); err != nil && !archive.IsNotModified(err) {
		b.Log.Warn("Selection", "Status edit failed", map[string]interface{}{"error": err.Error()})
	}

	if err := b.Selector.Deliver(ctx, ref, chat); err != nil {
		if selection.IsSourceGone(err) {
			b.prune(ref)
		}
		return c.Send(fmt.Sprintf(msgForwardFailed, err))
	}

	if err := c.Delete(); err != nil {
		b.Log.Warn("Selection", "Status delete failed", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

func (b *Bot) handleChannelPost(c tele.Context) error {
	m := c.Message()
	if m == nil || !b.Search.Handle().Matches(m.Chat) {
		return nil
	}
	if err := b.Indexer.Publish(index.FromTelegram(m)); err != nil {
		b.Log.Error("Ingest", "Publish failed", map[string]interface{}{
			"message_id": m.ID,
			"error":      err,
		})
	}
	return nil
}

func (b *Bot) handleStatus(c tele.Context) error {
	ctx, cancel := b.requestContext()
	defer cancel()

	st, err := b.Stats.Stats(ctx)
	if err != nil {
		return c.Send(fmt.Sprintf(msgUnexpectedError, err))
	}
	last := "never"
	if !st.LastIndexed.IsZero() {
		last = st.LastIndexed.Format("2006-01-02 15:04")
	}
	return c.Send(fmt.Sprintf(msgStatus, st.Total, st.WithPayload, last))
}

// Helpers

func (b *Bot) edit(msg *tele.Message, what interface{}, opts ...interface{}) error {
	if _, err := b.out.Edit(msg, what, opts...); err != nil && !archive.IsNotModified(err) {
		return err
	}
	return nil
}

func (b *Bot) prune(ref int) {
	if b.Pruner == nil {
		return
	}
	archiveChat, err := b.Search.ArchiveChat()
	if err == nil {
		err = b.Pruner.Retract(archiveChat.ID, ref)
	}
	if err != nil {
		b.Log.Warn("Selection", "Prune failed", map[string]interface{}{
			"reference_id": ref,
			"error":        err.Error(),
		})
	}
}

func (b *Bot) requestContext() (context.Context, context.CancelFunc) {
	timeout := b.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
