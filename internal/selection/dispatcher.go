package selection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/shelfbot/internal/logger"
	"github.com/eliseohh/shelfbot/internal/session"
)

// Forwarder is the subset of *tele.Bot used to relay archive posts.
type Forwarder interface {
	Forward(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
}

// ArchiveLocator yields the resolved archive chat. *archive.Gateway implements it.
type ArchiveLocator interface {
	ArchiveChat() (*tele.Chat, error)
}

type Dispatcher struct {
	cache   *session.Cache
	archive ArchiveLocator
	fwd     Forwarder
	log     logger.ILogger
}

func NewDispatcher(cache *session.Cache, archive ArchiveLocator, fwd Forwarder, log logger.ILogger) *Dispatcher {
	return &Dispatcher{cache: cache, archive: archive, fwd: fwd, log: log}
}

// Resolve maps callback data to the reference id it selects in the
// session's current result set. The index is checked against whatever set
// is current, so a button from an older search selects from the newer one.
func (d *Dispatcher) Resolve(ctx context.Context, sessionID, data string) (int, error) {
	tok, err := ParseToken(data)
	if err != nil {
		return 0, err
	}

	records, ok, err := d.cache.FetchResults(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if !ok || tok.Index < 0 || tok.Index >= len(records) {
		d.log.Info("Selection", "Rejected selection", map[string]interface{}{
			"session": sessionID,
			"index":   tok.Index,
			"cached":  len(records),
		})
		return 0, ErrInvalidSelection
	}
	return records[tok.Index].ReferenceID, nil
}

// Deliver forwards the archive post referenceID to the destination chat.
// Errors are returned as reported by Telegram; nothing is retried.
func (d *Dispatcher) Deliver(ctx context.Context, referenceID int, to tele.Recipient) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chat, err := d.archive.ArchiveChat()
	if err != nil {
		return err
	}

	src := &tele.StoredMessage{MessageID: strconv.Itoa(referenceID), ChatID: chat.ID}
	if _, err := d.fwd.Forward(to, src); err != nil {
		d.log.Warn("Selection", "Forward failed", map[string]interface{}{
			"reference_id": referenceID,
			"to":           to.Recipient(),
			"error":        err.Error(),
		})
		return err
	}

	d.log.Info("Selection", "Delivered archive post", map[string]interface{}{
		"reference_id": referenceID,
		"to":           to.Recipient(),
	})
	return nil
}

// IsSourceGone reports that the archive post no longer exists, usually
// because it was deleted from the channel after being indexed.
func IsSourceGone(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, tele.ErrNotFoundToForward) ||
		strings.Contains(err.Error(), "message to forward not found")
}
