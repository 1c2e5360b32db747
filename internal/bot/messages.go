package bot

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/shelfbot/internal/archive"
	"github.com/eliseohh/shelfbot/internal/selection"
)

const (
	msgStart = "📚 The library bot is ready!\n" +
		"Send /search followed by a book title or author to search the library channel."
	msgSearchUsage      = "Usage: /search <book title or author>"
	msgFreeText         = "Use /search <book title or author> to look something up."
	msgSearching        = "🔍 Searching for \"%s\" in the library..."
	msgNoResults        = "❌ No results in the library. Try different words."
	msgResultsHeader    = "✅ Found the following books:"
	msgDownloadButton   = "📥 download %d"
	msgSending          = "✅ Sending the book..."
	msgInvalidSelection = "⚠️ Invalid result, please search again."
	msgForwardFailed    = "❌ Could not forward the message. Make sure the bot is an admin in the channel.\nError: %v"
	msgConfigError      = "❌ Configuration error: the library channel (ARCHIVE_CHANNEL) is not set."
	msgArchiveNotFound  = "❌ Error: the library channel was not found. Make sure the bot is an admin there and ARCHIVE_CHANNEL is correct."
	msgRemoteError      = "❌ Telegram error: %v"
	msgUnexpectedError  = "⚠️ Unexpected error while searching: %v"
	msgStatus           = "📊 Indexed posts: %d (with files: %d)\nLast indexed: %s"
)

// searchErrorText renders a classified search failure for the user.
func searchErrorText(err error) string {
	var ae *archive.Error
	if !errors.As(err, &ae) {
		return fmt.Sprintf(msgUnexpectedError, err)
	}
	switch ae.Kind {
	case archive.KindConfiguration:
		return msgConfigError
	case archive.KindArchiveUnreachable:
		return msgArchiveNotFound
	case archive.KindRemote:
		return fmt.Sprintf(msgRemoteError, ae.Err)
	default:
		return fmt.Sprintf(msgUnexpectedError, ae.Err)
	}
}

// renderResults builds the numbered list and one download button per
// record. Button i carries the token for index i.
func renderResults(records []archive.Record) (string, *tele.ReplyMarkup) {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, msgResultsHeader)

	markup := &tele.ReplyMarkup{}
	rows := make([][]tele.InlineButton, 0, len(records))
	for i, r := range records {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, r.DisplayTitle))
		rows = append(rows, []tele.InlineButton{{
			Text: fmt.Sprintf(msgDownloadButton, i+1),
			Data: selection.DownloadToken(i).String(),
		}})
	}
	markup.InlineKeyboard = rows

	return strings.Join(lines, "\n"), markup
}
