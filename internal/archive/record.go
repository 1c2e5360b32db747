package archive

import (
	"strings"

	"github.com/eliseohh/shelfbot/internal/index"
)

const (
	MaxTitleRunes = 100
	UntitledTitle = "untitled message"
)

// Record is what a user gets to pick from: a reference into the archive and
// a one-line title.
type Record struct {
	ReferenceID  int    `json:"reference_id"`
	DisplayTitle string `json:"display_title"`
}

// Title derives the display title: caption, else text, else a placeholder;
// cut to MaxTitleRunes with newlines flattened to spaces.
func Title(caption, text string) string {
	title := caption
	if title == "" {
		title = text
	}
	if title == "" {
		title = UntitledTitle
	}

	if r := []rune(title); len(r) > MaxTitleRunes {
		title = string(r[:MaxTitleRunes])
	}
	return strings.ReplaceAll(title, "\n", " ")
}

// project keeps the posts that carry a payload, in order.
func project(msgs []index.Message) []Record {
	out := make([]Record, 0, len(msgs))
	for _, m := range msgs {
		if !m.HasPayload() {
			continue
		}
		out = append(out, Record{
			ReferenceID:  m.MessageID,
			DisplayTitle: Title(m.Caption, m.Text),
		})
	}
	return out
}
