package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"
)

type Kind string

const (
	KindDocument Kind = "document"
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindText     Kind = "text"
)

// Message is the searchable projection of one archive post. A Retracted
// message tells the ingester to drop the post from the index.
type Message struct {
	ChatID    int64     `json:"chat_id"`
	MessageID int       `json:"message_id"`
	Kind      Kind      `json:"kind"`
	Caption   string    `json:"caption,omitempty"`
	Text      string    `json:"text,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	PostedAt  time.Time `json:"posted_at"`
	Retracted bool      `json:"retracted,omitempty"`
}

// HasPayload reports whether the post carries something worth forwarding.
func (m Message) HasPayload() bool {
	switch m.Kind {
	case KindDocument, KindPhoto, KindVideo:
		return true
	}
	return false
}

// FromTelegram extracts the indexed fields from a channel post.
func FromTelegram(m *tele.Message) Message {
	msg := Message{
		MessageID: m.ID,
		Caption:   m.Caption,
		Text:      m.Text,
		PostedAt:  m.Time(),
		Kind:      KindText,
	}
	if m.Chat != nil {
		msg.ChatID = m.Chat.ID
	}

	switch {
	case m.Document != nil:
		msg.Kind = KindDocument
		msg.FileName = m.Document.FileName
	case m.Photo != nil:
		msg.Kind = KindPhoto
	case m.Video != nil:
		msg.Kind = KindVideo
		msg.FileName = m.Video.FileName
	case m.Audio != nil:
		msg.Kind = KindAudio
		msg.FileName = m.Audio.FileName
	}
	return msg
}

type Stats struct {
	Total       int       `json:"total"`
	WithPayload int       `json:"with_payload"`
	LastIndexed time.Time `json:"last_indexed"`
}

type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Upsert records a post, replacing any earlier version (edits).
func (s *Store) Upsert(ctx context.Context, m Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archive_messages (chat_id, message_id, kind, caption, body, file_name, posted_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id, message_id) DO UPDATE SET
			kind = excluded.kind,
			caption = excluded.caption,
			body = excluded.body,
			file_name = excluded.file_name,
			indexed_at = excluded.indexed_at`,
		m.ChatID, m.MessageID, string(m.Kind), m.Caption, m.Text, m.FileName,
		m.PostedAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert %d/%d: %w", m.ChatID, m.MessageID, err)
	}
	return nil
}

// Delete drops a post that is no longer in the channel.
func (s *Store) Delete(ctx context.Context, chatID int64, messageID int) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM archive_messages WHERE chat_id = ? AND message_id = ?", chatID, messageID)
	return err
}

// Search returns up to limit forwardable posts (document, photo, video) of
// chatID matching every term of query, newest first. Matching is a
// case-insensitive substring test over caption, text and file name; case is
// folded with Unicode rules on both sides.
func (s *Store) Search(ctx context.Context, chatID int64, query string, limit int) ([]Message, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`SELECT chat_id, message_id, kind, caption, body, file_name, posted_at
		FROM archive_messages
		WHERE chat_id = ? AND kind IN ('document', 'photo', 'video')`)
	args := []interface{}{chatID}
	for _, term := range terms {
		sb.WriteString(` AND (fold(caption) LIKE ? ESCAPE '\' OR fold(body) LIKE ? ESCAPE '\' OR fold(file_name) LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		args = append(args, pattern, pattern, pattern)
	}
	sb.WriteString(" ORDER BY posted_at DESC, message_id DESC LIMIT ?")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m        Message
			kind     string
			postedAt int64
		)
		if err := rows.Scan(&m.ChatID, &m.MessageID, &kind, &m.Caption, &m.Text, &m.FileName, &postedAt); err != nil {
			return nil, err
		}
		m.Kind = Kind(kind)
		m.PostedAt = time.Unix(postedAt, 0)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st   Stats
		last int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN kind IN ('document', 'photo', 'video') THEN 1 ELSE 0 END), 0),
			COALESCE(MAX(indexed_at), 0)
		FROM archive_messages`).Scan(&st.Total, &st.WithPayload, &last)
	if err != nil {
		return Stats{}, err
	}
	if last > 0 {
		st.LastIndexed = time.Unix(last, 0)
	}
	return st, nil
}

// Ping is used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
