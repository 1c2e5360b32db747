package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

const archiveChat int64 = -1001000

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())
	return NewStore(db)
}

func seed(t *testing.T, s *Store, msgs ...Message) {
	t.Helper()
	for _, m := range msgs {
		require.NoError(t, s.Upsert(context.Background(), m))
	}
}

func TestStoreSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seed(t, s,
		Message{ChatID: archiveChat, MessageID: 10, Kind: KindDocument, Caption: "Learning Python", PostedAt: base},
		Message{ChatID: archiveChat, MessageID: 11, Kind: KindText, Text: "python news", PostedAt: base.Add(time.Hour)},
		Message{ChatID: archiveChat, MessageID: 12, Kind: KindDocument, FileName: "fluent_python.pdf", PostedAt: base.Add(2 * time.Hour)},
		Message{ChatID: archiveChat, MessageID: 13, Kind: KindVideo, Caption: "Go in Action", PostedAt: base.Add(3 * time.Hour)},
		Message{ChatID: 777, MessageID: 1, Kind: KindDocument, Caption: "Python elsewhere", PostedAt: base},
	)

	t.Run("Matches caption and file name, newest first", func(t *testing.T) {
		got, err := s.Search(ctx, archiveChat, "PYTHON", 5)
		require.NoError(t, err)
		require.Len(t, got, 2, "text-only posts are not forwardable")
		assert.Equal(t, 12, got[0].MessageID)
		assert.Equal(t, 10, got[1].MessageID)
		assert.Equal(t, KindDocument, got[0].Kind)
		assert.Equal(t, base.Add(2*time.Hour).Unix(), got[0].PostedAt.Unix())
	})

	t.Run("All terms must match", func(t *testing.T) {
		got, err := s.Search(ctx, archiveChat, "learning python", 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 10, got[0].MessageID)
	})

	t.Run("Limit caps rows", func(t *testing.T) {
		got, err := s.Search(ctx, archiveChat, "python", 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 12, got[0].MessageID)
	})

	t.Run("Wildcards are literal", func(t *testing.T) {
		got, err := s.Search(ctx, archiveChat, "%", 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Blank query", func(t *testing.T) {
		got, err := s.Search(ctx, archiveChat, "   ", 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestStoreSearchFoldsUnicode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	seed(t, s,
		Message{ChatID: archiveChat, MessageID: 1, Kind: KindDocument, Caption: "Война и мир", PostedAt: now},
		Message{ChatID: archiveChat, MessageID: 2, Kind: KindDocument, Caption: "Élan vital", PostedAt: now},
		Message{ChatID: archiveChat, MessageID: 3, Kind: KindPhoto, FileName: "ΟΔΥΣΣΕΙΑ.jpg", PostedAt: now},
	)

	cases := map[string]int{
		"война":    1,
		"МИР":      1,
		"élan":     2,
		"ÉLAN":     2,
		"οδυσσεια": 3,
	}
	for query, want := range cases {
		got, err := s.Search(ctx, archiveChat, query, 5)
		require.NoError(t, err, query)
		require.Len(t, got, 1, query)
		assert.Equal(t, want, got[0].MessageID, query)
	}
}

func TestStoreSearchLimitCountsOnlyPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seed(t, s, Message{ChatID: archiveChat, MessageID: 1, Kind: KindDocument, Caption: "Rust Book", PostedAt: base})
	for i := 2; i <= 6; i++ {
		seed(t, s, Message{
			ChatID: archiveChat, MessageID: i, Kind: KindText,
			Text: "Rust meetup tonight", PostedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	got, err := s.Search(ctx, archiveChat, "rust", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].MessageID)
}

func TestStoreUpsertReplacesEdits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed(t, s, Message{ChatID: archiveChat, MessageID: 5, Kind: KindDocument, Caption: "Draft title", PostedAt: time.Now()})
	seed(t, s, Message{ChatID: archiveChat, MessageID: 5, Kind: KindDocument, Caption: "Final title", PostedAt: time.Now()})

	got, err := s.Search(ctx, archiveChat, "title", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Final title", got[0].Caption)

	require.NoError(t, s.Delete(ctx, archiveChat, 5))
	got, err = s.Search(ctx, archiveChat, "title", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoreStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Total)
	assert.True(t, st.LastIndexed.IsZero())

	seed(t, s,
		Message{ChatID: archiveChat, MessageID: 1, Kind: KindPhoto, PostedAt: time.Now()},
		Message{ChatID: archiveChat, MessageID: 2, Kind: KindText, Text: "hello", PostedAt: time.Now()},
	)
	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.WithPayload)
	assert.False(t, st.LastIndexed.IsZero())
	assert.NoError(t, s.Ping(ctx))
}

func TestFromTelegram(t *testing.T) {
	chat := &tele.Chat{ID: archiveChat}

	doc := FromTelegram(&tele.Message{
		ID: 7, Chat: chat, Caption: "Book", Unixtime: 1700000000,
		Document: &tele.Document{FileName: "book.pdf"},
	})
	assert.Equal(t, KindDocument, doc.Kind)
	assert.Equal(t, "book.pdf", doc.FileName)
	assert.Equal(t, archiveChat, doc.ChatID)
	assert.True(t, doc.HasPayload())
	assert.Equal(t, int64(1700000000), doc.PostedAt.Unix())

	photo := FromTelegram(&tele.Message{ID: 8, Chat: chat, Photo: &tele.Photo{}})
	assert.Equal(t, KindPhoto, photo.Kind)
	assert.True(t, photo.HasPayload())

	audio := FromTelegram(&tele.Message{ID: 9, Chat: chat, Audio: &tele.Audio{FileName: "a.mp3"}})
	assert.Equal(t, KindAudio, audio.Kind)
	assert.False(t, audio.HasPayload())

	text := FromTelegram(&tele.Message{ID: 10, Chat: chat, Text: "announcement"})
	assert.Equal(t, KindText, text.Kind)
	assert.False(t, text.HasPayload())
}
