package index

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliseohh/shelfbot/internal/logger"
)

func TestIngesterIndexesPublishedPosts(t *testing.T) {
	s := newTestStore(t)
	log := logger.NewNop()
	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, NewWatermillLogger(log))
	t.Cleanup(func() { pubSub.Close() })

	pub := NewPublisher(pubSub)
	ing := NewIngester(s, pubSub, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done, err := ing.Start(ctx)
	require.NoError(t, err)

	// A malformed event must not stall the consumer.
	require.NoError(t, pubSub.Publish(TopicArchiveMessages, message.NewMessage(watermill.NewUUID(), []byte("{not json"))))
	require.NoError(t, pub.Publish(Message{
		ChatID: archiveChat, MessageID: 42, Kind: KindDocument,
		Caption: "Clean Code", PostedAt: time.Now(),
	}))

	assert.Eventually(t, func() bool {
		got, err := s.Search(context.Background(), archiveChat, "clean", 5)
		return err == nil && len(got) == 1 && got[0].MessageID == 42
	}, 2*time.Second, 20*time.Millisecond)

	// Retraction goes through the same single writer.
	require.NoError(t, pub.Retract(archiveChat, 42))
	assert.Eventually(t, func() bool {
		got, err := s.Search(context.Background(), archiveChat, "clean", 5)
		return err == nil && len(got) == 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ingester did not stop after cancel")
	}
}

func TestWatermillLoggerWith(t *testing.T) {
	l := NewWatermillLogger(logger.NewNop()).With(watermill.LogFields{"topic": TopicArchiveMessages})
	wl, ok := l.(*WatermillLogger)
	require.True(t, ok)
	assert.Equal(t, TopicArchiveMessages, wl.merge(nil)["topic"])
	assert.Equal(t, "x", wl.merge(watermill.LogFields{"topic": "x"})["topic"])
}
