package session

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/eliseohh/shelfbot/internal/archive"
)

// Session is one conversation's search state. It holds at most one result
// set; a new search replaces it.
type Session struct {
	ID string `json:"id"`

	Results []archive.Record `json:"results,omitempty"`
	// Epoch counts stored result sets; zero means no search has been stored.
	Epoch       uint64    `json:"epoch"`
	ResultSetID string    `json:"result_set_id,omitempty"`
	Query       string    `json:"query,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func New(id string) *Session {
	return &Session{ID: id}
}

// IDFor keys sessions by the Telegram chat they belong to.
func IDFor(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// LastResults returns a copy of the current result set and whether one exists.
func (s *Session) LastResults() ([]archive.Record, bool) {
	if s.Epoch == 0 {
		return nil, false
	}
	out := make([]archive.Record, len(s.Results))
	copy(out, s.Results)
	return out, true
}

// SetLastResults overwrites the result set unconditionally.
func (s *Session) SetLastResults(query string, records []archive.Record) {
	s.Results = make([]archive.Record, len(records))
	copy(s.Results, records)
	s.Query = query
	s.Epoch++
	s.ResultSetID = uuid.NewString()
	s.UpdatedAt = time.Now()
}

func (s *Session) Clone() *Session {
	c := *s
	if s.Results != nil {
		c.Results = make([]archive.Record, len(s.Results))
		copy(c.Results, s.Results)
	}
	return &c
}

// Store persists sessions. Load never returns a nil session without an
// error: unknown ids yield a fresh one.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
}

// Cache is the result-set view over a Store used by the search and
// selection paths.
type Cache struct {
	store Store
}

func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

func (c *Cache) StoreResults(ctx context.Context, id, query string, records []archive.Record) (*Session, error) {
	s, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.SetLastResults(query, records)
	if err := c.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// FetchResults returns ok=false when no result set was ever stored for id.
func (c *Cache) FetchResults(ctx context.Context, id string) ([]archive.Record, bool, error) {
	s, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	recs, ok := s.LastResults()
	return recs, ok, nil
}
