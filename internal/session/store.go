package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

const (
	snapshotKey   = "sessions"
	flushInterval = 5 * time.Second
	flushTimeout  = 10 * time.Second
)

type blobs interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Store holds every in-progress session in memory and mirrors mutations to a
// durable snapshot. Persistence is asynchronous: the user-visible reply never
// waits on the backing write.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]Session

	blobs  blobs
	notify chan struct{}
}

func NewStore(b blobs) *Store {
	return &Store{
		sessions: make(map[int64]Session),
		blobs:    b,
		notify:   make(chan struct{}, 1),
	}
}

// Load replaces the in-memory map with the last durable snapshot. Called once
// at startup, before any events are handled.
func (s *Store) Load(ctx context.Context) error {
	if s.blobs == nil {
		return nil
	}
	data, ok, err := s.blobs.Load(ctx, snapshotKey)
	if err != nil {
		return fmt.Errorf("session.Store.Load: %w", err)
	}
	if !ok {
		return nil
	}

	var raw map[string]Session
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("session.Store.Load: decode snapshot: %w", err)
	}

	restored := make(map[int64]Session, len(raw))
	for key, ses := range raw {
		chatID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			slog.Warn("skipping session with bad chat id", "key", key)
			continue
		}
		ses.ChatID = chatID
		restored[chatID] = ses
	}

	s.mu.Lock()
	s.sessions = restored
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(chatID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ses, ok := s.sessions[chatID]
	return ses, ok
}

func (s *Store) Put(ses Session) {
	s.mu.Lock()
	s.sessions[ses.ChatID] = ses
	s.mu.Unlock()
	s.scheduleFlush()
}

func (s *Store) Delete(chatID int64) {
	s.mu.Lock()
	delete(s.sessions, chatID)
	s.mu.Unlock()
	s.scheduleFlush()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run drives the background flusher until ctx is cancelled, then writes one
// final snapshot so a clean shutdown loses nothing.
func (s *Store) Run(ctx context.Context) {
	if s.blobs == nil {
		return
	}
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background())
			return
		case <-s.notify:
			s.flush(ctx)
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *Store) scheduleFlush() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Store) flush(ctx context.Context) {
	data, err := s.Snapshot()
	if err != nil {
		slog.Error("session snapshot encode failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := s.blobs.Save(ctx, snapshotKey, data); err != nil {
		slog.Error("session snapshot write failed", "error", err)
	}
}

// Snapshot serializes the current sessions keyed by decimal chat id.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.Lock()
	out := make(map[string]Session, len(s.sessions))
	for chatID, ses := range s.sessions {
		out[strconv.FormatInt(chatID, 10)] = ses
	}
	s.mu.Unlock()

	return json.Marshal(out)
}
