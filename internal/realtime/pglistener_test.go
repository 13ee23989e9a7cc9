package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timinkAPI/internal/apperr"
	"timinkAPI/internal/types/diary"
)

type fakeListenConn struct {
	notes  chan *pgconn.Notification
	execs  []string
	closed bool
}

func (f *fakeListenConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (f *fakeListenConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case n, ok := <-f.notes:
		if !ok {
			return nil, errors.New("connection reset")
		}
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeListenConn) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestPGListener_PublishesAndReconnects(t *testing.T) {
	hub := NewHub()
	diaryID := uuid.New()

	var mu sync.Mutex
	var received []uuid.UUID
	hub.Open(Filter{DiaryID: diaryID}, Handlers{OnInsert: func(c Change) {
		mu.Lock()
		received = append(received, c.Entry.ID)
		mu.Unlock()
	}})

	first := &fakeListenConn{notes: make(chan *pgconn.Notification, 4)}
	second := &fakeListenConn{notes: make(chan *pgconn.Notification, 4)}

	id1, id2 := uuid.New(), uuid.New()
	payload := func(id uuid.UUID) string {
		return `{"op":"insert","diary_id":"` + diaryID.String() + `","entry":{"id":"` + id.String() + `","posted_date":"2026-03-10"}}`
	}

	first.notes <- &pgconn.Notification{Channel: PGChannel, Payload: payload(id1)}
	first.notes <- &pgconn.Notification{Channel: PGChannel, Payload: "garbage"}
	first.notes <- &pgconn.Notification{Channel: "other", Payload: payload(uuid.New())}
	close(first.notes)
	second.notes <- &pgconn.Notification{Channel: PGChannel, Payload: payload(id2)}

	var dials int
	var dialMu sync.Mutex
	conns := []*fakeListenConn{first, second}
	l := &PGListener{
		hub: hub,
		dial: func(context.Context) (listenConn, error) {
			dialMu.Lock()
			defer dialMu.Unlock()
			dials++
			if dials > len(conns) {
				return nil, errors.New("refused")
			}
			return conns[dials-1], nil
		},
		minBackoff: time.Millisecond,
		maxBackoff: 5 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, []uuid.UUID{id1, id2}, received)
	assert.Equal(t, []string{"LISTEN " + PGChannel}, first.execs)
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

type stubEntries map[uuid.UUID]diary.Entry

func (s stubEntries) GetEntry(_ context.Context, id uuid.UUID) (*diary.Entry, error) {
	e, ok := s[id]
	if !ok {
		return nil, apperr.NotFound("diary entry")
	}
	return &e, nil
}

func TestPGListener_LoadsContentForKeyOnlyPayloads(t *testing.T) {
	hub := NewHub()
	diaryID := uuid.New()
	long := strings.Repeat("a", 10*1024)

	stored, gone, removed := uuid.New(), uuid.New(), uuid.New()
	entries := stubEntries{stored: {ID: stored, DiaryID: diaryID, Content: long, AuthorUsername: "mina"}}

	var mu sync.Mutex
	var got []Change
	record := func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	}
	hub.Open(Filter{DiaryID: diaryID}, Handlers{OnInsert: record, OnDelete: record})

	payload := func(op Op, id uuid.UUID) string {
		return `{"op":"` + string(op) + `","diary_id":"` + diaryID.String() + `","entry":{"id":"` + id.String() + `","posted_date":"2026-03-10"}}`
	}
	conn := &fakeListenConn{notes: make(chan *pgconn.Notification, 3)}
	conn.notes <- &pgconn.Notification{Channel: PGChannel, Payload: payload(OpInsert, gone)}
	conn.notes <- &pgconn.Notification{Channel: PGChannel, Payload: payload(OpInsert, stored)}
	conn.notes <- &pgconn.Notification{Channel: PGChannel, Payload: payload(OpDelete, removed)}

	l := &PGListener{
		hub:        hub,
		entries:    entries,
		dial:       func(context.Context) (listenConn, error) { return conn, nil },
		minBackoff: time.Millisecond,
		maxBackoff: time.Millisecond,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, stored, got[0].Entry.ID)
	assert.Equal(t, long, got[0].Entry.Content)
	assert.Equal(t, "mina", got[0].Entry.AuthorUsername)
	assert.Equal(t, OpDelete, got[1].Op)
	assert.Equal(t, removed, got[1].Entry.ID)
}
