package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Migration_CreatesTablesAndVersion(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var version int
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestSQLiteStore_Migration_IsIdempotentOnReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sub", "audit.db")

	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.AddEvent(&TaskEvent{TaskID: "t1", EventType: "task.admitted"}))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })

	events, err := s2.GetEvents("t1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSQLiteStore_AddAndGetEvents(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	now := time.Now()
	require.NoError(t, s.AddEvent(&TaskEvent{TaskID: "t1", Task: "countdown", EventType: "task.admitted", CreatedAt: now}))
	require.NoError(t, s.AddEvent(&TaskEvent{TaskID: "t1", Task: "countdown", EventType: "task.dispatched", CreatedAt: now}))
	require.NoError(t, s.AddEvent(&TaskEvent{TaskID: "t1", Task: "countdown", EventType: "task.completed", Name: "success", CreatedAt: now.Add(time.Second)}))
	require.NoError(t, s.AddEvent(&TaskEvent{TaskID: "t2", EventType: "task.admitted"}))

	events, err := s.GetEvents("t1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "task.admitted", events[0].EventType)
	assert.Equal(t, "task.completed", events[2].EventType)
	assert.Equal(t, "success", events[2].Name)
	assert.Equal(t, "countdown", events[2].Task)
	assert.WithinDuration(t, now.Add(time.Second), events[2].CreatedAt, time.Millisecond)

	limited, err := s.GetEvents("t1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStore_AddEvent_SetsIDAndDefaultTime(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	e := &TaskEvent{TaskID: "t1", EventType: "task.admitted"}
	require.NoError(t, s.AddEvent(e))

	assert.NotZero(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestSQLiteStore_GetEvents_WhenUnknownTask_ReturnsEmpty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	events, err := s.GetEvents("nope", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSQLiteStore_ListRecent_FiltersAndOrders(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	require.NoError(t, s.AddEvent(&TaskEvent{TaskID: "a", Task: "countdown", EventType: "task.dispatched", CreatedAt: base}))
	require.NoError(t, s.AddEvent(&TaskEvent{TaskID: "b", Task: "echo", EventType: "task.dispatched", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.AddEvent(&TaskEvent{TaskID: "a", Task: "countdown", EventType: "task.completed", Name: "success", CreatedAt: base.Add(2 * time.Minute)}))

	all, err := s.ListRecent(EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "task.completed", all[0].EventType, "newest first")

	byTask, err := s.ListRecent(EventFilter{Task: "echo"})
	require.NoError(t, err)
	require.Len(t, byTask, 1)
	assert.Equal(t, "b", byTask[0].TaskID)

	byType, err := s.ListRecent(EventFilter{EventType: "task.dispatched", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "b", byType[0].TaskID)

	since, err := s.ListRecent(EventFilter{Since: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "task.completed", since[0].EventType)
}

func TestSQLiteStore_Cleanup_RemovesOldEvents(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.AddEvent(&TaskEvent{TaskID: "old", EventType: "task.admitted", CreatedAt: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, s.AddEvent(&TaskEvent{TaskID: "new", EventType: "task.admitted"}))

	n, err := s.Cleanup(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	old, err := s.GetEvents("old", 0)
	require.NoError(t, err)
	assert.Empty(t, old)

	fresh, err := s.GetEvents("new", 0)
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
}

func TestSQLiteStore_StartCleanupLoop_StopsOnDone(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.AddEvent(&TaskEvent{TaskID: "old", EventType: "task.admitted", CreatedAt: time.Now().Add(-time.Hour)}))

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		s.StartCleanupLoop(done, time.Minute, 10*time.Millisecond)
		close(exited)
	}()

	assert.Eventually(t, func() bool {
		events, err := s.GetEvents("old", 0)
		return err == nil && len(events) == 0
	}, 5*time.Second, 10*time.Millisecond)

	close(done)
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}
