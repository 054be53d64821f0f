package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fariz/warden/pkg/toolexec"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "audit.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_RequiresPath(t *testing.T) {
	_, err := NewStore("", zerolog.Nop())
	require.Error(t, err)
}

func TestRecordAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Record(ctx, toolexec.AuditEvent{
		CorrelationID: "corr-1",
		Actor:         "alice",
		Action:        "security_check:read_file",
		Status:        "denied",
		Reason:        "path_traversal",
		Path:          "../../etc/passwd",
	})
	s.Record(ctx, toolexec.AuditEvent{
		Action: "execute:write_file",
		Status: "success",
	})

	events, err := s.Query(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, "execute:write_file", events[0].Action)
	assert.Equal(t, "security_check:read_file", events[1].Action)
	assert.Equal(t, "corr-1", events[1].CorrelationID)
	assert.Equal(t, "path_traversal", events[1].Reason)
	assert.WithinDuration(t, time.Now().UTC(), events[0].Timestamp, time.Minute)
}

func TestQuery_LimitApplied(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Record(ctx, toolexec.AuditEvent{Action: "execute:read_file", Status: "success"})
	}

	events, err := s.Query(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Insert one old row directly; Record always stamps now.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (timestamp, action, status) VALUES (?, ?, ?)`,
		time.Now().UTC().AddDate(0, 0, -60), "execute:read_file", "success")
	require.NoError(t, err)

	s.Record(ctx, toolexec.AuditEvent{Action: "execute:write_file", Status: "success"})

	removed, err := s.Prune(ctx, time.Now().UTC().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	events, err := s.Query(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "execute:write_file", events[0].Action)
}

func TestStoreIsAuditSink(t *testing.T) {
	var _ toolexec.AuditSink = newTestStore(t)
}
