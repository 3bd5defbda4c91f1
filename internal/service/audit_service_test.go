package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GoPolymarket/arena/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditBufferWrapsNewestFirst(t *testing.T) {
	b := newAuditBuffer(3)
	base := time.Unix(1_700_000_000, 0)
	for i, caller := range []string{"a", "b", "a", "b", "a"} {
		b.Add(&model.AuditLog{ID: string(rune('1' + i)), Caller: caller, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	all := b.List("", 0, nil, nil)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"5", "4", "3"}, ids(all))

	assert.Equal(t, []string{"5", "3"}, ids(b.List("a", 10, nil, nil)))
	assert.Equal(t, []string{"5"}, ids(b.List("a", 1, nil, nil)))

	from := base.Add(3 * time.Minute)
	assert.Equal(t, []string{"5", "4"}, ids(b.List("", 10, &from, nil)))
	to := base.Add(3 * time.Minute)
	assert.Equal(t, []string{"4", "3"}, ids(b.List("", 10, nil, &to)))
}

func TestAuditServiceWritesFile(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewAuditService(dir, nil)
	require.NoError(t, err)

	svc.Log(&model.AuditLog{ID: "req-1", Caller: "alice", Path: "/v1/agents", CreatedAt: time.Now()})
	svc.Log(&model.AuditLog{ID: "req-2", Caller: "bob", Path: "/v1/agents", CreatedAt: time.Now()})

	records, err := svc.List(context.Background(), "bob", 10, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-2"}, ids(records))

	svc.Close()

	files, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"req-1"`)
}

func ids(records []*model.AuditLog) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
