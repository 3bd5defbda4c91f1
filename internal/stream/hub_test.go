package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	agentA = address.MustParse("11111111111111111111111111111112")
	agentB = address.MustParse("SysvarRent111111111111111111111111111111111")
)

func newHubServer(t *testing.T, hub *Hub) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var filter *address.Address
		if raw := r.URL.Query().Get("agent"); raw != "" {
			a, err := address.Parse(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			filter = &a
		}
		_ = hub.Serve(w, r, filter)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHub_DeliversFilteredTrades(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	endpoint := newHubServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *model.TradeRecorded, 4)
	go func() {
		_ = Watch(ctx, endpoint, agentA.String(), func(ev *model.TradeRecorded) { got <- ev })
	}()
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(ctx, &model.TradeRecorded{Agent: agentB, Pnl: 1, TradeNumber: 1}))
	require.NoError(t, hub.Publish(ctx, &model.TradeRecorded{Agent: agentA, Pnl: 500, SkillUsed: "momentum", TradeNumber: 7}))

	select {
	case ev := <-got:
		assert.Equal(t, agentA, ev.Agent)
		assert.Equal(t, int64(500), ev.Pnl)
		assert.Equal(t, uint64(7), ev.TradeNumber)
	case <-ctx.Done():
		t.Fatal("no notification received")
	}
	assert.Empty(t, got)
}

func TestHub_PublishRawRejectsGarbage(t *testing.T) {
	hub := NewHub()
	assert.Error(t, hub.PublishRaw([]byte("not-json")))
	assert.NoError(t, hub.PublishRaw([]byte(`{"agent":"11111111111111111111111111111112","pnl":1}`)))
}

func TestHub_CloseDisconnects(t *testing.T) {
	hub := NewHub()
	endpoint := newHubServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, endpoint, "", func(*model.TradeRecorded) {}) }()
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-ctx.Done():
		t.Fatal("watch did not return after hub close")
	}
	assert.Zero(t, hub.Count())
}
