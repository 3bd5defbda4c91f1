package stream

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/GoPolymarket/arena/internal/model"
	"github.com/gorilla/websocket"
)

// Watch dials a stream endpoint and calls fn for every notification until ctx is done or the
// connection drops.
func Watch(ctx context.Context, endpoint, agent string, fn func(*model.TradeRecorded)) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	if agent != "" {
		q := u.Query()
		q.Set("agent", agent)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var ev model.TradeRecorded
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		fn(&ev)
	}
}
