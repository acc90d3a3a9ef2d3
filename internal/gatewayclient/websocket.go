package gatewayclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"vibedocs/internal/gateway/api"
	"vibedocs/internal/pipeline"
)

// Stream runs a generation or regeneration over the websocket endpoint.
// Canceling ctx closes the socket, which stops the run on the gateway.
func (c *Client) Stream(ctx context.Context, frame api.StreamFrame, fn Handler) error {
	url := c.baseURL + "/api/generate-documents-ws"
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return readAPIError(resp)
		}
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	for {
		var ev pipeline.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code != websocket.CloseNormalClosure && ce.Text != "" {
				return &APIError{Status: http.StatusBadRequest, Message: ce.Text}
			}
			return ErrStreamClosed
		}
		if err := fn(ev); err != nil {
			return err
		}
		if ev.Type == pipeline.EventComplete {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}
