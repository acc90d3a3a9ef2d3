package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"vibedocs/internal/gateway/api"
	llmclient "vibedocs/internal/llm/client"
	"vibedocs/internal/pipeline"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
	// maxCloseReason keeps close frames within the 125 byte control limit.
	maxCloseReason = 100
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleStreamWS runs a generation over a websocket. The first client frame
// is the request; every server frame is one event. Closing the socket
// cancels the run.
func (h *Handler) HandleStreamWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		h.logger.Printf("[ws] set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	var frame api.StreamFrame
	if err := conn.ReadJSON(&frame); err != nil {
		closeWS(conn, websocket.CloseUnsupportedData, "invalid json frame")
		return
	}
	events, err := h.startFrame(ctx, frame)
	if err != nil {
		closeWS(conn, websocket.ClosePolicyViolation, llmclient.Classify(err).Message)
		return
	}

	// The reader only watches for the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.logger.Printf("[ws] client went away")
			return
		case ev, ok := <-events:
			if !ok {
				closeWS(conn, websocket.CloseNormalClosure, "")
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Printf("[ws] write failed: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) startFrame(ctx context.Context, frame api.StreamFrame) (<-chan pipeline.Event, error) {
	if frame.Regenerate() {
		req, err := regenerateRequest(frame.RegenerateBody)
		if err != nil {
			return nil, err
		}
		return h.orch.Regenerate(ctx, req)
	}
	req, err := generateRequest(frame.GenerateBody)
	if err != nil {
		return nil, err
	}
	return h.orch.Generate(ctx, req)
}

func closeWS(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, llmclient.Truncate(reason, maxCloseReason))
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
