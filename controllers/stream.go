package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"Aarogya/middleware"
	"Aarogya/pkg/apperr"
	"Aarogya/pkg/reveal"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SendPromptStream runs the pipeline, then replays the stored answer as
// server-sent events:
//
//	event: message  {user message, conversation id}
//	event: delta    {index, delta}   one per token
//	event: done     {assistant message, conversation summary}
//
// A client that disconnects mid-reveal only stops the replay; the exchange is
// already stored.
func SendPromptStream(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		prompt, ok := bindPrompt(c, d)
		if !ok {
			return
		}
		uid := middleware.UserID(c)
		res, err := d.Pipeline.Send(c.Request.Context(), uid, c.Param("conversation_id"), prompt)
		if err != nil {
			d.Duplicates.Forget(uid)
			fail(c, err)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		c.SSEvent("message", gin.H{"conversation_id": res.Conversation.ID, "message": res.User})
		c.Writer.Flush()
		for f := range reveal.Stream(c.Request.Context(), res.Assistant.Content, d.RevealInterval) {
			c.SSEvent("delta", gin.H{"index": f.Index, "delta": f.Delta})
			c.Writer.Flush()
		}
		if c.Request.Context().Err() != nil {
			return
		}
		c.SSEvent("done", gin.H{"message": res.Assistant, "conversation": res.Conversation.Summary()})
		c.Writer.Flush()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS handled at HTTP level; allow WS here
		return true
	},
}

type wsStartPayload struct {
	Type           string `json:"type"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// ChatWS streams the reveal over a WebSocket. Authentication happens in the
// session guard before the upgrade (?token=).
// Client protocol (JSON messages):
//
//	-> {type: "start", message: string, conversation_id?: string}
//	<- {type: "user_saved", conversation_id: string, message: {...}}
//	<- {type: "delta", index: number, data: string}
//	<- {type: "done", ok: true, message: {...}}
//	<- {type: "error", error: string}
func ChatWS(d *Deps, slots *middleware.UserSlots) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := middleware.UserID(c)
		log := d.Log.With().Str("user", uid).Logger()

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("upgrade failed")
			return
		}
		defer conn.Close()

		conn.SetReadLimit(1 << 20)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		})

		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("read start message")
			return
		}
		var start wsStartPayload
		if err := json.Unmarshal(raw, &start); err != nil || strings.ToLower(start.Type) != "start" || strings.TrimSpace(start.Message) == "" {
			_ = conn.WriteJSON(gin.H{"type": "error", "error": "invalid start payload"})
			return
		}

		// the client cancels the reveal by closing the connection
		_ = conn.SetReadDeadline(time.Time{})
		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		if slots != nil {
			release, err := slots.Acquire(ctx, uid)
			if err != nil {
				_ = conn.WriteJSON(gin.H{"type": "error", "error": "too many concurrent requests"})
				return
			}
			defer release()
		}

		if !d.Duplicates.Allow(uid, start.Message) {
			_ = conn.WriteJSON(gin.H{"type": "error", "error": "duplicate message, please wait"})
			return
		}

		convID := start.ConversationID
		if convID == "" {
			conv, err := d.Store.Create(ctx, uid, "", nil)
			if err != nil {
				_ = conn.WriteJSON(gin.H{"type": "error", "error": apperr.Message(err)})
				return
			}
			convID = conv.ID
		}

		res, err := d.Pipeline.Send(ctx, uid, convID, start.Message)
		if err != nil {
			d.Duplicates.Forget(uid)
			_ = conn.WriteJSON(gin.H{"type": "error", "error": apperr.Message(err)})
			return
		}
		if err := conn.WriteJSON(gin.H{"type": "user_saved", "conversation_id": res.Conversation.ID, "message": res.User}); err != nil {
			return
		}
		for f := range reveal.Stream(ctx, res.Assistant.Content, d.RevealInterval) {
			if err := conn.WriteJSON(gin.H{"type": "delta", "index": f.Index, "data": f.Delta}); err != nil {
				log.Debug().Err(err).Msg("client went away during reveal")
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		_ = conn.WriteJSON(gin.H{"type": "done", "ok": true, "message": res.Assistant, "conversation": res.Conversation.Summary()})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}
