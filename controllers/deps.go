package controllers

import (
	"context"
	"time"

	"Aarogya/middleware"
	"Aarogya/pkg/chat"
	"Aarogya/pkg/store"
	tokenstore "Aarogya/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Sender runs one prompt through the chat pipeline. Implemented by *chat.Pipeline.
type Sender interface {
	Send(ctx context.Context, ownerID, conversationID, prompt string) (*chat.Result, error)
}

// Deps is everything the handlers share. Built once in main.
type Deps struct {
	Store          store.Store
	Pipeline       Sender
	Revocations    tokenstore.Store
	Duplicates     *middleware.DuplicateGuard
	RevealInterval time.Duration
	Log            zerolog.Logger
}

func fail(c *gin.Context, err error) {
	if c.Writer.Written() {
		return
	}
	middleware.Abort(c, err)
}
