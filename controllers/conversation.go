package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"Aarogya/middleware"
	"Aarogya/models"
	"Aarogya/pkg/apperr"
	"Aarogya/pkg/store"

	"github.com/gin-gonic/gin"
)

// maxPromptRunes bounds a single prompt.
const maxPromptRunes = 8000

func CreateConversation(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Name string `json:"name"`
		}
		// the name is optional, so an empty body is fine
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			fail(c, apperr.New(apperr.KindValidation, "invalid request body"))
			return
		}
		if utf8.RuneCountInString(strings.TrimSpace(body.Name)) > 200 {
			fail(c, apperr.New(apperr.KindValidation, "name must be at most 200 characters"))
			return
		}

		conv, err := d.Store.Create(c.Request.Context(), middleware.UserID(c), body.Name, nil)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "conversation": conv})
	}
}

func ListConversations(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		convs, err := d.Store.ListForOwner(c.Request.Context(), middleware.UserID(c), store.ListFilter{Query: c.Query("q")})
		if err != nil {
			fail(c, err)
			return
		}
		out := make([]models.Summary, 0, len(convs))
		for i := range convs {
			out = append(out, convs[i].Summary())
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "conversations": out})
	}
}

func GetConversation(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, err := d.Store.FindByIDForOwner(c.Request.Context(), c.Param("conversation_id"), middleware.UserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "conversation": conv})
	}
}

func RenameConversation(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, apperr.New(apperr.KindValidation, "name is required"))
			return
		}
		conv, err := d.Store.Rename(c.Request.Context(), c.Param("conversation_id"), middleware.UserID(c), body.Name)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "conversation": conv})
	}
}

func DeleteConversation(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := d.Store.DeleteOne(c.Request.Context(), c.Param("conversation_id"), middleware.UserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		if !ok {
			fail(c, apperr.ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "msg": "conversation deleted"})
	}
}

func DeleteAllConversations(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := d.Store.DeleteAllForOwner(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
	}
}

type promptBody struct {
	Prompt string `json:"prompt"`
}

// bindPrompt reads and checks the prompt, then applies the duplicate guard.
func bindPrompt(c *gin.Context, d *Deps) (string, bool) {
	var body promptBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Prompt) == "" {
		fail(c, apperr.New(apperr.KindValidation, "prompt is required"))
		return "", false
	}
	if utf8.RuneCountInString(body.Prompt) > maxPromptRunes {
		fail(c, apperr.New(apperr.KindValidation, "prompt is too long"))
		return "", false
	}
	if !d.Duplicates.Allow(middleware.UserID(c), body.Prompt) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "msg": "duplicate message, please wait"})
		return "", false
	}
	return body.Prompt, true
}

// SendPrompt answers with the assistant message once the exchange is stored.
func SendPrompt(d *Deps) gin.HandlerFunc {
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
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"message":      res.Assistant,
			"conversation": res.Conversation.Summary(),
		})
	}
}
