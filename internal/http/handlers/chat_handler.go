// Chat HTTP handlers.
//
//   - GET  /chat/messages              (admin, master; full log)
//   - POST /chat/messages              (send; Idempotency-Key aware)
//   - GET  /chat/channel?channel=      (participants, admin, master)
//   - GET  /chat/staff-conversations   (admin, master; threads with self)
//   - GET  /chat/own-conversations     (staff; own threads)
//   - POST /chat/read                  (mark the other party's messages read)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
	"github.com/tbourn/go-helpdesk-backend/internal/http/middleware"
	"github.com/tbourn/go-helpdesk-backend/internal/services"
)

// SendMessageRequest is the JSON payload for sending a chat message. A staff
// sender without recipient_id broadcasts to every admin and master.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"max=64"                             example:"admin-1"`
	Message     string `json:"message"      binding:"required"                           example:"Printer lantai 2 rusak"`
	Type        string `json:"type"         binding:"omitempty,oneof=text image file"    example:"text"`
	FileName    string `json:"file_name"    binding:"max=255"`
	ChatChannel string `json:"chat_channel" binding:"max=255"                            example:"staff-staff-1-admin-1"`
}

// MarkChannelReadRequest names the channel to mark.
type MarkChannelReadRequest struct {
	Channel string `json:"channel" binding:"required,max=255" example:"staff-staff-1-admin-1"`
}

// MarkChannelReadResponse reports how many messages changed.
type MarkChannelReadResponse struct {
	Updated int64 `json:"updated"`
}

// ListAllMessages godoc
// @ID          listAllMessages
// @Summary     List every chat message
// @Tags        Chat
// @Security    BearerAuth
// @Produce     json
// @Success     200  {array}   domain.ChatMessage
// @Failure     403  {object}  handlers.ErrorResponse "Forbidden"
// @Router      /chat/messages [get]
func (h *Handlers) ListAllMessages(c *gin.Context) {
	msgs, err := h.chat.Messages(c.Request.Context())
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, msgs)
}

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a chat message
// @Description Stores the message and notifies the recipient. A staff message without recipient fans out to every admin and master, one copy per thread.
// @Tags        Chat
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header    string                       false  "Replays every stored copy on retry"
// @Param       body             body      handlers.SendMessageRequest  true   "Message"
// @Success     201              {array}   domain.ChatMessage
// @Success     200              {array}   domain.ChatMessage "Replayed"
// @Failure     400              {object}  handlers.ErrorResponse "Empty message or foreign channel"
// @Router      /chat/messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	ctx := c.Request.Context()

	if mid, replay := middleware.ReplayResourceID(c); replay {
		if msgs, err := h.chat.Batch(ctx, mid); err == nil && len(msgs) > 0 && msgs[0].SenderID == u.ID {
			c.Header(HeaderIdempotencyReplayed, "true")
			ok(c, http.StatusOK, msgs)
			return
		}
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}
	msgs, err := h.chat.Send(ctx, u, services.NewChatMessage{
		RecipientID: strings.TrimSpace(req.RecipientID),
		Message:     req.Message,
		Type:        req.Type,
		FileName:    req.FileName,
		ChatChannel: strings.TrimSpace(req.ChatChannel),
	})
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	if len(msgs) > 0 {
		h.remember(c, u.ID, msgs[0].ID, http.StatusCreated)
	}
	ok(c, http.StatusCreated, msgs)
}

// ChannelMessages godoc
// @ID          channelMessages
// @Summary     List one channel
// @Tags        Chat
// @Security    BearerAuth
// @Produce     json
// @Param       channel  query     string  true  "Channel key"  example(staff-staff-1-admin-1)
// @Success     200      {array}   domain.ChatMessage
// @Failure     400      {object}  handlers.ErrorResponse "Missing channel"
// @Failure     403      {object}  handlers.ErrorResponse "Not a participant"
// @Router      /chat/channel [get]
func (h *Handlers) ChannelMessages(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	channel := strings.TrimSpace(c.Query("channel"))
	if channel == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel is required")
		return
	}
	if !h.canAccessChannel(c, u, channel) {
		return
	}
	msgs, err := h.chat.Channel(c.Request.Context(), channel)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, msgs)
}

// StaffConversations godoc
// @ID          staffConversations
// @Summary     Staff threads with the caller
// @Description Groups, per staff user, the thread between that user and the calling admin or master.
// @Tags        Chat
// @Security    BearerAuth
// @Produce     json
// @Success     200  {array}   services.StaffConversation
// @Failure     403  {object}  handlers.ErrorResponse "Forbidden"
// @Router      /chat/staff-conversations [get]
func (h *Handlers) StaffConversations(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	convs, err := h.chat.StaffConversations(c.Request.Context(), u.ID)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, convs)
}

// OwnConversations godoc
// @ID          ownConversations
// @Summary     Caller's staff threads
// @Tags        Chat
// @Security    BearerAuth
// @Produce     json
// @Success     200  {array}  domain.ChatMessage
// @Router      /chat/own-conversations [get]
func (h *Handlers) OwnConversations(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	msgs, err := h.chat.StaffOwnConversations(c.Request.Context(), u.ID)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, msgs)
}

// MarkChannelRead godoc
// @ID          markChannelRead
// @Summary     Mark a channel read
// @Description Marks the messages the other party sent on the channel as read.
// @Tags        Chat
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.MarkChannelReadRequest  true  "Channel"
// @Success     200   {object}  handlers.MarkChannelReadResponse
// @Failure     403   {object}  handlers.ErrorResponse "Not a participant"
// @Router      /chat/read [post]
func (h *Handlers) MarkChannelRead(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req MarkChannelReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}
	if !h.canAccessChannel(c, u, req.Channel) {
		return
	}
	n, err := h.chat.MarkRead(c.Request.Context(), req.Channel, u.ID)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, MarkChannelReadResponse{Updated: n})
}

// canAccessChannel writes the 403 or 500 response and returns false when u may
// not use channel.
func (h *Handlers) canAccessChannel(c *gin.Context, u *domain.User, channel string) bool {
	allowed, err := h.chat.CanAccess(c.Request.Context(), u, channel)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return false
	}
	if !allowed {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not a participant of this channel")
		return false
	}
	return true
}
