package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smart-parking/internal/dto"
	"github.com/iliyamo/smart-parking/internal/middleware"
	"github.com/iliyamo/smart-parking/internal/service"
)

// ChatHandler serves the assistant. Most routes accept anonymous
// callers; a signed-in caller's sessions are private to them.
type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// caller is the optional identity; anonymous callers get user id 0.
func caller(c echo.Context) service.Actor {
	id, _ := middleware.UserID(c)
	return service.Actor{UserID: id, Role: middleware.Role(c)}
}

func (h *ChatHandler) Send(c echo.Context) error {
	var req dto.ChatMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in := service.ChatRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	}
	if id, ok := middleware.UserID(c); ok {
		in.UserID = &id
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.chat.Send(ctx, in)
	if err != nil {
		return err
	}
	return ok(c, dto.FromChatResult(res))
}

func (h *ChatHandler) History(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, msgs, err := h.chat.History(ctx, caller(c), c.Param("session_id"), queryInt(c, "limit", 50))
	if err != nil {
		return err
	}
	return ok(c, dto.FromChatHistory(s, msgs))
}

// Active answers with data null when the caller has no open session.
func (h *ChatHandler) Active(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, msgs, err := h.chat.Active(ctx, uid)
	if err != nil {
		return err
	}
	if s == nil {
		return done(c, nil, "No active session")
	}
	return ok(c, dto.FromChatHistory(s, msgs))
}

func (h *ChatHandler) End(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.chat.End(ctx, caller(c), c.Param("session_id")); err != nil {
		return err
	}
	return done(c, nil, "Chat session ended")
}

func (h *ChatHandler) Rate(c echo.Context) error {
	var req dto.RateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.chat.Rate(ctx, caller(c), c.Param("session_id"), req.Rating); err != nil {
		return err
	}
	return done(c, nil, "Thank you for your feedback")
}

func (h *ChatHandler) Escalate(c echo.Context) error {
	var req dto.EscalateRequest
	_ = c.Bind(&req)
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.chat.Escalate(ctx, caller(c), c.Param("session_id"), req.Reason); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, dto.OK(nil, "Your request has been forwarded to a support agent"))
}

func (h *ChatHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.chat.Stats(ctx, queryInt(c, "days", 7))
	if err != nil {
		return err
	}
	return ok(c, dto.FromChatStats(st))
}
