package handler

import (
	"github.com/labstack/echo/v4"

	"faindi/internal/domain/entity"
	"faindi/internal/usecase"
	"faindi/pkg/errors"
	"faindi/pkg/response"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type sendMessageRequest struct {
	Content  string         `json:"content"`
	Medias   []entity.Media `json:"medias"`
	Fullname string         `json:"fullname"`
	Avatar   string         `json:"avatar"`
}

type chatListResponse struct {
	Chats       []entity.Chat `json:"chats"`
	UnreadTotal int           `json:"unread_total"`
}

// GetUserChats returns the chat list, most recent first. role=seller or
// role=buyer narrows it to one side of the conversations.
func (h *ChatHandler) GetUserChats(c echo.Context) error {
	if err := h.chatUseCase.FetchHistory(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}

	var chats []entity.Chat
	switch c.QueryParam("role") {
	case "seller":
		chats = h.chatUseCase.SellerChats()
	case "buyer":
		chats = h.chatUseCase.BuyerChats()
	case "":
		chats = h.chatUseCase.Chats()
	default:
		return response.Error(c, errors.BadRequest("role must be seller or buyer", nil))
	}

	return response.Success(c, chatListResponse{
		Chats:       chats,
		UnreadTotal: h.chatUseCase.UnreadTotal(),
	})
}

func (h *ChatHandler) GetChat(c echo.Context) error {
	chat, ok := h.chatUseCase.Chat(c.Param("userId"))
	if !ok {
		return response.Error(c, errors.NotFound("Chat", nil))
	}

	return response.Success(c, chat)
}

// SendMessage queues the message and answers 202 with its delivery state;
// the final state arrives on the push feed.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	counterpart := entity.User{ID: c.Param("userId"), Fullname: req.Fullname, Avatar: req.Avatar}
	if chat, ok := h.chatUseCase.Chat(counterpart.ID); ok {
		counterpart = chat.User
	}

	msg, err := h.chatUseCase.Send(c.Request().Context(), counterpart, req.Content, req.Medias)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Accepted(c, msg)
}

func (h *ChatHandler) MarkChatAsRead(c echo.Context) error {
	if err := h.chatUseCase.MarkRead(c.Request().Context(), c.Param("userId")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{
		"message": "Chat marked as read",
	})
}

func (h *ChatHandler) SubmitFeedback(c echo.Context) error {
	var req usecase.FeedbackInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.chatUseCase.SubmitFeedback(c.Request().Context(), c.Param("userId"), req); err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, map[string]string{
		"message": "Feedback submitted",
	})
}

func (h *ChatHandler) GetOutbox(c echo.Context) error {
	delivery := entity.Delivery(c.QueryParam("delivery"))
	if delivery == "" {
		delivery = entity.DeliveryFailed
	}

	entries, err := h.chatUseCase.Outbox(c.Request().Context(), delivery)
	if err != nil {
		return response.Error(c, err)
	}

	messages := make([]entity.Message, 0, len(entries))
	for _, entry := range entries {
		messages = append(messages, entry.Message)
	}
	return response.Success(c, messages)
}

func (h *ChatHandler) RetryMessage(c echo.Context) error {
	msg, err := h.chatUseCase.Retry(c.Request().Context(), c.Param("clientId"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Accepted(c, msg)
}
