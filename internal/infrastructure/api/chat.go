package api

import (
	"context"
	"net/http"

	"faindi/internal/domain/entity"
)

func (c *Client) ChatList(ctx context.Context) ([]entity.Chat, error) {
	var out struct {
		Chats []entity.Chat `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "chat/get-list", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Chats, nil
}
