package api

import (
	"context"
	"net/http"
	"net/url"

	"faindi/internal/domain/entity"
)

func (c *Client) ProfileItems(ctx context.Context) (*entity.ProfileAggregate, error) {
	var out entity.ProfileAggregate
	if err := c.do(ctx, http.MethodGet, "profile/items", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddToCart(ctx context.Context, productID string) error {
	return c.do(ctx, http.MethodPost, "cart/add", map[string]string{"product_id": productID}, nil, true)
}

// UpdateCart toggles the product in the caller's cart on the server side.
func (c *Client) UpdateCart(ctx context.Context, productID string) error {
	return c.do(ctx, http.MethodPost, "cart/update", map[string]string{"product_id": productID}, nil, true)
}

func (c *Client) MakeOrder(ctx context.Context, sellerID string) ([]entity.Order, error) {
	var out struct {
		Orders []entity.Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodPost, "order/make", map[string]string{"seller_id": sellerID}, &out, true); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) MarkDelivered(ctx context.Context, orderID string) error {
	return c.do(ctx, http.MethodPost, "order/delivered", map[string]string{"order_id": orderID}, nil, true)
}

func (c *Client) Follow(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodGet, "user/follow/"+url.PathEscape(userID), nil, nil, true)
}

func (c *Client) Unfollow(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodGet, "user/unfollow/"+url.PathEscape(userID), nil, nil, true)
}
