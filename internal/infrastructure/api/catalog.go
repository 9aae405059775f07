package api

import (
	"context"
	"net/http"

	"faindi/internal/domain/entity"
)

type CatalogItems struct {
	Products   []entity.Product  `json:"products"`
	Categories []entity.Category `json:"categories"`
}

func (c *Client) CatalogItems(ctx context.Context) (*CatalogItems, error) {
	var out CatalogItems
	if err := c.do(ctx, http.MethodGet, "product/items", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// LikeProduct toggles the caller's like on the server side.
func (c *Client) LikeProduct(ctx context.Context, productID string) error {
	return c.do(ctx, http.MethodPost, "product/like", map[string]string{"product_id": productID}, nil, true)
}

func (c *Client) SubmitFeedback(ctx context.Context, productID string, rate int, comment string) error {
	body := map[string]interface{}{"product_id": productID, "rate": rate, "comment": comment}
	return c.do(ctx, http.MethodPost, "product/feedback", body, nil, true)
}
