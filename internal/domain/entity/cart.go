package entity

import "time"

type Cart struct {
	Seller   User      `json:"seller"`
	Products []Product `json:"products"`
}

func (c Cart) Clone() Cart {
	c.Products = CloneProducts(c.Products)
	return c
}

func (c Cart) Has(productID string) bool {
	for _, p := range c.Products {
		if p.ID == productID {
			return true
		}
	}
	return false
}

type Order struct {
	ID        string    `json:"_id"`
	Seller    User      `json:"seller"`
	Product   Product   `json:"product"`
	OrderTime time.Time `json:"orderTime"`
	Shipped   bool      `json:"shipped"`
	ReadyPick bool      `json:"readyPick"`
	Delivered bool      `json:"delivered"`
}

type Following struct {
	User       User     `json:"user"`
	TopProduct *Product `json:"topProduct"`
}

type ProfileFeedback struct {
	Product Product `json:"product"`
	Rate    float64 `json:"rate"`
	Comment string  `json:"comment"`
}

// ProfileAggregate is the single profile/items response.
type ProfileAggregate struct {
	OwnProducts        []Product         `json:"own_products"`
	LikeProducts       []Product         `json:"like_products"`
	Feedbacks          []ProfileFeedback `json:"feedbacks"`
	Followings         []Following       `json:"followings"`
	Carts              []Cart            `json:"carts"`
	Orders             []Order           `json:"orders"`
	TotalRate          float64           `json:"total_rate"`
	TotalFeedbackCount int               `json:"total_feedback_count"`
}
