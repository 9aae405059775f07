package entity

type Category struct {
	ID    string `json:"_id"`
	Title string `json:"cat_title"`
	Image string `json:"cat_img"`
}

type Media struct {
	Type string `json:"media_type"`
	URI  string `json:"uri"`
}

type Like struct {
	UserID string `json:"user_id"`
}

type Feedback struct {
	UserID  string  `json:"user_id"`
	Rate    float64 `json:"rate"`
	Comment *string `json:"comment"`
}

type Product struct {
	ID           string     `json:"_id"`
	Owner        User       `json:"owner"`
	Category     Category   `json:"category"`
	Title        string     `json:"title"`
	Medias       []Media    `json:"medias"`
	Size         string     `json:"size"`
	Price        float64    `json:"price"`
	Currency     string     `json:"currency"`
	ReducedPrice float64    `json:"reduced_price"`
	Description  string     `json:"description"`
	Likes        []Like     `json:"likes"`
	Feedbacks    []Feedback `json:"feedbacks"`
	Sold         bool       `json:"sold"`
	IsRecycle    bool       `json:"is_recycle"`
}

func (p *Product) LikedBy(userID string) bool {
	if userID == "" {
		return false
	}
	for _, like := range p.Likes {
		if like.UserID == userID {
			return true
		}
	}
	return false
}

// ToggleLike adds or removes userID from the like set and reports whether
// the product is liked afterwards.
func (p *Product) ToggleLike(userID string) bool {
	for i, like := range p.Likes {
		if like.UserID == userID {
			p.Likes = append(p.Likes[:i:i], p.Likes[i+1:]...)
			return false
		}
	}
	p.Likes = append(p.Likes, Like{UserID: userID})
	return true
}

// Clone returns a copy that shares no slices with p.
func (p Product) Clone() Product {
	p.Medias = append([]Media(nil), p.Medias...)
	p.Likes = append([]Like(nil), p.Likes...)
	p.Feedbacks = append([]Feedback(nil), p.Feedbacks...)
	return p
}

func CloneProducts(products []Product) []Product {
	out := make([]Product, len(products))
	for i, p := range products {
		out[i] = p.Clone()
	}
	return out
}
