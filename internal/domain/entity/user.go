package entity

type User struct {
	ID       string `json:"_id"`
	Avatar   string `json:"avatar"`
	Cover    string `json:"cover"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Title    string `json:"title"`
	Bio      string `json:"bio"`
}

// Session is the signed-in identity plus the backend access token.
type Session struct {
	UserID   string `json:"user_id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Cover    string `json:"cover"`
	Title    string `json:"title"`
	Bio      string `json:"bio"`
	Token    string `json:"-"`

	Authenticated bool   `json:"authenticated"`
	VerifyEmail   string `json:"verify_email,omitempty"`
	VerifyToken   string `json:"-"`
}

// AsUser returns the public profile part of the session.
func (s Session) AsUser() User {
	return User{
		ID:       s.UserID,
		Avatar:   s.Avatar,
		Cover:    s.Cover,
		Fullname: s.Fullname,
		Email:    s.Email,
		Username: s.Username,
		Title:    s.Title,
		Bio:      s.Bio,
	}
}

type Notification struct {
	Sender  User    `json:"sender"`
	Type    string  `json:"notify_type"`
	Content string  `json:"content"`
	Rate    float64 `json:"rate"`
	Price   float64 `json:"price"`
}
