package api

import (
	"context"
	"net/http"

	"faindi/internal/domain/entity"
)

// AuthUser is the user shape returned by the auth and user/current endpoints.
// The verify endpoint spells the name "fullName".
type AuthUser struct {
	UserID   string `json:"user_id"`
	Fullname string `json:"fullname"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Cover    string `json:"cover"`
	Title    string `json:"title"`
	Bio      string `json:"bio"`
}

// Session builds a session for this user with the given token.
func (u AuthUser) Session(token string) entity.Session {
	name := u.Fullname
	if name == "" {
		name = u.FullName
	}
	return entity.Session{
		UserID:        u.UserID,
		Fullname:      name,
		Email:         u.Email,
		Username:      u.Username,
		Avatar:        u.Avatar,
		Cover:         u.Cover,
		Title:         u.Title,
		Bio:           u.Bio,
		Token:         token,
		Authenticated: true,
	}
}

type AuthResult struct {
	User        AuthUser `json:"user"`
	AccessToken string   `json:"accessToken"`
}

type SignUpRequest struct {
	Avatar   string `json:"avatar"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "auth/signin", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignUp registers the account and returns the email verification token.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/signup", req, &out, false); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) Verify(ctx context.Context, verifyToken, code string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"token": verifyToken, "number": code}
	if err := c.do(ctx, http.MethodPost, "auth/verify", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendVerify asks for a new verification email and returns the new token.
func (c *Client) ResendVerify(ctx context.Context, email string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/send-verify", map[string]string{"email": email}, &out, false); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) CheckUsername(ctx context.Context, username string) (bool, error) {
	var out struct {
		Result bool `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/check-username", map[string]string{"username": username}, &out, false); err != nil {
		return false, err
	}
	return out.Result, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*AuthUser, error) {
	var out struct {
		User *AuthUser `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "user/current", nil, &out, true); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *Client) Notifications(ctx context.Context) ([]entity.Notification, error) {
	var out struct {
		Notifications []entity.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "user/notifications", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}
