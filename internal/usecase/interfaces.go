package usecase

import (
	"context"

	"faindi/internal/domain/entity"
	"faindi/internal/infrastructure/api"
)

type SessionBackend interface {
	SignIn(ctx context.Context, email, password string) (*api.AuthResult, error)
	SignUp(ctx context.Context, req api.SignUpRequest) (string, error)
	Verify(ctx context.Context, verifyToken, code string) (*api.AuthResult, error)
	ResendVerify(ctx context.Context, email string) (string, error)
	CheckUsername(ctx context.Context, username string) (bool, error)
	CurrentUser(ctx context.Context) (*api.AuthUser, error)
	Notifications(ctx context.Context) ([]entity.Notification, error)
}

type CatalogBackend interface {
	CatalogItems(ctx context.Context) (*api.CatalogItems, error)
	LikeProduct(ctx context.Context, productID string) error
}

type ProfileBackend interface {
	ProfileItems(ctx context.Context) (*entity.ProfileAggregate, error)
	AddToCart(ctx context.Context, productID string) error
	UpdateCart(ctx context.Context, productID string) error
	MakeOrder(ctx context.Context, sellerID string) ([]entity.Order, error)
	MarkDelivered(ctx context.Context, orderID string) error
	Follow(ctx context.Context, userID string) error
	Unfollow(ctx context.Context, userID string) error
}

type ChatBackend interface {
	ChatList(ctx context.Context) ([]entity.Chat, error)
	SubmitFeedback(ctx context.Context, productID string, rate int, comment string) error
}

// Emitter writes one event on the realtime channel.
type Emitter interface {
	Emit(ctx context.Context, event string, payload interface{}) error
}

// MediaUploader turns a local media reference into a durable URL.
type MediaUploader interface {
	Upload(ctx context.Context, folder, localRef string) (string, error)
}

// Publisher notifies local UI subscribers that a cache changed.
type Publisher interface {
	Publish(event string, payload interface{})
}

type Observer interface {
	ObserveEvent(event string)
	ObserveOutbox(state string)
	ObserveMutation(entity, status string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

type nopObserver struct{}

func (nopObserver) ObserveEvent(string)            {}
func (nopObserver) ObserveOutbox(string)           {}
func (nopObserver) ObserveMutation(string, string) {}
