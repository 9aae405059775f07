package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"faindi/internal/domain/entity"
	"faindi/internal/domain/repository"
	"faindi/internal/infrastructure/api"
	ws "faindi/internal/infrastructure/websocket"
	"faindi/pkg/errors"
)

const avatarFolder = "users"

// SessionUseCase owns the signed-in identity and the persisted access token.
// Listeners registered with OnChange run whenever authenticated flips.
type SessionUseCase struct {
	backend   SessionBackend
	tokens    repository.TokenRepository
	uploader  MediaUploader
	publisher Publisher
	validate  *validator.Validate

	mu        sync.RWMutex
	session   entity.Session
	listeners []func(authenticated bool)
}

func NewSessionUseCase(
	backend SessionBackend,
	tokens repository.TokenRepository,
	uploader MediaUploader,
	publisher Publisher,
) *SessionUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &SessionUseCase{
		backend:   backend,
		tokens:    tokens,
		uploader:  uploader,
		publisher: publisher,
		validate:  newValidator(),
	}
}

type SignInInput struct {
	Email    string `json:"email" validate:"required,faindi_email"`
	Password string `json:"password" validate:"required"`
}

type SignUpInput struct {
	Avatar          string `json:"avatar" validate:"required"`
	Fullname        string `json:"fullname" validate:"required"`
	Email           string `json:"email" validate:"required,faindi_email"`
	Username        string `json:"username" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
}

type VerifyInput struct {
	Code string `json:"code" validate:"required"`
}

// OnChange registers fn to run after every login and logout.
func (u *SessionUseCase) OnChange(fn func(authenticated bool)) {
	u.mu.Lock()
	u.listeners = append(u.listeners, fn)
	u.mu.Unlock()
}

func (u *SessionUseCase) Snapshot() entity.Session {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.session
}

func (u *SessionUseCase) Token() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.session.Token
}

func (u *SessionUseCase) Authenticated() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.session.Authenticated
}

func (u *SessionUseCase) UserID() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.session.UserID
}

// Login stores the identity, marks the session authenticated and persists
// the token.
func (u *SessionUseCase) Login(ctx context.Context, session entity.Session) error {
	if session.Token == "" {
		return errors.BadRequest("Access token is required", nil)
	}
	if err := u.tokens.Save(ctx, session.Token); err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}

	session.Authenticated = true
	session.VerifyEmail = ""
	session.VerifyToken = ""

	u.mu.Lock()
	u.session = session
	u.mu.Unlock()

	log.Printf("Session: signed in as %s", session.UserID)
	u.changed(true)
	return nil
}

// Logout clears every field and deletes the persisted token. Listeners run
// even when the token could not be deleted.
func (u *SessionUseCase) Logout(ctx context.Context) error {
	u.mu.Lock()
	wasAuthenticated := u.session.Authenticated
	u.session = entity.Session{}
	u.mu.Unlock()

	err := u.tokens.Delete(ctx)
	if wasAuthenticated {
		log.Printf("Session: signed out")
	}
	u.changed(false)

	if err != nil {
		return fmt.Errorf("failed to delete access token: %w", err)
	}
	return nil
}

// Restore signs back in with the persisted token, if any. It reports whether
// the session ended up authenticated.
func (u *SessionUseCase) Restore(ctx context.Context) (bool, error) {
	token, err := u.tokens.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load access token: %w", err)
	}
	if token == "" {
		return false, nil
	}

	// the token source reads it from here during the next call
	u.mu.Lock()
	u.session.Token = token
	u.mu.Unlock()

	user, err := u.backend.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, "UNAUTHORIZED") {
			log.Printf("Session: stored token rejected, signing out")
			if logoutErr := u.Logout(ctx); logoutErr != nil {
				log.Printf("Session: logout error: %v", logoutErr)
			}
		}
		return false, err
	}
	if user == nil {
		return false, errors.Network("Malformed current user response", nil)
	}

	if err := u.Login(ctx, user.Session(token)); err != nil {
		return false, err
	}
	return true, nil
}

func (u *SessionUseCase) SignIn(ctx context.Context, input SignInInput) (entity.Session, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := validateInput(u.validate, input); err != nil {
		return entity.Session{}, err
	}

	res, err := u.backend.SignIn(ctx, input.Email, input.Password)
	if err != nil {
		if appErr, ok := errors.As(err); ok && appErr.Code == "VERIFICATION_REQUIRED" {
			u.setVerification(appErr.Details["email"], appErr.Details["token"])
		}
		return entity.Session{}, err
	}

	if err := u.Login(ctx, res.User.Session(res.AccessToken)); err != nil {
		return entity.Session{}, err
	}
	return u.Snapshot(), nil
}

// SignUp registers the account and leaves the session waiting for the
// emailed verification code.
func (u *SessionUseCase) SignUp(ctx context.Context, input SignUpInput) error {
	input.Email = strings.TrimSpace(input.Email)
	input.Username = strings.TrimSpace(input.Username)
	if err := validateInput(u.validate, input); err != nil {
		return err
	}

	available, err := u.backend.CheckUsername(ctx, input.Username)
	if err != nil {
		return err
	}
	if !available {
		return errors.Validation("username is already taken", nil)
	}

	avatar := input.Avatar
	if u.uploader != nil {
		avatar, err = u.uploader.Upload(ctx, avatarFolder, input.Avatar)
		if err != nil {
			return errors.UploadFailed("Failed to upload avatar", err)
		}
	}

	token, err := u.backend.SignUp(ctx, api.SignUpRequest{
		Avatar:   avatar,
		Fullname: input.Fullname,
		Email:    input.Email,
		Username: input.Username,
		Password: input.Password,
	})
	if err != nil {
		return err
	}

	u.setVerification(input.Email, token)
	return nil
}

// Verify submits the emailed code against the pending verification token
// and signs in on success.
func (u *SessionUseCase) Verify(ctx context.Context, input VerifyInput) (entity.Session, error) {
	if err := validateInput(u.validate, input); err != nil {
		return entity.Session{}, err
	}

	u.mu.RLock()
	verifyToken := u.session.VerifyToken
	u.mu.RUnlock()
	if verifyToken == "" {
		return entity.Session{}, errors.BadRequest("No pending verification", nil)
	}

	res, err := u.backend.Verify(ctx, verifyToken, strings.TrimSpace(input.Code))
	if err != nil {
		return entity.Session{}, err
	}

	if err := u.Login(ctx, res.User.Session(res.AccessToken)); err != nil {
		return entity.Session{}, err
	}
	return u.Snapshot(), nil
}

func (u *SessionUseCase) ResendVerify(ctx context.Context) error {
	u.mu.RLock()
	email := u.session.VerifyEmail
	u.mu.RUnlock()
	if email == "" {
		return errors.BadRequest("No pending verification", nil)
	}

	token, err := u.backend.ResendVerify(ctx, email)
	if err != nil {
		return err
	}
	u.setVerification(email, token)
	return nil
}

func (u *SessionUseCase) CheckUsername(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, errors.Validation("username is required", nil)
	}
	return u.backend.CheckUsername(ctx, username)
}

func (u *SessionUseCase) Notifications(ctx context.Context) ([]entity.Notification, error) {
	if !u.Authenticated() {
		return nil, errors.Unauthorized("Not signed in", nil)
	}
	return u.backend.Notifications(ctx)
}

type InfoUpdate struct {
	Fullname string `json:"fullname"`
	Username string `json:"username"`
	Title    string `json:"title"`
	Bio      string `json:"bio"`
}

// UpdateInfo replaces the display fields after a profile edit.
func (u *SessionUseCase) UpdateInfo(info InfoUpdate) {
	u.update(func(s *entity.Session) {
		s.Fullname = info.Fullname
		s.Username = info.Username
		s.Title = info.Title
		s.Bio = info.Bio
	})
}

func (u *SessionUseCase) UpdateAvatar(avatar string) {
	u.update(func(s *entity.Session) { s.Avatar = avatar })
}

func (u *SessionUseCase) UpdateCover(cover string) {
	u.update(func(s *entity.Session) { s.Cover = cover })
}

func (u *SessionUseCase) UpdateEmailFullname(email, fullname string) {
	u.update(func(s *entity.Session) {
		s.Email = email
		s.Fullname = fullname
	})
}

func (u *SessionUseCase) update(fn func(s *entity.Session)) {
	u.mu.Lock()
	fn(&u.session)
	snapshot := u.session
	u.mu.Unlock()
	u.publisher.Publish(ws.PushSession, snapshot)
}

func (u *SessionUseCase) setVerification(email, token string) {
	u.update(func(s *entity.Session) {
		s.VerifyEmail = email
		s.VerifyToken = token
	})
}

func (u *SessionUseCase) changed(authenticated bool) {
	u.mu.RLock()
	listeners := append([]func(bool){}, u.listeners...)
	snapshot := u.session
	u.mu.RUnlock()

	for _, fn := range listeners {
		fn(authenticated)
	}
	u.publisher.Publish(ws.PushSession, snapshot)
}
