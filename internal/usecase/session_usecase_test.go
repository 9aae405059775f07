package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faindi/internal/domain/entity"
	"faindi/internal/infrastructure/api"
	apperrors "faindi/pkg/errors"
)

func TestSessionLoginPersistsToken(t *testing.T) {
	a := newTestApp(t)

	var changes []bool
	a.session.OnChange(func(authenticated bool) { changes = append(changes, authenticated) })

	a.signIn(t, "U1")

	s := a.session.Snapshot()
	assert.True(t, s.Authenticated)
	assert.Equal(t, "U1", s.UserID)
	assert.Equal(t, "T1", a.session.Token())
	assert.Equal(t, "T1", a.tokens.token)
	assert.Equal(t, []bool{true}, changes)
}

func TestSessionLoginRequiresToken(t *testing.T) {
	a := newTestApp(t)

	err := a.session.Login(context.Background(), entity.Session{UserID: "U1"})
	assert.True(t, apperrors.Is(err, "BAD_REQUEST"))
	assert.False(t, a.session.Authenticated())
}

func TestSessionLogoutClearsEverything(t *testing.T) {
	a := newTestApp(t)
	a.signIn(t, "U1")

	var changes []bool
	a.session.OnChange(func(authenticated bool) { changes = append(changes, authenticated) })

	require.NoError(t, a.session.Logout(context.Background()))

	assert.Equal(t, entity.Session{}, a.session.Snapshot())
	assert.Empty(t, a.tokens.token)
	assert.Equal(t, []bool{false}, changes)
}

func TestSessionSignIn(t *testing.T) {
	a := newTestApp(t)
	a.backend.authResult = &api.AuthResult{
		User:        api.AuthUser{UserID: "U1", Fullname: "Ann", Email: "ann@faindi.com"},
		AccessToken: "T9",
	}

	s, err := a.session.SignIn(context.Background(), SignInInput{Email: " ann@faindi.com ", Password: "secret"})
	require.NoError(t, err)

	assert.Equal(t, "U1", s.UserID)
	assert.Equal(t, "Ann", s.Fullname)
	assert.True(t, s.Authenticated)
	assert.Equal(t, "T9", a.tokens.token)
	assert.Equal(t, []string{"ann@faindi.com", "secret"}, a.backend.lastArgs("SignIn"))
}

func TestSessionSignInValidation(t *testing.T) {
	tests := []struct {
		name  string
		input SignInInput
	}{
		{"missing email", SignInInput{Password: "secret"}},
		{"malformed email", SignInInput{Email: "ann@", Password: "secret"}},
		{"missing password", SignInInput{Email: "ann@faindi.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t)
			_, err := a.session.SignIn(context.Background(), tt.input)
			assert.True(t, apperrors.Is(err, "VALIDATION_ERROR"), "got %v", err)
			assert.Zero(t, a.backend.count("SignIn"))
		})
	}
}

func TestSessionSignInVerificationThenVerify(t *testing.T) {
	a := newTestApp(t)
	a.backend.signInErr = apperrors.VerificationRequired("ann@faindi.com", "VT1")

	_, err := a.session.SignIn(context.Background(), SignInInput{Email: "ann@faindi.com", Password: "secret"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "VERIFICATION_REQUIRED"))

	s := a.session.Snapshot()
	assert.False(t, s.Authenticated)
	assert.Equal(t, "ann@faindi.com", s.VerifyEmail)
	assert.Equal(t, "VT1", s.VerifyToken)

	a.backend.authResult = &api.AuthResult{
		User:        api.AuthUser{UserID: "U1", FullName: "Ann"},
		AccessToken: "T2",
	}
	s, err = a.session.Verify(context.Background(), VerifyInput{Code: "1234"})
	require.NoError(t, err)

	assert.Equal(t, []string{"VT1", "1234"}, a.backend.lastArgs("Verify"))
	assert.Equal(t, "Ann", s.Fullname)
	assert.Empty(t, s.VerifyToken)
	assert.Equal(t, "T2", a.tokens.token)
}

func TestSessionVerifyWithoutPendingToken(t *testing.T) {
	a := newTestApp(t)

	_, err := a.session.Verify(context.Background(), VerifyInput{Code: "1234"})
	assert.True(t, apperrors.Is(err, "BAD_REQUEST"))
}

func TestSessionSignUp(t *testing.T) {
	valid := SignUpInput{
		Avatar:          "file:///tmp/me.png",
		Fullname:        "Ann Lee",
		Email:           "ann@faindi.com",
		Username:        "ann",
		Password:        "secret",
		ConfirmPassword: "secret",
	}

	t.Run("stores verification token", func(t *testing.T) {
		a := newTestApp(t)
		a.backend.signUpToken = "VT7"

		require.NoError(t, a.session.SignUp(context.Background(), valid))

		s := a.session.Snapshot()
		assert.Equal(t, "ann@faindi.com", s.VerifyEmail)
		assert.Equal(t, "VT7", s.VerifyToken)
		args := a.backend.lastArgs("SignUp")
		assert.Equal(t, "https://storage.googleapis.com/test/users/file:///tmp/me.png", args[1])
	})

	t.Run("password confirmation mismatch", func(t *testing.T) {
		a := newTestApp(t)
		in := valid
		in.ConfirmPassword = "other"

		err := a.session.SignUp(context.Background(), in)
		require.Error(t, err)
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
		assert.Equal(t, "Password confirmation does not match", appErr.Message)
		assert.Zero(t, a.backend.count("SignUp"))
	})

	t.Run("username taken", func(t *testing.T) {
		a := newTestApp(t)
		a.backend.usernameFree = false

		err := a.session.SignUp(context.Background(), valid)
		assert.True(t, apperrors.Is(err, "VALIDATION_ERROR"))
		assert.Zero(t, a.backend.count("SignUp"))
	})

	t.Run("avatar upload failure", func(t *testing.T) {
		a := newTestApp(t)
		a.uploader.fail[valid.Avatar] = true

		err := a.session.SignUp(context.Background(), valid)
		assert.True(t, apperrors.Is(err, "UPLOAD_FAILED"))
		assert.Zero(t, a.backend.count("SignUp"))
	})
}

func TestSessionRestore(t *testing.T) {
	t.Run("no stored token", func(t *testing.T) {
		a := newTestApp(t)

		ok, err := a.session.Restore(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, a.backend.count("CurrentUser"))
	})

	t.Run("signs in with stored token", func(t *testing.T) {
		a := newTestApp(t)
		a.tokens.token = "T1"
		a.backend.currentUser = &api.AuthUser{UserID: "U1", Fullname: "Ann"}

		ok, err := a.session.Restore(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "U1", a.session.Snapshot().UserID)
		assert.Equal(t, "T1", a.session.Token())
	})

	t.Run("rejected token logs out", func(t *testing.T) {
		a := newTestApp(t)
		a.tokens.token = "T1"
		a.backend.currentErr = apperrors.Unauthorized("jwt expired", nil)

		ok, err := a.session.Restore(context.Background())
		assert.False(t, ok)
		assert.True(t, apperrors.Is(err, "UNAUTHORIZED"))
		assert.Empty(t, a.tokens.token)
		assert.Empty(t, a.session.Token())
	})

	t.Run("network failure keeps token", func(t *testing.T) {
		a := newTestApp(t)
		a.tokens.token = "T1"
		a.backend.currentErr = apperrors.Network("Backend unreachable", nil)

		ok, err := a.session.Restore(context.Background())
		assert.False(t, ok)
		assert.True(t, apperrors.Is(err, "NETWORK_ERROR"))
		assert.Equal(t, "T1", a.tokens.token)
	})
}

func TestSessionLocalUpdates(t *testing.T) {
	a := newTestApp(t)
	a.signIn(t, "U1")

	a.session.UpdateInfo(InfoUpdate{Fullname: "Ann", Username: "ann", Title: "Seller", Bio: "hi"})
	a.session.UpdateAvatar("https://cdn/avatar.png")
	a.session.UpdateCover("https://cdn/cover.png")
	a.session.UpdateEmailFullname("new@faindi.com", "Ann Lee")

	s := a.session.Snapshot()
	assert.Equal(t, "Ann Lee", s.Fullname)
	assert.Equal(t, "ann", s.Username)
	assert.Equal(t, "Seller", s.Title)
	assert.Equal(t, "hi", s.Bio)
	assert.Equal(t, "https://cdn/avatar.png", s.Avatar)
	assert.Equal(t, "https://cdn/cover.png", s.Cover)
	assert.Equal(t, "new@faindi.com", s.Email)
	assert.True(t, s.Authenticated)
	assert.True(t, a.publisher.has("session"))
}
