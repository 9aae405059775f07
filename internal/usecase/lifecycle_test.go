package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faindi/internal/domain/entity"
	apperrors "faindi/pkg/errors"
)

func TestLogoutEmptiesCachesAndDeletesToken(t *testing.T) {
	a := newTestApp(t)
	seedCatalog(a, product("P1", "S1"), product("P2", "S2"))
	a.signIn(t, "U1")
	a.backend.chats = []entity.Chat{{User: entity.User{ID: "S1"}, Messages: []entity.Message{{Content: "hi"}}}}
	a.backend.profile = &entity.ProfileAggregate{
		Carts: []entity.Cart{{Seller: entity.User{ID: "S1"}, Products: []entity.Product{product("P1", "S1")}}},
	}

	require.NoError(t, LoadAll(context.Background(), a.catalog, a.profile, a.chat))

	a.emitter.setErr(errors.New("offline"))
	_, err := a.chat.Send(context.Background(), entity.User{ID: "S2"}, "queued", nil)
	require.NoError(t, err)

	require.NotEmpty(t, a.chat.Chats())
	require.NotEmpty(t, a.catalog.Products())
	require.NotEmpty(t, a.profile.Snapshot().Carts)
	require.Equal(t, 1, a.outbox.len())

	require.NoError(t, a.session.Logout(context.Background()))

	assert.Empty(t, a.chat.Chats())
	assert.Empty(t, a.catalog.Products())
	assert.Empty(t, a.profile.Snapshot().Carts)
	assert.Empty(t, a.tokens.token)
	assert.Zero(t, a.outbox.len())
}

func TestSignInAgainRefetches(t *testing.T) {
	a := newTestApp(t)
	seedCatalog(a, product("P1", "S1"))
	a.signIn(t, "U1")
	require.NoError(t, LoadAll(context.Background(), a.catalog, a.profile, a.chat))

	require.NoError(t, a.session.Logout(context.Background()))
	a.signIn(t, "U2")
	require.NoError(t, LoadAll(context.Background(), a.catalog, a.profile, a.chat))

	assert.Equal(t, 2, a.backend.count("CatalogItems"))
	assert.Equal(t, 2, a.backend.count("ProfileItems"))
	assert.Equal(t, 2, a.backend.count("ChatList"))
}

func TestUnauthorizedMutationDoesNotRefillCaches(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		run  func(a *testApp) error
	}{
		{"like", func(a *testApp) error {
			_, err := a.catalog.ToggleLike(ctx, "P2")
			return err
		}},
		{"remove from cart", func(a *testApp) error { return a.profile.RemoveFromCart(ctx, "S1", "P1") }},
		{"add to cart", func(a *testApp) error { return a.profile.AddToCart(ctx, product("P2", "S2")) }},
		{"unfollow", func(a *testApp) error { return a.profile.Unfollow(ctx, "S2") }},
		{"follow", func(a *testApp) error { return a.profile.Follow(ctx, entity.User{ID: "S3"}) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestApp(t)
			seedCatalog(a, product("P1", "S1"), product("P2", "S2"))
			a.signIn(t, "U1")
			a.backend.profile = &entity.ProfileAggregate{
				Carts:      []entity.Cart{{Seller: entity.User{ID: "S1"}, Products: []entity.Product{product("P1", "S1")}}},
				Followings: []entity.Following{{User: entity.User{ID: "S2"}}},
			}
			require.NoError(t, LoadAll(ctx, a.catalog, a.profile, a.chat))

			// the REST client signs out on 401 before the call returns
			rejected := apperrors.Unauthorized("Invalid token", nil)
			a.backend.likeErr = rejected
			a.backend.cartErr = rejected
			a.backend.followErr = rejected
			a.backend.onMutation = func() { _ = a.session.Logout(ctx) }

			err := tc.run(a)
			assert.True(t, apperrors.Is(err, "UNAUTHORIZED"), "%v", err)
			assert.False(t, a.session.Authenticated())

			snap := a.profile.Snapshot()
			assert.Empty(t, snap.Carts)
			assert.Empty(t, snap.LikeProducts)
			assert.Empty(t, snap.Followings)
			assert.Empty(t, a.catalog.Products())
		})
	}
}
