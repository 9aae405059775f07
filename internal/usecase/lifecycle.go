package usecase

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// BindSession empties every cache, and the persisted outbox, when the
// session signs out.
func BindSession(session *SessionUseCase, catalog *CatalogUseCase, profile *ProfileUseCase, chat *ChatUseCase) {
	session.OnChange(func(authenticated bool) {
		if authenticated {
			return
		}
		catalog.Reset()
		profile.Reset()
		chat.Reset()
		if err := chat.ClearOutbox(context.Background()); err != nil {
			log.Printf("Session Error: failed to clear outbox: %v", err)
		}
	})
}

// LoadAll runs the per-session fetches concurrently: catalog, profile
// aggregate and chat history.
func LoadAll(ctx context.Context, catalog *CatalogUseCase, profile *ProfileUseCase, chat *ChatUseCase) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return catalog.EnsureLoaded(ctx) })
	g.Go(func() error { return profile.EnsureLoaded(ctx) })
	g.Go(func() error { return chat.FetchHistory(ctx) })
	return g.Wait()
}
