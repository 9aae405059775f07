package handler

import (
	ws "faindi/internal/infrastructure/websocket"
	"faindi/internal/usecase"
)

// Handlers bundles every handler the local API routes to.
type Handlers struct {
	Session   *SessionHandler
	Catalog   *CatalogHandler
	Profile   *ProfileHandler
	Chat      *ChatHandler
	Health    *HealthHandler
	WebSocket *WebSocketHandler
}

func Setup(
	sessionUseCase *usecase.SessionUseCase,
	catalogUseCase *usecase.CatalogUseCase,
	profileUseCase *usecase.ProfileUseCase,
	chatUseCase *usecase.ChatUseCase,
	realtime RealtimeStatus,
	wsManager *ws.Manager,
	origins OriginPolicy,
) *Handlers {
	return &Handlers{
		Session:   NewSessionHandler(sessionUseCase),
		Catalog:   NewCatalogHandler(catalogUseCase),
		Profile:   NewProfileHandler(profileUseCase, catalogUseCase),
		Chat:      NewChatHandler(chatUseCase),
		Health:    NewHealthHandler(realtime, wsManager),
		WebSocket: NewWebSocketHandler(wsManager, origins),
	}
}
