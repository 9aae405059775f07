package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"faindi/internal/domain/entity"
	"faindi/internal/domain/repository"
	"faindi/internal/infrastructure/ratelimit"
	ws "faindi/internal/infrastructure/websocket"
	"faindi/pkg/errors"
)

// ChatUseCase keeps one chat per counterpart, merging the REST history with
// realtime events, and sends messages through a persistent outbox.
type ChatUseCase struct {
	backend     ChatBackend
	session     *SessionUseCase
	emitter     Emitter
	uploader    MediaUploader
	outbox      repository.OutboxRepository
	rateLimiter *ratelimit.RateLimiter
	publisher   Publisher
	observer    Observer
	validate    *validator.Validate
	fetch       singleflight.Group
	now         func() time.Time
	newID       func() string

	mu         sync.RWMutex
	chats      []entity.Chat
	fetched    bool
	generation uint64

	// client ids currently being resent
	inflightMu sync.Mutex
	inflight   map[string]struct{}

	// throttled read receipts by counterpart, holding the reader's id
	readMu       sync.Mutex
	pendingReads map[string]string
	after        func(d time.Duration, fn func())
}

func NewChatUseCase(
	backend ChatBackend,
	session *SessionUseCase,
	emitter Emitter,
	uploader MediaUploader,
	outbox repository.OutboxRepository,
	rateLimiter *ratelimit.RateLimiter,
	publisher Publisher,
	observer Observer,
) *ChatUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.NewRateLimiter()
	}
	return &ChatUseCase{
		backend:      backend,
		session:      session,
		emitter:      emitter,
		uploader:     uploader,
		outbox:       outbox,
		rateLimiter:  rateLimiter,
		publisher:    publisher,
		observer:     observer,
		validate:     newValidator(),
		now:          time.Now,
		newID:        uuid.NewString,
		inflight:     make(map[string]struct{}),
		pendingReads: make(map[string]string),
		after: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

type FeedbackInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Rate      int    `json:"rate" validate:"min=1,max=5"`
	Comment   string `json:"comment" validate:"required"`
}

// UpsertChat replaces the counterpart's chat and moves it first. A chat
// whose UpdatedAt is older than the stored one is stale and ignored; zero
// timestamps always replace. Local messages still waiting for delivery are
// carried over when the incoming copy does not contain them yet.
func (u *ChatUseCase) UpsertChat(chat entity.Chat) bool {
	u.mu.Lock()
	applied := u.upsertLocked(chat)
	u.mu.Unlock()

	if applied {
		u.notify()
	}
	return applied
}

func (u *ChatUseCase) upsertLocked(chat entity.Chat) bool {
	incoming := chat.Clone()
	if i := u.indexOf(chat.User.ID); i >= 0 {
		existing := u.chats[i]
		if !existing.UpdatedAt.IsZero() && !incoming.UpdatedAt.IsZero() && existing.UpdatedAt.After(incoming.UpdatedAt) {
			return false
		}
		incoming.Messages = append(incoming.Messages, undelivered(existing.Messages, incoming.Messages)...)
		u.chats = append(u.chats[:i:i], u.chats[i+1:]...)
	}
	u.chats = append([]entity.Chat{incoming}, u.chats...)
	return true
}

// undelivered returns local messages from existing that are absent from
// incoming and have not been acknowledged yet.
func undelivered(existing, incoming []entity.Message) []entity.Message {
	seen := make(map[string]bool, len(incoming))
	for _, m := range incoming {
		if m.ClientID != "" {
			seen[m.ClientID] = true
		}
	}
	var out []entity.Message
	for _, m := range existing {
		if m.ClientID == "" || seen[m.ClientID] {
			continue
		}
		if m.Delivery == entity.DeliveryPending || m.Delivery == entity.DeliverySent || m.Delivery == entity.DeliveryFailed {
			out = append(out, m.Clone())
		}
	}
	return out
}

// MarkRead zeroes the unread counter, then tells the server. A failed emit
// leaves the counter at zero. A throttled emit is sent once the limiter
// refills, coalescing repeated calls for the same counterpart.
func (u *ChatUseCase) MarkRead(ctx context.Context, counterpartID string) error {
	u.mu.Lock()
	i := u.indexOf(counterpartID)
	if i >= 0 {
		u.chats[i].UnreadCount = 0
	}
	u.mu.Unlock()
	if i < 0 {
		return errors.NotFound("Chat", nil)
	}
	u.notify()

	userID := u.session.Snapshot().UserID
	if allowed, wait := u.rateLimiter.Allow(counterpartID, ratelimit.ActionMarkRead); !allowed {
		u.deferRead(counterpartID, userID, wait)
		return nil
	}
	u.readMu.Lock()
	delete(u.pendingReads, counterpartID)
	u.readMu.Unlock()

	if err := u.emitter.Emit(ctx, ws.EventReadMessage, ws.ReadMessageData{
		FromUserID: userID,
		ToUserID:   counterpartID,
	}); err != nil {
		log.Printf("Chat Error: readmessage to %s not sent: %v", counterpartID, err)
		return errors.Network("Failed to notify read state", err)
	}
	return nil
}

func (u *ChatUseCase) deferRead(counterpartID, userID string, wait time.Duration) {
	u.readMu.Lock()
	_, scheduled := u.pendingReads[counterpartID]
	u.pendingReads[counterpartID] = userID
	u.readMu.Unlock()
	if scheduled {
		return
	}

	log.Printf("Chat: readmessage to %s throttled, sending in %s", counterpartID, wait.Round(time.Millisecond))
	u.after(wait, func() { u.flushRead(counterpartID) })
}

// flushRead sends the deferred read receipt unless the session changed in
// the meantime.
func (u *ChatUseCase) flushRead(counterpartID string) {
	u.readMu.Lock()
	userID, ok := u.pendingReads[counterpartID]
	delete(u.pendingReads, counterpartID)
	u.readMu.Unlock()
	if !ok || userID == "" || userID != u.session.UserID() {
		return
	}

	if err := u.emitter.Emit(context.Background(), ws.EventReadMessage, ws.ReadMessageData{
		FromUserID: userID,
		ToUserID:   counterpartID,
	}); err != nil {
		log.Printf("Chat Error: deferred readmessage to %s not sent: %v", counterpartID, err)
	}
}

// AppendSystemMessage adds a client-side message to the counterpart's chat
// without touching the realtime channel. The chat keeps its position.
func (u *ChatUseCase) AppendSystemMessage(counterpartID string, message entity.Message) {
	u.mu.Lock()
	if i := u.indexOf(counterpartID); i >= 0 {
		u.chats[i].Messages = append(u.chats[i].Messages, message.Clone())
	} else {
		u.chats = append([]entity.Chat{{
			User:     entity.User{ID: counterpartID},
			Messages: []entity.Message{message.Clone()},
		}}, u.chats...)
	}
	u.mu.Unlock()
	u.notify()
}

// RemovePendingPrompt drops unanswered rating prompts from the chat.
func (u *ChatUseCase) RemovePendingPrompt(counterpartID string) {
	u.mu.Lock()
	if i := u.indexOf(counterpartID); i >= 0 {
		kept := u.chats[i].Messages[:0:0]
		for _, m := range u.chats[i].Messages {
			if !m.IsRate {
				kept = append(kept, m)
			}
		}
		u.chats[i].Messages = kept
	}
	u.mu.Unlock()
	u.notify()
}

// FetchHistory loads the chat list once per session and merges it with
// whatever the realtime channel already delivered.
func (u *ChatUseCase) FetchHistory(ctx context.Context) error {
	if !u.session.Authenticated() {
		return errors.Unauthorized("Not signed in", nil)
	}

	u.mu.RLock()
	fetched := u.fetched
	u.mu.RUnlock()
	if fetched {
		return nil
	}

	_, err, _ := u.fetch.Do("chats", func() (interface{}, error) {
		u.mu.RLock()
		gen, fetched := u.generation, u.fetched
		u.mu.RUnlock()
		if fetched {
			return nil, nil
		}

		chats, err := u.backend.ChatList(ctx)
		if err != nil {
			log.Printf("Chat Error: failed to fetch history: %v", err)
			return nil, err
		}

		u.mu.Lock()
		if gen != u.generation {
			u.mu.Unlock()
			return nil, nil
		}
		// upsert oldest first so the server's order survives the prepends
		for i := len(chats) - 1; i >= 0; i-- {
			u.upsertLocked(chats[i])
		}
		u.fetched = true
		u.mu.Unlock()

		log.Printf("Chat: merged %d chats from history", len(chats))
		u.notify()
		return nil, nil
	})
	return err
}

// Join announces the signed-in user on the realtime channel.
func (u *ChatUseCase) Join(ctx context.Context) error {
	userID := u.session.Snapshot().UserID
	if userID == "" {
		return errors.Unauthorized("Not signed in", nil)
	}
	return u.emitter.Emit(ctx, ws.EventChatJoin, ws.ChatJoinData{UserID: userID})
}

// HandleInbound applies one realtime event to the chat list.
func (u *ChatUseCase) HandleInbound(ctx context.Context, env ws.Envelope) error {
	u.observer.ObserveEvent(env.Event)

	switch env.Event {
	case ws.EventNewChat:
		var chat entity.Chat
		if err := json.Unmarshal(env.Data, &chat); err != nil {
			return errors.BadRequest("Malformed new_chat event", err)
		}
		if chat.User.ID == "" {
			return errors.BadRequest("new_chat without counterpart", nil)
		}
		userID := u.session.UserID()
		if !u.session.Authenticated() || chat.User.ID == userID {
			log.Printf("Chat: dropping new_chat with %s outside the current session", chat.User.ID)
			return nil
		}
		if !u.UpsertChat(chat) {
			log.Printf("Chat: ignoring stale chat with %s", chat.User.ID)
		}
		return nil

	case ws.EventNewMessage:
		var data ws.InboundMessageData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return errors.BadRequest("Malformed new_message event", err)
		}
		return u.applyInboundMessage(data)

	case ws.EventMessageAck:
		var data ws.MessageAckData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return errors.BadRequest("Malformed message_ack event", err)
		}
		return u.acknowledge(ctx, data)

	case ws.EventError:
		var data ws.ErrorData
		_ = json.Unmarshal(env.Data, &data)
		log.Printf("Chat Error: server reported: %s", data.Message)
		u.publisher.Publish(ws.PushNotice, map[string]string{"message": data.Message})
		return nil
	}

	log.Printf("Chat: ignoring unknown event %q", env.Event)
	return nil
}

// applyInboundMessage files the message under its counterpart. Messages
// that do not involve the signed-in user are dropped.
func (u *ChatUseCase) applyInboundMessage(data ws.InboundMessageData) error {
	if !u.session.Authenticated() {
		log.Printf("Chat: dropping new_message while signed out")
		return nil
	}
	userID := u.session.UserID()
	fromSelf := data.FromUserID == userID
	counterpartID := data.FromUserID
	if fromSelf {
		counterpartID = data.ToUserID
	} else if data.ToUserID != userID {
		log.Printf("Chat: dropping new_message from %s to %s", data.FromUserID, data.ToUserID)
		return nil
	}
	if counterpartID == "" || counterpartID == userID {
		return errors.BadRequest("new_message without counterpart", nil)
	}

	msg := entity.Message{
		ClientID:   data.ClientID,
		ReceiverID: data.ToUserID,
		SenderID:   data.FromUserID,
		IsRead:     fromSelf,
		Content:    data.Message,
		Medias:     data.Medias,
		CreatedAt:  data.CreatedAt,
		Seq:        data.Seq,
	}
	if msg.Medias == nil {
		msg.Medias = []entity.Media{}
	}

	u.mu.Lock()
	i := u.indexOf(counterpartID)
	var chat entity.Chat
	if i >= 0 {
		chat = u.chats[i]
		if j := duplicateOf(chat.Messages, msg); j >= 0 {
			if msg.Seq > 0 && chat.Messages[j].Seq == 0 {
				chat.Messages[j].Seq = msg.Seq
			}
			u.mu.Unlock()
			return nil
		}
		u.chats = append(u.chats[:i:i], u.chats[i+1:]...)
	} else {
		chat = entity.Chat{User: entity.User{ID: counterpartID}, IsSeller: data.IsSeller}
		if data.From != nil && !fromSelf {
			chat.User = *data.From
		}
	}

	chat.Messages = append(chat.Messages, msg)
	if !fromSelf {
		chat.UnreadCount++
	}
	if msg.CreatedAt.After(chat.UpdatedAt) {
		chat.UpdatedAt = msg.CreatedAt
	}
	u.chats = append([]entity.Chat{chat}, u.chats...)
	u.mu.Unlock()

	u.notify()
	return nil
}

// duplicateOf finds a message already holding msg's seq or client id.
func duplicateOf(messages []entity.Message, msg entity.Message) int {
	for j, m := range messages {
		if msg.Seq > 0 && m.Seq == msg.Seq {
			return j
		}
		if msg.ClientID != "" && m.ClientID == msg.ClientID {
			return j
		}
	}
	return -1
}

// SubmitFeedback records the buyer's review in the seller chat, clears the
// rating prompt and posts the feedback.
func (u *ChatUseCase) SubmitFeedback(ctx context.Context, sellerID string, input FeedbackInput) error {
	if sellerID == "" {
		return errors.Validation("seller is required", nil)
	}
	if err := validateInput(u.validate, input); err != nil {
		return err
	}

	u.AppendSystemMessage(sellerID, entity.Message{
		ReceiverID: u.session.Snapshot().UserID,
		SenderID:   entity.FaindiSender,
		IsFaindi:   true,
		IsRead:     true,
		Content:    fmt.Sprintf("The buyer left feedback: %d star: %s", input.Rate, input.Comment),
		Medias:     []entity.Media{},
		CreatedAt:  u.now(),
	})
	u.RemovePendingPrompt(sellerID)

	if err := u.backend.SubmitFeedback(ctx, input.ProductID, input.Rate, input.Comment); err != nil {
		log.Printf("Chat Error: feedback for %s failed: %v", input.ProductID, err)
		return err
	}
	return nil
}

func (u *ChatUseCase) Chats() []entity.Chat {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return cloneChats(u.chats, func(entity.Chat) bool { return true })
}

func (u *ChatUseCase) Chat(counterpartID string) (entity.Chat, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if i := u.indexOf(counterpartID); i >= 0 {
		return u.chats[i].Clone(), true
	}
	return entity.Chat{}, false
}

// SellerChats are chats where the counterpart sells to the user.
func (u *ChatUseCase) SellerChats() []entity.Chat {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return cloneChats(u.chats, func(c entity.Chat) bool { return c.IsSeller })
}

func (u *ChatUseCase) BuyerChats() []entity.Chat {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return cloneChats(u.chats, func(c entity.Chat) bool { return !c.IsSeller })
}

func (u *ChatUseCase) UnreadTotal() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	total := 0
	for _, c := range u.chats {
		total += c.UnreadCount
	}
	return total
}

// Reset empties the in-memory chat list. The persisted outbox is cleared
// separately by ClearOutbox.
func (u *ChatUseCase) Reset() {
	u.mu.Lock()
	u.chats = nil
	u.fetched = false
	u.generation++
	u.mu.Unlock()

	u.readMu.Lock()
	u.pendingReads = make(map[string]string)
	u.readMu.Unlock()

	u.rateLimiter.Reset()
	u.notify()
}

func (u *ChatUseCase) indexOf(counterpartID string) int {
	for i := range u.chats {
		if u.chats[i].User.ID == counterpartID {
			return i
		}
	}
	return -1
}

func (u *ChatUseCase) notify() {
	u.publisher.Publish(ws.PushChats, u.Chats())
}

func cloneChats(chats []entity.Chat, keep func(entity.Chat) bool) []entity.Chat {
	out := []entity.Chat{}
	for _, c := range chats {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	return out
}
