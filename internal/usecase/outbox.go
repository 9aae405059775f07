package usecase

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"faindi/internal/domain/entity"
	"faindi/internal/domain/repository"
	"faindi/internal/infrastructure/ratelimit"
	ws "faindi/internal/infrastructure/websocket"
	"faindi/pkg/errors"
)

const chatMediaFolder = "chat"

// Send shows the message in the chat right away, persists it in the outbox,
// uploads attached media and emits it. The returned message carries the
// delivery state reached: sent when the emit succeeded, failed otherwise.
// Failed messages stay in the outbox for Retry.
func (u *ChatUseCase) Send(ctx context.Context, counterpart entity.User, content string, medias []entity.Media) (entity.Message, error) {
	userID := u.session.Snapshot().UserID
	if userID == "" {
		return entity.Message{}, errors.Unauthorized("Not signed in", nil)
	}
	if counterpart.ID == "" {
		return entity.Message{}, errors.Validation("counterpart is required", nil)
	}
	if strings.TrimSpace(content) == "" && len(medias) == 0 {
		return entity.Message{}, errors.Validation("message is empty", nil)
	}
	if allowed, wait := u.rateLimiter.Allow(counterpart.ID, ratelimit.ActionSendMessage); !allowed {
		return entity.Message{}, errors.TooManyRequests("Sending too fast, try again in " + wait.Round(time.Second).String())
	}

	msg := entity.Message{
		ClientID:   u.newID(),
		ReceiverID: counterpart.ID,
		SenderID:   userID,
		IsRead:     true,
		Content:    content,
		Medias:     append([]entity.Media{}, medias...),
		CreatedAt:  u.now(),
		Delivery:   entity.DeliveryPending,
	}

	u.insertLocal(counterpart, msg)
	u.observer.ObserveOutbox(string(entity.DeliveryPending))

	entry := &repository.OutboxEntry{Message: msg, LocalMedias: append([]entity.Media{}, medias...)}
	if err := u.outbox.Save(ctx, entry); err != nil {
		log.Printf("Chat Error: outbox save for %s failed: %v", msg.ClientID, err)
	}

	u.resolveMedias(ctx, entry)
	return u.deliver(ctx, entry), nil
}

// Retry resends a failed outbox message. Retries are throttled per
// counterpart.
func (u *ChatUseCase) Retry(ctx context.Context, clientID string) (entity.Message, error) {
	if !u.claim(clientID) {
		return entity.Message{}, errors.Conflict("message is already being resent")
	}
	defer u.release(clientID)

	entry, err := u.outbox.GetByClientID(ctx, clientID)
	if err != nil {
		return entity.Message{}, err
	}
	if entry.Message.Delivery != entity.DeliveryFailed {
		return entity.Message{}, errors.BadRequest("Only failed messages can be retried", nil)
	}
	if allowed, wait := u.rateLimiter.Allow(entry.Message.ReceiverID, ratelimit.ActionRetryMessage); !allowed {
		return entity.Message{}, errors.TooManyRequests("Too many retries, try again in " + wait.Round(time.Second).String())
	}

	u.resolveMedias(ctx, entry)
	return u.deliver(ctx, entry), nil
}

// RetryFailed resends every failed outbox message that the rate limiter
// lets through and returns how many went out.
func (u *ChatUseCase) RetryFailed(ctx context.Context) (int, error) {
	entries, err := u.outbox.ListByDelivery(ctx, entity.DeliveryFailed)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, listed := range entries {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if u.retryOne(ctx, listed.Message.ClientID) {
			sent++
		}
	}
	return sent, nil
}

// retryOne resends clientID if nobody else is and it is still failed.
func (u *ChatUseCase) retryOne(ctx context.Context, clientID string) bool {
	if !u.claim(clientID) {
		return false
	}
	defer u.release(clientID)

	entry, err := u.outbox.GetByClientID(ctx, clientID)
	if err != nil || entry.Message.Delivery != entity.DeliveryFailed {
		return false
	}
	if allowed, _ := u.rateLimiter.Allow(entry.Message.ReceiverID, ratelimit.ActionRetryMessage); !allowed {
		return false
	}
	u.resolveMedias(ctx, entry)
	return u.deliver(ctx, entry).Delivery == entity.DeliverySent
}

func (u *ChatUseCase) claim(clientID string) bool {
	u.inflightMu.Lock()
	defer u.inflightMu.Unlock()
	if _, busy := u.inflight[clientID]; busy {
		return false
	}
	u.inflight[clientID] = struct{}{}
	return true
}

func (u *ChatUseCase) release(clientID string) {
	u.inflightMu.Lock()
	delete(u.inflight, clientID)
	u.inflightMu.Unlock()
}

// Outbox lists persisted messages in the given delivery state.
func (u *ChatUseCase) Outbox(ctx context.Context, delivery entity.Delivery) ([]*repository.OutboxEntry, error) {
	return u.outbox.ListByDelivery(ctx, delivery)
}

func (u *ChatUseCase) ClearOutbox(ctx context.Context) error {
	return u.outbox.Clear(ctx)
}

// resolveMedias uploads entry.LocalMedias in parallel. Media that fail to
// upload are dropped with a notice; the rest of the message still goes out.
func (u *ChatUseCase) resolveMedias(ctx context.Context, entry *repository.OutboxEntry) {
	if len(entry.LocalMedias) == 0 {
		return
	}

	resolved := make([]*entity.Media, len(entry.LocalMedias))
	var (
		g        errgroup.Group
		mu       sync.Mutex
		failures int
	)
	for i, media := range entry.LocalMedias {
		i, media := i, media
		g.Go(func() error {
			uri, err := u.uploader.Upload(ctx, chatMediaFolder, media.URI)
			if err == nil && !strings.HasPrefix(uri, "http") {
				err = errors.UploadFailed("Upload did not return a URL", nil)
			}
			if err != nil {
				log.Printf("Chat Error: media upload for %s failed: %v", entry.Message.ClientID, err)
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}
			resolved[i] = &entity.Media{Type: media.Type, URI: uri}
			return nil
		})
	}
	_ = g.Wait()

	medias := []entity.Media{}
	for _, m := range resolved {
		if m != nil {
			medias = append(medias, *m)
		}
	}
	entry.Message.Medias = medias
	entry.LocalMedias = nil
	if err := u.outbox.Save(ctx, entry); err != nil {
		log.Printf("Chat Error: outbox save for %s failed: %v", entry.Message.ClientID, err)
	}

	if failures > 0 {
		u.publisher.Publish(ws.PushNotice, map[string]interface{}{
			"message":   "Some attachments could not be uploaded and were not sent",
			"client_id": entry.Message.ClientID,
			"failed":    failures,
		})
	}
	u.updateLocal(entry.Message.ReceiverID, entry.Message.ClientID, func(m *entity.Message) {
		m.Medias = append([]entity.Media{}, medias...)
	})
}

// deliver emits the entry and records the resulting delivery state.
func (u *ChatUseCase) deliver(ctx context.Context, entry *repository.OutboxEntry) entity.Message {
	msg := entry.Message
	entry.Attempts++

	var emitErr error
	if strings.TrimSpace(msg.Content) == "" && len(msg.Medias) == 0 {
		emitErr = errors.UploadFailed("Nothing left to send", nil)
	} else {
		emitErr = u.emitter.Emit(ctx, ws.EventMessage, ws.OutboundMessageData{
			ClientID:   msg.ClientID,
			ToUserID:   msg.ReceiverID,
			FromUserID: msg.SenderID,
			Message:    msg.Content,
			Medias:     msg.Medias,
			CreatedAt:  msg.CreatedAt,
		})
	}

	if emitErr != nil {
		log.Printf("Chat Error: message %s to %s not sent: %v", msg.ClientID, msg.ReceiverID, emitErr)
		msg.Delivery = entity.DeliveryFailed
		entry.LastError = emitErr.Error()
	} else {
		msg.Delivery = entity.DeliverySent
		entry.LastError = ""
	}
	entry.Message = msg

	// a NOT_FOUND here means the ack already arrived and removed the entry
	if err := u.outbox.UpdateDelivery(ctx, msg.ClientID, msg.Delivery, entry.Attempts, entry.LastError); err != nil && !errors.Is(err, "NOT_FOUND") {
		log.Printf("Chat Error: outbox update for %s failed: %v", msg.ClientID, err)
	}
	u.updateLocal(msg.ReceiverID, msg.ClientID, func(m *entity.Message) {
		if m.Delivery != entity.DeliveryDelivered {
			m.Delivery = msg.Delivery
		}
	})
	u.observer.ObserveOutbox(string(msg.Delivery))
	u.publisher.Publish(ws.PushOutbox, msg)
	return msg
}

// acknowledge marks the outbox message delivered and drops it from the
// outbox store.
func (u *ChatUseCase) acknowledge(ctx context.Context, ack ws.MessageAckData) error {
	if ack.ClientID == "" {
		return errors.BadRequest("message_ack without client_id", nil)
	}

	entry, err := u.outbox.GetByClientID(ctx, ack.ClientID)
	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			log.Printf("Chat: ack for unknown message %s", ack.ClientID)
			return nil
		}
		return err
	}

	msg := entry.Message
	msg.Delivery = entity.DeliveryDelivered
	if ack.Seq > 0 {
		msg.Seq = ack.Seq
	}
	if !ack.CreatedAt.IsZero() {
		msg.CreatedAt = ack.CreatedAt
	}

	u.updateLocal(msg.ReceiverID, msg.ClientID, func(m *entity.Message) {
		m.Delivery = msg.Delivery
		m.Seq = msg.Seq
		m.CreatedAt = msg.CreatedAt
	})
	if err := u.outbox.Delete(ctx, ack.ClientID); err != nil {
		log.Printf("Chat Error: outbox delete for %s failed: %v", ack.ClientID, err)
	}

	u.observer.ObserveOutbox(string(entity.DeliveryDelivered))
	u.publisher.Publish(ws.PushOutbox, msg)
	return nil
}

// insertLocal appends a locally composed message and moves the chat first.
// UpdatedAt is left alone; it only ever holds server time.
func (u *ChatUseCase) insertLocal(counterpart entity.User, msg entity.Message) {
	u.mu.Lock()
	var chat entity.Chat
	if i := u.indexOf(counterpart.ID); i >= 0 {
		chat = u.chats[i]
		u.chats = append(u.chats[:i:i], u.chats[i+1:]...)
	} else {
		chat = entity.Chat{User: counterpart}
	}
	chat.Messages = append(chat.Messages, msg.Clone())
	u.chats = append([]entity.Chat{chat}, u.chats...)
	u.mu.Unlock()
	u.notify()
}

func (u *ChatUseCase) updateLocal(counterpartID, clientID string, fn func(m *entity.Message)) {
	u.mu.Lock()
	if i := u.indexOf(counterpartID); i >= 0 {
		msgs := u.chats[i].Messages
		for j := range msgs {
			if msgs[j].ClientID == clientID {
				fn(&msgs[j])
				break
			}
		}
	}
	u.mu.Unlock()
	u.notify()
}
