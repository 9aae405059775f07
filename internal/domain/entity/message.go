package entity

import "time"

// Delivery is the outbox state of a locally composed message.
type Delivery string

const (
	DeliveryPending   Delivery = "pending"
	DeliverySent      Delivery = "sent"
	DeliveryDelivered Delivery = "delivered"
	DeliveryFailed    Delivery = "failed"
)

// FaindiSender is the sender id used for client-side system messages.
const FaindiSender = "Faindi"

type Message struct {
	ClientID   string    `json:"client_id,omitempty"`
	ReceiverID string    `json:"receiver_id"`
	SenderID   string    `json:"sender_id"`
	IsFaindi   bool      `json:"is_faindi"`
	IsRate     bool      `json:"is_rate,omitempty"`
	ProductID  string    `json:"product_id,omitempty"`
	IsRead     bool      `json:"is_read"`
	Content    string    `json:"content"`
	Medias     []Media   `json:"medias"`
	CreatedAt  time.Time `json:"created_at"`
	Seq        int64     `json:"seq,omitempty"`
	Delivery   Delivery  `json:"delivery,omitempty"`
}

func (m Message) Clone() Message {
	m.Medias = append([]Media(nil), m.Medias...)
	return m
}

// RatePrompt is the system message asking the buyer to review a product
// after delivery confirmation.
func RatePrompt(receiverID, productID string, now time.Time) Message {
	return Message{
		ReceiverID: receiverID,
		SenderID:   FaindiSender,
		IsFaindi:   true,
		IsRate:     true,
		ProductID:  productID,
		IsRead:     true,
		Content:    "Make your Review",
		Medias:     []Media{},
		CreatedAt:  now,
	}
}
