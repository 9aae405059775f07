package entity

import "time"

type Chat struct {
	User        User      `json:"user"`
	Messages    []Message `json:"messages"`
	UpdatedAt   time.Time `json:"updated_at"`
	UnreadCount int       `json:"unread_count"`
	IsSeller    bool      `json:"is_seller"`
}

func (c Chat) Clone() Chat {
	msgs := make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		msgs[i] = m.Clone()
	}
	c.Messages = msgs
	return c
}

// LastMessage returns the newest message by append order.
func (c Chat) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}
