// Package outbox holds the replies the bot has produced for each chat user
// until the transport collects them.
package outbox

import (
	"context"
	"sync"
	"time"
)

// Message is one reply to a user. ImagePath is set for image replies.
type Message struct {
	Text      string    `json:"text,omitempty"`
	ImagePath string    `json:"image_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Text builds a plain text message
func Text(s string) Message {
	return Message{Text: s, CreatedAt: time.Now().UTC()}
}

// Image builds an image message
func Image(path string) Message {
	return Message{ImagePath: path, CreatedAt: time.Now().UTC()}
}

// Outbox is a per-user FIFO mailbox
type Outbox interface {
	Push(ctx context.Context, userID int64, msg Message) error
	// Drain returns and removes every pending message for userID, oldest first
	Drain(ctx context.Context, userID int64) ([]Message, error)
}

type memoryOutbox struct {
	mu    sync.Mutex
	boxes map[int64][]Message
}

// NewMemory creates an in-process Outbox
func NewMemory() Outbox {
	return &memoryOutbox{boxes: make(map[int64][]Message)}
}

func (o *memoryOutbox) Push(ctx context.Context, userID int64, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.boxes[userID] = append(o.boxes[userID], msg)
	return nil
}

func (o *memoryOutbox) Drain(ctx context.Context, userID int64) ([]Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	msgs := o.boxes[userID]
	delete(o.boxes, userID)
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}
