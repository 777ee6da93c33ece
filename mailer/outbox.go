package mailer

import (
	"context"
	"sync"
)

// Outbox keeps messages in memory. Err, when set, is returned from every Send.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.messages = append(o.messages, msg)
	return nil
}

func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}

func (o *Outbox) Last() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.messages) == 0 {
		return Message{}, false
	}
	return o.messages[len(o.messages)-1], true
}
