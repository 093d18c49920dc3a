package ai

import (
	"sync"
	"time"
)

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

type conversation struct {
	messages []Message
	lastSeen time.Time
}

// Conversations keeps a short freeform history per user. A history that
// has been idle longer than idle is discarded on next use.
type Conversations struct {
	mu          sync.Mutex
	byUser      map[string]*conversation
	maxMessages int
	idle        time.Duration
}

// NewConversations creates a history store holding at most maxMessages
// per user.
func NewConversations(maxMessages int, idle time.Duration) *Conversations {
	if maxMessages < 2 {
		maxMessages = 2
	}
	return &Conversations{
		byUser:      make(map[string]*conversation),
		maxMessages: maxMessages,
		idle:        idle,
	}
}

// History returns a copy of the user's messages as of now.
func (c *Conversations) History(userID string, now time.Time) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv := c.live(userID, now)
	if conv == nil {
		return nil
	}
	out := make([]Message, len(conv.messages))
	copy(out, conv.messages)
	return out
}

// Record appends one completed exchange. The oldest exchanges are dropped
// so that the history stays within maxMessages and starts with a user turn.
func (c *Conversations) Record(userID string, now time.Time, question, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv := c.live(userID, now)
	if conv == nil {
		conv = &conversation{}
		c.byUser[userID] = conv
	}
	conv.messages = append(conv.messages,
		Message{Role: RoleUser, Content: question},
		Message{Role: RoleAssistant, Content: answer},
	)
	for len(conv.messages) > c.maxMessages {
		conv.messages = conv.messages[2:]
	}
	conv.lastSeen = now
}

// Reset forgets the user's history.
func (c *Conversations) Reset(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.byUser, userID)
}

// Len returns the number of users with a history.
func (c *Conversations) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.byUser)
}

// live returns the user's conversation, dropping it when idle. Callers
// hold c.mu.
func (c *Conversations) live(userID string, now time.Time) *conversation {
	conv, ok := c.byUser[userID]
	if !ok {
		return nil
	}
	if c.idle > 0 && now.Sub(conv.lastSeen) > c.idle {
		delete(c.byUser, userID)
		return nil
	}
	return conv
}
