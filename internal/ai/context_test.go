package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationsTrimsWholeExchanges(t *testing.T) {
	c := NewConversations(4, 0)
	now := time.Now()

	c.Record("u1", now, "q1", "a1")
	c.Record("u1", now, "q2", "a2")
	c.Record("u1", now, "q3", "a3")

	got := c.History("u1", now)
	require.Len(t, got, 4)
	assert.Equal(t, Message{Role: RoleUser, Content: "q2"}, got[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "a3"}, got[3])
}

func TestConversationsAreIsolatedPerUser(t *testing.T) {
	c := NewConversations(10, 0)
	now := time.Now()

	c.Record("u1", now, "q", "a")

	assert.Empty(t, c.History("u2", now))
	assert.Equal(t, 1, c.Len())

	c.Reset("u1")
	assert.Empty(t, c.History("u1", now))
}

func TestConversationsExpireWhenIdle(t *testing.T) {
	c := NewConversations(10, time.Hour)
	now := time.Now()

	c.Record("u1", now, "q", "a")
	assert.Len(t, c.History("u1", now.Add(59*time.Minute)), 2)
	assert.Empty(t, c.History("u1", now.Add(2*time.Hour)))
	assert.Equal(t, 0, c.Len())
}
