package usecase

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"penny/internal/domain"
)

// Conversation is the mutable state of one turn: the message transcript,
// the log of queries actually executed, and the step-budget flag. It is
// created fresh per conversation and threaded explicitly through the loop;
// nothing about it is process-global.
type Conversation struct {
	mu              sync.RWMutex
	ID              string
	msgs            []domain.Message
	executedQueries []string
	budgetExceeded  bool
	createdAt       time.Time
	updatedAt       time.Time
}

// NewConversation creates an empty conversation with a generated ULID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        NewID(now),
		msgs:      make([]domain.Message, 0),
		createdAt: now,
		updatedAt: now,
	}
}

// idEntropy is shared by every NewID call. Monotonic entropy increments
// within a millisecond, so IDs minted at the same instant stay distinct;
// the mutex is required because MonotonicEntropy is not safe for
// concurrent readers.
var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewID generates a ULID for conversations, messages, and tool invocations.
// Concurrent calls with equal timestamps return distinct IDs; the transcript
// merges by ID, so a collision would silently replace an earlier message.
func NewID(t time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), idEntropy).String()
}

// ApplyMessage merges a message into the transcript by ID: a message whose
// ID is already present replaces that entry in place (transcript length
// unchanged), a new ID appends. Messages arriving without an ID get one.
func (c *Conversation) ApplyMessage(msg domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergeLocked(msg)
	c.updatedAt = time.Now()
}

func (c *Conversation) mergeLocked(msg domain.Message) {
	if msg.ID == "" {
		msg.ID = NewID(time.Now())
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	for i := range c.msgs {
		if c.msgs[i].ID == msg.ID {
			c.msgs[i] = msg
			return
		}
	}
	c.msgs = append(c.msgs, msg)
}

// Apply folds a tool-produced state update into the conversation. The
// transcript entries and the query-history entries land under one lock
// acquisition, so a reader never observes a tool result without its
// query-history entry or vice versa.
func (c *Conversation) Apply(update domain.StateUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, msg := range update.Messages {
		c.mergeLocked(msg)
	}
	c.executedQueries = append(c.executedQueries, update.ExecutedQueries...)
	c.updatedAt = time.Now()
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make([]domain.Message, len(c.msgs))
	copy(cp, c.msgs)
	return cp
}

// ExecutedQueries returns a copy of the query-history log, in execution
// order.
func (c *Conversation) ExecutedQueries() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make([]string, len(c.executedQueries))
	copy(cp, c.executedQueries)
	return cp
}

// FinalMessage returns the last transcript entry, or a zero Message for an
// empty conversation.
func (c *Conversation) FinalMessage() domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.msgs) == 0 {
		return domain.Message{}
	}
	return c.msgs[len(c.msgs)-1]
}

// Len returns the transcript length.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.msgs)
}

// MarkBudgetExceeded latches the step-budget flag. It never resets within a
// turn; once set, the loop must not dispatch another tool.
func (c *Conversation) MarkBudgetExceeded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.budgetExceeded = true
	c.updatedAt = time.Now()
}

// BudgetExceeded reports whether the step budget ran out this turn.
func (c *Conversation) BudgetExceeded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.budgetExceeded
}

// Reset clears the transcript, query log, and budget flag so the
// conversation can host a fresh exchange (the chat surface's /clear).
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = c.msgs[:0]
	c.executedQueries = c.executedQueries[:0]
	c.budgetExceeded = false
	c.updatedAt = time.Now()
}
