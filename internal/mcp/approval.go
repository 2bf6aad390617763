package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"sldpreview/internal/storage"
)

// EventEmitter allows the approval queue to notify the frontend.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Approval events.
const (
	EventApprovalRequired  = "mcp:approval-required"
	EventApprovalDismissed = "mcp:approval-dismissed"
)

// PendingAction represents a destructive operation awaiting user approval.
type PendingAction struct {
	ID          string `json:"id"`
	Tool        string `json:"tool"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	Metadata    string `json:"metadata"`
}

// ApprovalBackend persists approvals across processes.
type ApprovalBackend interface {
	Create(id, tool, description, metadata string) error
	Status(id string) (string, error)
	Delete(id string) error
}

// ErrRejected is returned when the user declines an action.
var ErrRejected = errors.New("action rejected by user")

// ApprovalQueue manages human-in-the-loop approval for destructive MCP tool
// calls. In the desktop app pending actions are answered over channels; a
// standalone server writes them to the shared database and polls.
type ApprovalQueue struct {
	mu       sync.Mutex
	pending  map[string]chan bool
	ctx      context.Context
	emitter  EventEmitter
	timeout  time.Duration
	interval time.Duration
	backend  ApprovalBackend
}

func NewApprovalQueue(ctx context.Context, emitter EventEmitter) *ApprovalQueue {
	return &ApprovalQueue{
		pending:  make(map[string]chan bool),
		ctx:      ctx,
		emitter:  emitter,
		timeout:  120 * time.Second,
		interval: 500 * time.Millisecond,
	}
}

// SetBackend enables database approval for a standalone server.
func (q *ApprovalQueue) SetBackend(b ApprovalBackend) {
	q.backend = b
}

// SetTimeout changes how long a request waits for an answer.
func (q *ApprovalQueue) SetTimeout(d time.Duration) {
	q.timeout = d
}

// Request blocks until the action is approved, rejected or times out.
// metadata is optional JSON with extra context.
func (q *ApprovalQueue) Request(tool, description string, metadata ...string) (bool, error) {
	id := uuid.New().String()
	meta := "{}"
	if len(metadata) > 0 && metadata[0] != "" {
		meta = metadata[0]
	}
	log.Info().Str("tool", tool).Str("id", id).Msg("approval requested")

	if q.backend != nil {
		return q.requestViaBackend(id, tool, description, meta)
	}
	return q.requestViaChannel(id, tool, description, meta)
}

func (q *ApprovalQueue) requestViaBackend(id, tool, description, metadata string) (bool, error) {
	if err := q.backend.Create(id, tool, description, metadata); err != nil {
		return false, err
	}
	defer q.backend.Delete(id)

	deadline := time.NewTimer(q.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status, err := q.backend.Status(id)
			if err != nil {
				continue
			}
			switch status {
			case storage.ApprovalApproved:
				return true, nil
			case storage.ApprovalRejected:
				return false, fmt.Errorf("%w: %s", ErrRejected, tool)
			}
		case <-deadline.C:
			return false, fmt.Errorf("action timed out after %s: %s", q.timeout, tool)
		case <-q.ctx.Done():
			return false, q.ctx.Err()
		}
	}
}

func (q *ApprovalQueue) requestViaChannel(id, tool, description, metadata string) (bool, error) {
	ch := make(chan bool, 1)

	q.mu.Lock()
	q.pending[id] = ch
	q.mu.Unlock()
	defer q.cleanup(id)

	q.emitter.Emit(q.ctx, EventApprovalRequired, PendingAction{
		ID:          id,
		Tool:        tool,
		Description: description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Metadata:    metadata,
	})

	select {
	case approved := <-ch:
		if !approved {
			return false, fmt.Errorf("%w: %s", ErrRejected, tool)
		}
		return true, nil
	case <-time.After(q.timeout):
		q.emitter.Emit(q.ctx, EventApprovalDismissed, map[string]string{"id": id})
		return false, fmt.Errorf("action timed out after %s: %s", q.timeout, tool)
	case <-q.ctx.Done():
		return false, q.ctx.Err()
	}
}

// Approve marks a pending in-process action as approved.
func (q *ApprovalQueue) Approve(actionID string) {
	q.resolve(actionID, true)
}

// Reject marks a pending in-process action as rejected.
func (q *ApprovalQueue) Reject(actionID string) {
	q.resolve(actionID, false)
}

func (q *ApprovalQueue) resolve(actionID string, approved bool) {
	q.mu.Lock()
	ch, ok := q.pending[actionID]
	q.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- approved:
	default:
	}
}

func (q *ApprovalQueue) cleanup(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}
