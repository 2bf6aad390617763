package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	mcpserver "sldpreview/internal/mcp"
	"sldpreview/internal/service"
	"sldpreview/internal/storage"
)

// approvalWatcher polls the database for approvals queued by a standalone
// MCP process and forwards each one to the frontend exactly once.
type approvalWatcher struct {
	ctx      context.Context
	store    *storage.ApprovalStore
	emitter  service.EventEmitter
	interval time.Duration

	mu      sync.Mutex
	emitted map[string]bool
	stopCh  chan struct{}
	stopped sync.Once
}

func newApprovalWatcher(ctx context.Context, store *storage.ApprovalStore, emitter service.EventEmitter) *approvalWatcher {
	return &approvalWatcher{
		ctx:      ctx,
		store:    store,
		emitter:  emitter,
		interval: 2 * time.Second,
		emitted:  map[string]bool{},
		stopCh:   make(chan struct{}),
	}
}

// Start begins the polling loop. Should be called once on app startup.
func (w *approvalWatcher) Start() {
	go w.pollLoop()
}

// Stop terminates the polling loop.
func (w *approvalWatcher) Stop() {
	w.stopped.Do(func() { close(w.stopCh) })
}

func (w *approvalWatcher) pollLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check()
		case <-w.stopCh:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *approvalWatcher) check() {
	pending, err := w.store.ListPending()
	if err != nil {
		log.Debug().Err(err).Msg("list pending approvals")
		return
	}

	live := make(map[string]bool, len(pending))
	var fresh []storage.Approval
	w.mu.Lock()
	for _, p := range pending {
		live[p.ID] = true
		if !w.emitted[p.ID] {
			w.emitted[p.ID] = true
			fresh = append(fresh, p)
		}
	}
	// The standalone process deletes approvals once it has read the answer
	for id := range w.emitted {
		if !live[id] {
			delete(w.emitted, id)
		}
	}
	w.mu.Unlock()

	for _, p := range fresh {
		w.emitter.Emit(w.ctx, mcpserver.EventApprovalRequired, mcpserver.PendingAction{
			ID:          p.ID,
			Tool:        p.Tool,
			Description: p.Description,
			CreatedAt:   p.CreatedAt,
			Metadata:    p.Metadata,
		})
	}
}

// ── Bindings ───────────────────────────────────────────────

// ListPendingApprovals returns the approvals a standalone MCP server is
// waiting on.
func (a *App) ListPendingApprovals() ([]storage.Approval, error) {
	return a.approvals.ListPending()
}

// ApproveAction approves a pending MCP action.
func (a *App) ApproveAction(id string) error {
	return a.approvals.Resolve(id, true)
}

// RejectAction rejects a pending MCP action.
func (a *App) RejectAction(id string) error {
	return a.approvals.Resolve(id, false)
}
