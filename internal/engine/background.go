package engine

import (
	"context"
	"time"

	"github.com/ggonzalez94/wallet-cli/internal/model"
)

// StartBackgroundSync periodically syncs every account. Accounts busy with a
// user operation are skipped for that round.
func (m *Manager) StartBackgroundSync(interval time.Duration) {
	m.StopBackgroundSync()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.stopSync = cancel
	m.syncDone = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.syncRound(ctx)
			}
		}
	}()
	m.log.Debug("background sync started", "interval", interval.String())
}

func (m *Manager) syncRound(ctx context.Context) {
	m.mu.RLock()
	accounts := append([]*Account(nil), m.accounts...)
	m.mu.RUnlock()
	for _, a := range accounts {
		if ctx.Err() != nil {
			return
		}
		if !a.opMu.TryLock() {
			continue
		}
		_, err := a.syncLocked(ctx, model.SyncOptions{})
		a.opMu.Unlock()
		if err != nil && ctx.Err() == nil {
			m.log.Warn("background sync failed", "account", a.Alias(), "err", err)
		}
	}
}

// StopBackgroundSync stops the sync goroutine and waits for it to exit.
func (m *Manager) StopBackgroundSync() {
	m.mu.Lock()
	cancel, done := m.stopSync, m.syncDone
	m.stopSync, m.syncDone = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
