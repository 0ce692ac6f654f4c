package app

import (
	"context"
	"time"

	"github.com/Leryan/flobot/pkg/logx"
)

const (
	tempoSnapshot = "tempo.triggers"
	tempoIOBudget = 5 * time.Second
)

// restoreTempo reloads the trigger repeat windows saved by the last run.
func (a *App) restoreTempo(ctx context.Context) {
	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, tempoIOBudget)
	defer cancel()
	data, ok, err := a.store.GetSnapshot(ctx, tempoSnapshot)
	if err != nil {
		a.log.Warn("tempo restore failed", logx.Err(err))
		return
	}
	if !ok {
		return
	}
	if err := a.tempo.Load(data); err != nil {
		a.log.Warn("tempo snapshot unreadable", logx.Err(err))
		return
	}
	a.log.Debug("tempo restored", logx.Int("keys", a.tempo.Len()))
}

func (a *App) persistTempo() {
	if a.store == nil {
		return
	}
	data, err := a.tempo.Dump()
	if err != nil {
		a.log.Warn("tempo dump failed", logx.Err(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), tempoIOBudget)
	defer cancel()
	if err := a.store.PutSnapshot(ctx, tempoSnapshot, data); err != nil {
		a.log.Warn("tempo persist failed", logx.Err(err))
	}
}
