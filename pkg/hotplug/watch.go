package hotplug

import (
	"context"
	"path/filepath"
)

// Source produces device events. *Monitor satisfies it.
type Source interface {
	Run(ctx context.Context, events chan<- Event) error
}

// WatchRemoval calls onRemove once when the device node at path is removed,
// then returns. It returns early with the source error or ctx.Err().
func WatchRemoval(ctx context.Context, src Source, path string, onRemove func(Event)) error {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan Event, 8)
	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(ctx, events) }()

	for ev := range events {
		if ev.RemovalOf(path) {
			onRemove(ev)
			cancel()
			for range events {
			}
			return nil
		}
	}
	return <-errCh
}
