package queue

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Wait blocks until the queue holds at least one request or ctx is done.
// Writes to the queue file wake it early; poll bounds the wait when file
// events are unavailable or missed.
func (q *Queue) Wait(ctx context.Context, poll time.Duration) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := q.watch(watchCtx)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		n, err := q.Len(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-events:
		}
	}
}

// watch returns a channel which receives after every change of the queue
// file. It returns nil, which blocks forever, when no watcher can be set up.
func (q *Queue) watch(ctx context.Context) <-chan struct{} {
	dir := filepath.Dir(q.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		q.logger.Debug().Err(err).Msg("Queue directory unavailable, polling only")
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		q.logger.Debug().Err(err).Msg("File watcher unavailable, polling only")
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		q.logger.Debug().Err(err).Str("dir", dir).Msg("Failed to watch queue directory, polling only")
		return nil
	}

	changed := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != q.path {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case changed <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				q.logger.Debug().Err(err).Msg("Queue watcher error")
			}
		}
	}()
	return changed
}
