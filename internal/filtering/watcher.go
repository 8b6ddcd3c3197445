package filtering

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/crynn/crynn/internal/logging"
)

// DefaultWatchDebounce collapses editor write bursts into one recompile.
const DefaultWatchDebounce = 500 * time.Millisecond

// Watcher recompiles the engine's ruleset when local rule files change on
// disk. Parent directories are watched so atomic save-and-rename editors are
// seen too.
type Watcher struct {
	engine   *Engine
	files    map[string]struct{}
	fw       *fsnotify.Watcher
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// WatchRuleFiles starts watching the given rule files.
func WatchRuleFiles(ctx context.Context, engine *Engine, files []string, debounce time.Duration) (*Watcher, error) {
	log := logging.FromContext(ctx)

	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		engine:   engine,
		files:    make(map[string]struct{}, len(files)),
		fw:       fw,
		debounce: debounce,
		done:     make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("failed to watch rule directory")
		}
	}

	go w.run(ctx)
	log.Debug().Int("files", len(w.files)).Msg("rule file watcher started")
	return w, nil
}

func (w *Watcher) run(ctx context.Context) {
	log := logging.FromContext(ctx)

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, watched := w.files[abs]; !watched {
				continue
			}
			log.Debug().Str("file", abs).Str("op", ev.Op.String()).Msg("rule file changed")
			w.schedule(ctx)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("rule file watcher error")
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.recompile(ctx) })
}

func (w *Watcher) recompile(ctx context.Context) {
	log := logging.FromContext(ctx)

	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	sources, err := ReadSources(ctx, files)
	if err != nil || len(sources) == 0 {
		log.Warn().Err(err).Msg("no readable rule sources after change")
		return
	}
	if _, err := w.engine.Compile(ctx, sources...); err != nil {
		log.Warn().Err(err).Msg("recompile after rule change failed")
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	return w.fw.Close()
}

// ReadSources reads rule files, skipping missing ones.
// Returns an error only when every file failed to read.
func ReadSources(ctx context.Context, files []string) ([][]byte, error) {
	log := logging.FromContext(ctx)

	var sources [][]byte
	var lastErr error
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Warn().Err(err).Str("file", f).Msg("skipping unreadable rule file")
			lastErr = err
			continue
		}
		sources = append(sources, data)
	}
	if len(sources) == 0 {
		return nil, lastErr
	}
	return sources, nil
}
