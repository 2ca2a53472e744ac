package config

import (
	"context"
	"os"
	"time"
)

// ReloadFunc observes each reload attempt. err is nil on success; on
// failure the holder keeps serving the previous hours.
type ReloadFunc func(cfg *HoursConfig, err error)

type hoursWatcher struct {
	path    string
	holder  *HoursHolder
	lastMod time.Time
	notify  ReloadFunc
}

// WatchHours loads path into holder, then polls the file every interval and
// swaps in a new config whenever its modification time moves forward.
func WatchHours(ctx context.Context, path string, interval time.Duration, holder *HoursHolder, notify ReloadFunc) error {
	if path == "" {
		path = "configs/hours.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	w := &hoursWatcher{path: path, holder: holder, notify: notify}
	if err := w.load(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()
	return nil
}

func (w *hoursWatcher) load() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	cfg, err := LoadHoursConfig(w.path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	w.holder.Store(cfg)
	if w.notify != nil {
		w.notify(cfg, nil)
	}
	return nil
}

// poll reloads the file if it changed and reports whether hours were swapped.
func (w *hoursWatcher) poll() bool {
	info, err := os.Stat(w.path)
	if err != nil || !info.ModTime().After(w.lastMod) {
		return false
	}
	cfg, err := LoadHoursConfig(w.path)
	// A broken file is not retried until it changes again.
	w.lastMod = info.ModTime()
	if err != nil {
		if w.notify != nil {
			w.notify(nil, err)
		}
		return false
	}
	w.holder.Store(cfg)
	if w.notify != nil {
		w.notify(cfg, nil)
	}
	return true
}
