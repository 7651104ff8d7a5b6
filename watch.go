// Copyright 2024 The Kbuildplus Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kbuild

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
)

// watch.go supplements the driver with an optional re-evaluation loop:
// whenever a watched Kbuild/Makefile changes, the whole set of roots is
// re-run through a fresh Driver. Each re-run gets its own fresh
// Algebra/Store/Expander per directory exactly like a one-shot Run (5.
// CONCURRENCY & RESOURCE MODEL still holds per evaluation pass); only the
// trigger is new.

// Watcher re-evaluates roots through newDriver whenever one of the
// makefiles under them changes on disk.
type Watcher struct {
	roots     []string
	newDriver func() *Driver
	debounce  time.Duration
	onResult  func(*Results)
}

// NewWatcher builds a watcher over roots. newDriver is called once per
// evaluation pass so every pass gets a fresh Results aggregate and fresh
// per-directory state; onResult receives each pass's Results.
func NewWatcher(roots []string, newDriver func() *Driver, onResult func(*Results)) *Watcher {
	return &Watcher{roots: roots, newDriver: newDriver, debounce: 200 * time.Millisecond, onResult: onResult}
}

// Run evaluates roots once, then blocks watching for makefile changes and
// re-evaluating on each one, until stop is closed.
func (w *Watcher) Run(stop <-chan struct{}) error {
	if err := w.evalOnce(); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	for _, root := range w.roots {
		dir := root
		if abs, absErr := filepath.Abs(root); absErr == nil {
			dir = abs
		}
		if err := addWatchTree(fw, dir); err != nil {
			glog.Warningf("watch: %s: %v", dir, err)
		}
	}

	var timer *time.Timer
	pending := false
	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isMakefileEvent(ev) {
				continue
			}
			pending = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				if pending {
					pending = false
					if err := w.evalOnce(); err != nil {
						glog.Errorf("watch: re-evaluation failed: %v", err)
					}
				}
			})
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			glog.Warningf("watch: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) evalOnce() error {
	d := w.newDriver()
	if err := d.Run(w.roots); err != nil {
		return err
	}
	if w.onResult != nil {
		w.onResult(d.Results())
	}
	return nil
}

func isMakefileEvent(ev fsnotify.Event) bool {
	base := filepath.Base(ev.Name)
	return base == "Kbuild" || base == "Makefile" || filepath.Ext(base) == ".mk"
}

// addWatchTree adds fsnotify watches for dir and every subdirectory
// beneath it (fsnotify does not watch recursively on its own).
func addWatchTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if addErr := fw.Add(path); addErr != nil {
				glog.Warningf("watch: failed to add %s: %v", path, addErr)
			}
		}
		return nil
	})
}
