// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package erpclient

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ErrNoBundle is returned by [Client.Watch] when the policy names no CA bundle.
var ErrNoBundle = errors.New("erpclient: no CA bundle to watch")

type watcher struct {
	fs   *fsnotify.Watcher
	path string
	done chan struct{}
}

// Watch starts observing the policy's CA bundle. Any change to the file
// invalidates the kept HTTP clients. Calling Watch again replaces the
// previous watcher.
//
// The containing directory is watched because bundle updates replace the
// file by rename.
func (c *Client) Watch() error {
	path := c.ssl.Policy().CABundlePath
	if path == "" {
		return ErrNoBundle
	}
	return c.WatchPath(path)
}

// WatchPath is like [Client.Watch] for an explicit path.
func (c *Client) WatchPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("erpclient: resolve %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("erpclient: failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return fmt.Errorf("erpclient: failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &watcher{fs: fsw, path: abs, done: make(chan struct{})}
	go c.loop(w)

	c.mu.Lock()
	prev := c.watch
	c.watch = w
	c.mu.Unlock()

	if prev != nil {
		prev.stop()
	}
	c.log.Debugf("erpclient: watching CA bundle %s", abs)
	return nil
}

func (c *Client) loop(w *watcher) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				c.log.Infof("erpclient: CA bundle %s changed (%s)", w.path, event.Op)
				c.Invalidate()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			c.log.Warnf("erpclient: watcher error: %v", err)
		}
	}
}

func (w *watcher) stop() error {
	err := w.fs.Close()
	<-w.done
	return err
}

// Close stops the CA bundle watcher, if any, and drops the kept clients.
func (c *Client) Close() error {
	c.mu.Lock()
	w := c.watch
	c.watch = nil
	c.mu.Unlock()

	var err error
	if w != nil {
		err = w.stop()
	}
	c.Invalidate()
	return err
}
