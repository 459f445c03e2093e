// Package basedata holds the client-side copy of the /base list.
package basedata

import (
	"context"
	"sync"

	"github.com/MrEthical07/keynotify"
)

// Status is the position of a Loader in its load cycle.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// fallbackError is recorded when a failed load carries no message.
const fallbackError = "Failed to fetch data"

type fetcher interface {
	FetchBaseList(ctx context.Context, params map[string]any) (*keynotify.BaseList, error)
}

// State is a point-in-time copy of a Loader.
type State struct {
	Items  []keynotify.BaseItem
	Status Status
	Error  string
}

// Loader tracks one base data list. Only the most recent Load may change it.
type Loader struct {
	src fetcher

	mu    sync.Mutex
	gen   uint64
	items []keynotify.BaseItem
	stat  Status
	err   string
}

// NewLoader returns an idle loader reading from src. *keynotify.Client satisfies src.
func NewLoader(src fetcher) *Loader {
	return &Loader{src: src, items: []keynotify.BaseItem{}, stat: StatusIdle}
}

// Load fetches the list with params as query parameters. It returns the state
// the load left behind, which may belong to a newer Load or Clear that
// superseded it.
func (l *Loader) Load(ctx context.Context, params map[string]any) (State, error) {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.stat = StatusLoading
	l.mu.Unlock()

	list, err := l.src.FetchBaseList(ctx, params)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return l.stateLocked(), err
	}
	if err != nil {
		l.stat = StatusFailed
		l.err = err.Error()
		if l.err == "" {
			l.err = fallbackError
		}
		return l.stateLocked(), err
	}
	l.items = list.Items
	l.stat = StatusSucceeded
	l.err = ""
	return l.stateLocked(), nil
}

// Clear drops the data and returns the loader to idle. An in-flight Load
// finishing afterwards is ignored.
func (l *Loader) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.items = []keynotify.BaseItem{}
	l.stat = StatusIdle
	l.err = ""
}

// State returns a copy of the current state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *Loader) stateLocked() State {
	items := make([]keynotify.BaseItem, len(l.items))
	copy(items, l.items)
	return State{Items: items, Status: l.stat, Error: l.err}
}
