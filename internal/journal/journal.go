// Package journal appends every bus event to a rotating JSON lines file.
// Writes are queued and flushed by a background goroutine so the event loop
// never waits on disk.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/chartsync/internal/bus"
)

var (
	ErrClosed     = errors.New("journal: closed")
	ErrBufferFull = errors.New("journal: buffer full")
)

// Record is one line of the journal.
type Record struct {
	TS         time.Time            `json:"ts"`
	Event      bus.Kind             `json:"event"`
	Key        string               `json:"key,omitempty"`
	Element    *bus.Element         `json:"element,omitempty"`
	DataSource map[string]bus.Value `json:"data_source,omitempty"`
	Source     int64                `json:"source,omitempty"`
}

// Options tune rotation. Zero values fall back to lumberjack defaults.
type Options struct {
	BufferSize int
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type Writer struct {
	path    string
	writeCh chan Record
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *lumberjack.Logger
	mu      sync.Mutex
	sub     *bus.Subscription
	closed  bool
	now     func() time.Time
}

// Open creates the parent directory of path and starts the write loop.
func Open(path string, o Options) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("journal: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: mkdir: %w", err)
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 1024
	}
	w := &Writer{
		path:    path,
		writeCh: make(chan Record, o.BufferSize),
		done:    make(chan struct{}),
		now:     time.Now,
		logger: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
			LocalTime:  false,
		},
	}
	w.wg.Add(1)
	go w.writeLoop()
	slog.Info("journal opened", "file", path)
	return w, nil
}

// Path is the active journal file.
func (w *Writer) Path() string { return w.path }

// Attach subscribes the writer to every event on b.
func (w *Writer) Attach(b *bus.Bus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil {
		w.sub.Unsubscribe()
	}
	w.sub = b.Subscribe(bus.Filter{}, bus.HandlerFunc(func(e bus.Event) {
		if err := w.Append(e); err != nil && !errors.Is(err, ErrClosed) {
			slog.Warn("journal append failed", "event", e.Kind, "key", e.Key, "error", err)
		}
	}))
}

// Append queues e. It never blocks; a full buffer drops the record.
func (w *Writer) Append(e bus.Event) error {
	rec := Record{
		TS:         w.now().UTC(),
		Event:      e.Kind,
		Key:        e.Key,
		Element:    e.Element,
		DataSource: e.DataSource,
		Source:     e.Source,
	}
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.writeCh <- rec:
		return nil
	case <-w.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

// Close unsubscribes, flushes what is queued and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.sub != nil {
		w.sub.Unsubscribe()
		w.sub = nil
	}
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()

	timeout := time.After(5 * time.Second)
drain:
	for {
		select {
		case rec := <-w.writeCh:
			w.write(rec)
		case <-timeout:
			slog.Warn("journal close timeout, some records may be lost", "file", w.path)
			break drain
		default:
			break drain
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.logger.Close()
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case rec := <-w.writeCh:
			w.write(rec)
		case <-w.done:
			return
		}
	}
}

func (w *Writer) write(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("journal marshal failed", "error", err, "event", rec.Event)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "error", err, "file", w.path)
	}
}
