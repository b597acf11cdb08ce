// Package editor connects an embedded markdown editor to the note store.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	bepdebounce "github.com/bep/debounce"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mdpad/pkg/debounce"
	"github.com/mattsolo1/grove-mdpad/pkg/ipc"
	"github.com/mattsolo1/grove-mdpad/pkg/metrics"
	"github.com/mattsolo1/grove-mdpad/pkg/models"
	"github.com/mattsolo1/grove-mdpad/pkg/store"
)

const (
	DefaultChangeDelay   = 500 * time.Millisecond
	DefaultPositionDelay = 500 * time.Millisecond
)

// Documents is the part of the store the bridge writes through.
type Documents interface {
	State() store.State
	UpdateFile(ctx context.Context, contents string, file *models.FileEntry) (*models.Node, error)
	Flush(ctx context.Context) error
}

// StateCache persists editor state across restarts.
type StateCache interface {
	MergeEditorState(ctx context.Context, state models.EditorCache) error
}

// Bridge decodes editor messages into store operations and queues outbound
// messages until the editor has loaded.
type Bridge struct {
	docs      Documents
	cache     StateCache
	log       *logrus.Entry
	metrics   *metrics.Metrics
	onNewFile func(ctx context.Context) error

	changeDelay   time.Duration
	positionDelay time.Duration
	change        *debounce.Debouncer
	savePosition  func(func())

	seq    ipc.Sequencer
	window ipc.Window

	// out serializes delivery so the sink sees messages in Seq order.
	out sync.Mutex

	mu       sync.Mutex
	value    string
	position *models.Position
	view     models.ViewState
	sink     Sink
	loaded   bool
	queue    []ipc.Message
	resetSeq uint64
}

// Option configures a Bridge.
type Option func(*Bridge)

func WithChangeDelay(d time.Duration) Option {
	return func(b *Bridge) { b.changeDelay = d }
}

func WithPositionDelay(d time.Duration) Option {
	return func(b *Bridge) { b.positionDelay = d }
}

func WithLogger(log *logrus.Entry) Option {
	return func(b *Bridge) { b.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

func WithCache(c StateCache) Option {
	return func(b *Bridge) { b.cache = c }
}

// WithNewFileHandler sets what runs when the editor asks for a new file.
func WithNewFileHandler(fn func(ctx context.Context) error) Option {
	return func(b *Bridge) { b.onNewFile = fn }
}

// NewBridge creates a bridge writing through docs.
func NewBridge(docs Documents, opts ...Option) *Bridge {
	b := &Bridge{
		docs:          docs,
		log:           logrus.NewEntry(logrus.StandardLogger()),
		changeDelay:   DefaultChangeDelay,
		positionDelay: DefaultPositionDelay,
		view:          models.InitialViewState,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.change = debounce.New(b.changeDelay, b.writeChange, debounce.WithErrorHandler(func(err error) {
		b.log.WithError(err).Warn("Failed to save editor change")
	}))
	b.savePosition = bepdebounce.New(b.positionDelay)
	return b
}

// HandleMessage processes one raw message from the editor. Malformed, stale
// and out-of-order messages are logged and dropped.
func (b *Bridge) HandleMessage(ctx context.Context, data []byte) error {
	m, err := ipc.Decode(data)
	if err != nil {
		b.metrics.RecordDropped("malformed")
		b.log.WithError(err).Warn("Dropping editor message")
		return err
	}
	if !b.window.Accept(m) {
		b.metrics.RecordDropped("out_of_order")
		b.log.WithField("event", m.Event).WithField("seq", m.Seq).Debug("Dropping out-of-order message")
		return nil
	}
	b.metrics.RecordMessage(m.Event)

	switch m.Event {
	case ipc.EventChange:
		text, err := m.Text()
		if err != nil {
			b.metrics.RecordDropped("malformed")
			b.log.WithError(err).Warn("Dropping editor message")
			return err
		}
		b.mu.Lock()
		if b.staleLocked(m) {
			b.mu.Unlock()
			b.metrics.RecordDropped("stale")
			b.log.WithField("ack", m.Ack).Debug("Dropping change for a previous document")
			return nil
		}
		b.value = text
		b.mu.Unlock()
		b.change.Trigger()

	case ipc.EventChangePosition:
		pos, err := m.Position()
		if err != nil {
			b.metrics.RecordDropped("malformed")
			b.log.WithError(err).Warn("Dropping editor message")
			return err
		}
		if pos.IsDefault() {
			return nil
		}
		b.mu.Lock()
		if b.staleLocked(m) {
			b.mu.Unlock()
			b.metrics.RecordDropped("stale")
			b.log.WithField("ack", m.Ack).Debug("Dropping position for a previous document")
			return nil
		}
		b.position = &pos
		b.mu.Unlock()
		b.persistPosition(pos)

	case ipc.EventTogglePreview:
		b.DispatchView(ToggleShowPreview)

	case ipc.EventNewFile:
		if b.onNewFile != nil {
			return b.onNewFile(ctx)
		}

	case ipc.EventSave:
		return b.Flush(ctx)

	case ipc.EventDebug:
		text, _ := m.Text()
		b.log.WithField("event", m.Event).Info(text)

	default:
		b.log.WithField("event", m.Event).Debug("Ignoring unknown editor event")
	}
	return nil
}

// staleLocked reports whether m was sent before the editor saw the latest
// document. Callers hold b.mu.
func (b *Bridge) staleLocked(m ipc.Message) bool {
	return !m.Legacy() && m.Ack < b.resetSeq
}

func (b *Bridge) persistPosition(pos models.Position) {
	if b.cache == nil {
		return
	}
	b.savePosition(func() {
		if err := b.cache.MergeEditorState(context.Background(), models.EditorCache{Position: &pos}); err != nil {
			b.log.WithError(err).Warn("Failed to persist editor position")
		}
	})
}

// writeChange saves the current value into whichever file is open when the
// timer fires, creating one if none is.
func (b *Bridge) writeChange(ctx context.Context) error {
	value := b.Value()
	current := b.docs.State().CurrentWorkingFile

	var entry *models.FileEntry
	if current != nil {
		entry = &current.FileEntry
	}
	node, err := b.docs.UpdateFile(ctx, value, entry)
	if err != nil {
		if errors.Is(err, store.ErrNoSuchFile) {
			b.log.WithError(err).Warn("Open file disappeared, change not saved")
		}
		return err
	}
	if current == nil && node != nil && b.cache != nil {
		if err := b.cache.MergeEditorState(ctx, models.EditorCache{File: &node.FileEntry}); err != nil {
			b.log.WithError(err).Warn("Failed to persist open file")
		}
	}
	return nil
}

// Value returns the editor text last reported or loaded.
func (b *Bridge) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Position returns the last accepted cursor position, nil if none.
func (b *Bridge) Position() *models.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.position == nil {
		return nil
	}
	p := *b.position
	return &p
}

// SetPosition restores a position and sends it to the editor.
func (b *Bridge) SetPosition(ctx context.Context, pos models.Position) error {
	b.mu.Lock()
	b.position = &pos
	b.mu.Unlock()
	return b.Send(ctx, ipc.EventUpdatePosition, pos)
}

// ViewState returns which panes are shown.
func (b *Bridge) ViewState() models.ViewState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view
}

// SetViewState restores a persisted view state.
func (b *Bridge) SetViewState(v models.ViewState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view = v
}

// DispatchView applies a view action and returns the new state.
func (b *Bridge) DispatchView(a ViewAction) models.ViewState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view = ReduceView(b.view, a)
	return b.view
}

// LoadValue saves any pending change, then replaces the editor text.
func (b *Bridge) LoadValue(ctx context.Context, content string) error {
	if err := b.change.Flush(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	b.value = content
	b.position = nil
	b.mu.Unlock()
	return b.Send(ctx, ipc.EventUpdateValue, content)
}

// Reset clears the editor. Pending changes must be flushed by the caller.
func (b *Bridge) Reset(ctx context.Context) error {
	b.mu.Lock()
	b.value = ""
	b.position = nil
	b.mu.Unlock()
	return b.Send(ctx, ipc.EventReset, nil)
}

// Send queues an outbound message. Messages are delivered in order once the
// editor has loaded.
func (b *Bridge) Send(ctx context.Context, event string, value any) error {
	m, err := ipc.NewMessage(event, value)
	if err != nil {
		return err
	}

	b.out.Lock()
	defer b.out.Unlock()

	b.mu.Lock()
	m.Seq = b.seq.Next()
	m.Ack = b.window.Last()
	if event == ipc.EventUpdateValue || event == ipc.EventReset {
		b.resetSeq = m.Seq
	}
	if !b.loaded || b.sink == nil {
		b.queue = append(b.queue, m)
		b.mu.Unlock()
		return nil
	}
	sink := b.sink
	b.mu.Unlock()

	return b.deliver(ctx, sink, m)
}

func (b *Bridge) deliver(ctx context.Context, sink Sink, m ipc.Message) error {
	if err := sink.Send(ctx, m); err != nil {
		b.log.WithError(err).WithField("event", m.Event).Warn("Failed to send to editor")
		return err
	}
	b.metrics.RecordSent(m.Event)
	return nil
}

// LoadEnd marks the editor as loaded on sink and delivers queued messages.
func (b *Bridge) LoadEnd(ctx context.Context, sink Sink) error {
	b.out.Lock()
	defer b.out.Unlock()

	b.mu.Lock()
	b.sink = sink
	b.loaded = true
	queued := b.queue
	b.queue = nil
	b.mu.Unlock()

	for i, m := range queued {
		if err := b.deliver(ctx, sink, m); err != nil {
			b.mu.Lock()
			b.queue = append(queued[i:], b.queue...)
			b.mu.Unlock()
			return err
		}
	}
	return nil
}

// Detach forgets the sink. Later messages queue until the next LoadEnd.
func (b *Bridge) Detach() {
	b.out.Lock()
	defer b.out.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = nil
	b.loaded = false
	b.window.Reset()
}

// Loaded reports whether an editor is attached.
func (b *Bridge) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Pending returns the number of queued outbound messages.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Flush saves a pending change and then the store.
func (b *Bridge) Flush(ctx context.Context) error {
	if err := b.change.Flush(ctx); err != nil {
		return err
	}
	return b.docs.Flush(ctx)
}

// Close flushes and stops the change timer.
func (b *Bridge) Close(ctx context.Context) error {
	err := b.Flush(ctx)
	b.change.Stop()
	return err
}
