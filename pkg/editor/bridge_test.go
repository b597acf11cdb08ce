package editor

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-mdpad/pkg/filesystem"
	"github.com/mattsolo1/grove-mdpad/pkg/ipc"
	"github.com/mattsolo1/grove-mdpad/pkg/metrics"
	"github.com/mattsolo1/grove-mdpad/pkg/models"
	"github.com/mattsolo1/grove-mdpad/pkg/repository"
	"github.com/mattsolo1/grove-mdpad/pkg/store"
)

const home = "/notes"

type fakeSink struct {
	mu   sync.Mutex
	msgs []ipc.Message
	err  error
}

func (f *fakeSink) Send(_ context.Context, m ipc.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeSink) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.msgs {
		out = append(out, m.Event)
	}
	return out
}

type fakeCache struct {
	mu     sync.Mutex
	merges []models.EditorCache
}

func (f *fakeCache) MergeEditorState(_ context.Context, s models.EditorCache) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merges = append(f.merges, s)
	return nil
}

func (f *fakeCache) all() []models.EditorCache {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.EditorCache(nil), f.merges...)
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func newBridge(t *testing.T, opts ...Option) (*Bridge, *store.Store, afero.Fs, *fakeCache) {
	t.Helper()
	mem := afero.NewMemMapFs()
	repo := repository.New(filesystem.New(mem), repository.Config{Home: home})
	st := store.New(repo, store.WithAutosaveDelay(time.Hour))
	require.NoError(t, st.Load(context.Background()))

	cache := &fakeCache{}
	base := []Option{
		WithChangeDelay(20 * time.Millisecond),
		WithPositionDelay(10 * time.Millisecond),
		WithCache(cache),
		WithLogger(quietLogger()),
		WithMetrics(metrics.New()),
	}
	b := NewBridge(st, append(base, opts...)...)
	t.Cleanup(func() {
		b.change.Stop()
		_ = st.Close(context.Background())
	})
	return b, st, mem, cache
}

func msg(event string, value string) []byte {
	if value == "" {
		return []byte(`{"event":"` + event + `"}`)
	}
	return []byte(`{"event":"` + event + `","value":` + value + `}`)
}

func TestChangeCreatesFileOnceAfterBurst(t *testing.T) {
	b, st, mem, cache := newBridge(t)
	ctx := context.Background()

	for _, v := range []string{`"S"`, `"Sho"`, `"Shopping"`} {
		require.NoError(t, b.HandleMessage(ctx, msg(ipc.EventChange, v)))
	}
	assert.Equal(t, "Shopping", b.Value())

	require.Eventually(t, func() bool { return st.State().CurrentWorkingFile != nil }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	files, err := afero.ReadDir(mem, home)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Shopping.md", files[0].Name())

	merges := cache.all()
	require.Len(t, merges, 1)
	assert.Equal(t, home+"/Shopping.md", merges[0].File.Path)
}

func TestChangeWritesIntoCurrentFile(t *testing.T) {
	b, st, mem, _ := newBridge(t)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(mem, home+"/a.md", []byte("old"), 0644))
	require.NoError(t, st.Refresh(ctx))
	entry := st.State().Files[home+"/a.md"].FileEntry
	_, err := st.LoadFile(ctx, &entry)
	require.NoError(t, err)

	require.NoError(t, b.HandleMessage(ctx, msg(ipc.EventChange, `"new text"`)))
	require.NoError(t, b.HandleMessage(ctx, msg(ipc.EventSave, "")))

	data, err := afero.ReadFile(mem, home+"/a.md")
	require.NoError(t, err)
	assert.Equal(t, "new text", string(data))
}

func TestPositionHandling(t *testing.T) {
	b, _, _, cache := newBridge(t)
	ctx := context.Background()

	require.NoError(t, b.HandleMessage(ctx, msg(ipc.EventChangePosition, `{"lineNumber":1,"column":1}`)))
	assert.Nil(t, b.Position(), "initial mount position is ignored")

	require.NoError(t, b.HandleMessage(ctx, msg(ipc.EventChangePosition, `{"lineNumber":4,"column":2}`)))
	require.NotNil(t, b.Position())
	assert.Equal(t, models.Position{LineNumber: 4, Column: 2}, *b.Position())

	require.Eventually(t, func() bool { return len(cache.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, cache.all()[0].Position.LineNumber)
}

func TestStalePositionDropped(t *testing.T) {
	b, _, _, _ := newBridge(t)
	ctx := context.Background()
	sink := &fakeSink{}
	require.NoError(t, b.LoadEnd(ctx, sink))

	require.NoError(t, b.LoadValue(ctx, "first"))  // seq 1
	require.NoError(t, b.LoadValue(ctx, "second")) // seq 2

	// Sent before the editor saw the second document.
	require.NoError(t, b.HandleMessage(ctx, []byte(`{"v":1,"seq":1,"ack":1,"event":"change_position","value":{"lineNumber":9,"column":9}}`)))
	assert.Nil(t, b.Position())

	require.NoError(t, b.HandleMessage(ctx, []byte(`{"v":1,"seq":2,"ack":2,"event":"change_position","value":{"lineNumber":3,"column":1}}`)))
	require.NotNil(t, b.Position())
	assert.Equal(t, 3, b.Position().LineNumber)

	// Replayed sequence number.
	require.NoError(t, b.HandleMessage(ctx, []byte(`{"v":1,"seq":2,"ack":2,"event":"change","value":"dup"}`)))
	assert.Equal(t, "second", b.Value())
}

func TestStaleChangeNotWrittenIntoNextFile(t *testing.T) {
	b, st, mem, _ := newBridge(t)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(mem, home+"/a.md", []byte("alpha"), 0644))
	require.NoError(t, afero.WriteFile(mem, home+"/b.md", []byte("bravo"), 0644))
	require.NoError(t, st.Refresh(ctx))
	require.NoError(t, b.LoadEnd(ctx, &fakeSink{}))

	a := st.State().Files[home+"/a.md"].FileEntry
	_, err := st.LoadFile(ctx, &a)
	require.NoError(t, err)
	require.NoError(t, b.LoadValue(ctx, "alpha")) // seq 1

	require.NoError(t, b.HandleMessage(ctx, []byte(`{"v":1,"seq":1,"ack":1,"event":"change","value":"alpha edited"}`)))
	require.NoError(t, b.Flush(ctx))

	bEntry := st.State().Files[home+"/b.md"].FileEntry
	_, err = st.LoadFile(ctx, &bEntry)
	require.NoError(t, err)
	require.NoError(t, b.LoadValue(ctx, "bravo")) // seq 2

	// Typed into a.md before the editor switched documents.
	require.NoError(t, b.HandleMessage(ctx, []byte(`{"v":1,"seq":2,"ack":1,"event":"change","value":"alpha edited more"}`)))
	assert.Equal(t, "bravo", b.Value())
	require.NoError(t, b.HandleMessage(ctx, msg(ipc.EventSave, "")))

	data, err := afero.ReadFile(mem, home+"/b.md")
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(data))
	data, err = afero.ReadFile(mem, home+"/a.md")
	require.NoError(t, err)
	assert.Equal(t, "alpha edited", string(data))

	// Once the editor acknowledges b.md its changes go through.
	require.NoError(t, b.HandleMessage(ctx, []byte(`{"v":1,"seq":3,"ack":2,"event":"change","value":"bravo edited"}`)))
	require.NoError(t, b.HandleMessage(ctx, msg(ipc.EventSave, "")))
	data, err = afero.ReadFile(mem, home+"/b.md")
	require.NoError(t, err)
	assert.Equal(t, "bravo edited", string(data))
}

func TestOutboundQueuedUntilLoadEnd(t *testing.T) {
	b, _, _, _ := newBridge(t)
	ctx := context.Background()

	require.NoError(t, b.Reset(ctx))
	require.NoError(t, b.Send(ctx, ipc.EventUpdateValue, "body"))
	require.NoError(t, b.SetPosition(ctx, models.Position{LineNumber: 2, Column: 3}))
	assert.Equal(t, 3, b.Pending())

	sink := &fakeSink{}
	require.NoError(t, b.LoadEnd(ctx, sink))
	assert.Equal(t, []string{ipc.EventReset, ipc.EventUpdateValue, ipc.EventUpdatePosition}, sink.events())
	assert.Zero(t, b.Pending())

	for i, m := range sink.msgs {
		assert.EqualValues(t, i+1, m.Seq)
		assert.Equal(t, ipc.ProtocolVersion, m.V)
	}

	require.NoError(t, b.Send(ctx, ipc.EventReset, nil))
	assert.Len(t, sink.events(), 4, "sent directly once loaded")
}

func TestLoadEndRequeuesOnFailure(t *testing.T) {
	b, _, _, _ := newBridge(t)
	ctx := context.Background()
	require.NoError(t, b.Send(ctx, ipc.EventReset, nil))

	err := b.LoadEnd(ctx, &fakeSink{err: errors.New("closed")})
	assert.Error(t, err)
	assert.Equal(t, 1, b.Pending())
}

func TestMalformedMessagesNeverPanic(t *testing.T) {
	b, _, _, _ := newBridge(t)
	ctx := context.Background()

	for _, raw := range []string{`Hello!`, `{}`, `{"event":"change","value":42}`, `{"event":"change_position","value":"x"}`, ``} {
		assert.NotPanics(t, func() {
			err := b.HandleMessage(ctx, []byte(raw))
			assert.ErrorIs(t, err, ipc.ErrMalformed, raw)
		})
	}
	assert.NoError(t, b.HandleMessage(ctx, msg("something_new", `"x"`)))
	assert.NoError(t, b.HandleMessage(ctx, msg(ipc.EventDebug, `"hello from editor"`)))
}

func TestTogglePreviewAndNewFile(t *testing.T) {
	called := 0
	b, _, _, _ := newBridge(t, WithNewFileHandler(func(ctx context.Context) error {
		called++
		return nil
	}))
	ctx := context.Background()

	require.NoError(t, b.HandleMessage(ctx, msg(ipc.EventTogglePreview, "")))
	assert.False(t, b.ViewState().ShowPreview)
	assert.True(t, b.ViewState().ShowEditor)

	require.NoError(t, b.HandleMessage(ctx, msg(ipc.EventNewFile, "")))
	assert.Equal(t, 1, called)
}

func TestReduceView(t *testing.T) {
	tests := []struct {
		name   string
		start  models.ViewState
		action ViewAction
		want   models.ViewState
	}{
		{"preview only", models.InitialViewState, ShowPreviewOnly, models.ViewState{ShowPreview: true}},
		{"editor only", models.InitialViewState, ShowEditorOnly, models.ViewState{ShowEditor: true}},
		{"both", models.ViewState{}, ShowBoth, models.InitialViewState},
		{"toggle editor", models.InitialViewState, ToggleShowEditor, models.ViewState{ShowPreview: true}},
		{"toggle preview", models.ViewState{}, ToggleShowPreview, models.ViewState{ShowPreview: true}},
		{"unknown resets", models.ViewState{}, ViewAction(99), models.InitialViewState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReduceView(tt.start, tt.action))
		})
	}
}

func TestScriptSink(t *testing.T) {
	var scripts []string
	sink := ScriptSink{Inject: func(s string) error {
		scripts = append(scripts, s)
		return nil
	}}
	m, err := ipc.NewMessage(ipc.EventReset, nil)
	require.NoError(t, err)

	require.NoError(t, sink.Send(context.Background(), m))
	require.Len(t, scripts, 1)
	assert.Contains(t, scripts[0], `new CustomEvent("reset"`)
}

func TestServerDeliversAndReceives(t *testing.T) {
	b, st, _, _ := newBridge(t)
	ctx := context.Background()
	require.NoError(t, b.Send(ctx, ipc.EventUpdateValue, "queued"))

	srv := NewServer(b, quietLogger(), metrics.New())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	m, err := ipc.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ipc.EventUpdateValue, m.Event)
	text, _ := m.Text()
	assert.Equal(t, "queued", text)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg(ipc.EventChange, `"typed in browser"`)))
	require.Eventually(t, func() bool { return st.State().CurrentWorkingFile != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "typed in browser", st.State().CurrentWorkingFile.Content)
}
