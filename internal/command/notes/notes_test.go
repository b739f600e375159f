package notes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-buddy/internal/auth"
	"game-buddy/internal/executor"
	"game-buddy/internal/gameapi"
	"game-buddy/internal/result"
	"game-buddy/internal/storage"
)

func newHandler(t *testing.T, upstream http.HandlerFunc) *Handler {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	store, err := storage.New(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &Handler{
		API:   gameapi.NewClientWithBaseURL(zerolog.Nop(), srv.URL),
		Store: store,
	}
}

func notesUpstream(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte(`{"retcode":0,"message":"OK","data":{"current_stamina":154,"max_stamina":200,"expedition_num":3}}`))
}

func invocation(params map[string]any) *executor.CommandContext {
	cc := executor.NewContext("u1", "notes")
	for k, v := range params {
		cc.SetParam(k, v)
	}
	cc.Credential = auth.Credential{UID: "700123", Token: "tok"}
	return cc
}

func TestExecute_Success(t *testing.T) {
	h := newHandler(t, notesUpstream)

	res, err := h.Execute(context.Background(), invocation(map[string]any{"game": "genshin", "server": "os_euro"}))
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.True(t, res.Ephemeral)
	assert.Contains(t, res.PlainText(), "Stamina: 154/200")
	assert.Contains(t, res.PlainText(), "Expeditions running: 3")
}

func TestExecute_FirstUseWithoutServer(t *testing.T) {
	h := newHandler(t, notesUpstream)

	res, err := h.Execute(context.Background(), invocation(map[string]any{"game": "genshin"}))
	require.NoError(t, err)

	assert.False(t, res.OK)
	assert.Equal(t, result.ReasonValidationFailed, res.Reason)
	assert.Contains(t, res.Message, "first time use")
}

func TestExecute_ServerRemembered(t *testing.T) {
	h := newHandler(t, notesUpstream)

	res, err := h.Execute(context.Background(), invocation(map[string]any{"game": "genshin", "server": "os_euro"}))
	require.NoError(t, err)
	require.True(t, res.OK)

	// Second invocation omits the server and falls back to the last one.
	res, err = h.Execute(context.Background(), invocation(map[string]any{"game": "genshin"}))
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Contains(t, res.PlainText(), "os_euro")
}

func TestExecute_ServerMemoryIsPerGame(t *testing.T) {
	h := newHandler(t, notesUpstream)

	res, err := h.Execute(context.Background(), invocation(map[string]any{"game": "genshin", "server": "os_euro"}))
	require.NoError(t, err)
	require.True(t, res.OK)

	// The remembered server for genshin must not leak into hsr.
	res, err = h.Execute(context.Background(), invocation(map[string]any{"game": "hsr"}))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, result.ReasonValidationFailed, res.Reason)
}

func TestExecute_InvalidCookie(t *testing.T) {
	h := newHandler(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"retcode":-100,"message":"Please login","data":null}`))
	})

	res, err := h.Execute(context.Background(), invocation(map[string]any{"game": "genshin", "server": "os_euro"}))
	require.NoError(t, err)

	assert.False(t, res.OK)
	assert.Equal(t, result.ReasonAuthError, res.Reason)
	assert.NotContains(t, res.Message, "tok", "token must never surface in messages")
}

func TestExecute_UpstreamFailure(t *testing.T) {
	h := newHandler(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"retcode":10102,"message":"Data is not public","data":null}`))
	})

	res, err := h.Execute(context.Background(), invocation(map[string]any{"game": "genshin", "server": "os_euro"}))
	require.NoError(t, err)

	assert.False(t, res.OK)
	assert.Equal(t, result.ReasonApiError, res.Reason)
}
