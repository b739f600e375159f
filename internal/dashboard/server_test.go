package dashboard

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-buddy/datastore"
	"game-buddy/internal/auth"
	"game-buddy/internal/command"
	"game-buddy/internal/executor"
	"game-buddy/internal/ratelimit"
	"game-buddy/internal/result"
)

type echoHandler struct{}

func (echoHandler) Execute(_ context.Context, cc *executor.CommandContext) (result.CommandResult, error) {
	return result.Success(result.Text{Content: "stamina for " + cc.Credential.UID}), nil
}

type noopPrompt struct{}

func (noopPrompt) PromptCredential(*executor.CommandContext, string) error { return nil }

func newTestServer(t *testing.T) (*Server, *gin.Engine, *auth.CredentialStore) {
	t.Helper()

	ds, err := datastore.New(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	key := hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	creds, err := auth.NewCredentialStore(ds, key)
	require.NoError(t, err)

	corr := auth.NewCorrelator(ds, 5*time.Minute, zerolog.Nop())
	exec := executor.New(executor.Config{
		Limiter:     ratelimit.New(ds, 100*time.Millisecond, 10),
		Credentials: creds,
		Correlator:  corr,
		Prompt:      noopPrompt{},
		Resolve: func(name string) (executor.Handler, bool) {
			if name == "notes" {
				return echoHandler{}, true
			}
			return nil, false
		},
		Logger: zerolog.Nop(),
	})

	command.InstallValidators(exec)

	srv := NewServer(exec, corr, zerolog.Nop())
	return srv, srv.Router(), creds
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestHealthz(t *testing.T) {
	_, router, _ := newTestServer(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunCommand_Synchronous(t *testing.T) {
	_, router, creds := newTestServer(t)
	require.NoError(t, creds.Put("u1", auth.Credential{UID: "700123", Token: "tok"}))

	rec := doJSON(t, router, http.MethodPost, "/api/command", map[string]any{
		"user_id": "u1",
		"command": "notes",
		"params":  map[string]any{"game": "genshin", "server": "os_euro"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	components := body["components"].([]any)
	require.Len(t, components, 1)
	first := components[0].(map[string]any)
	assert.Equal(t, "text", first["type"])
	assert.Equal(t, "stamina for 700123", first["content"])
}

func TestRunCommand_MissingFields(t *testing.T) {
	_, router, _ := newTestServer(t)
	rec := doJSON(t, router, http.MethodPost, "/api/command", map[string]any{"command": "notes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunCommand_PendingAuthFlow(t *testing.T) {
	_, router, _ := newTestServer(t)

	// No stored credential: the command suspends.
	rec := doJSON(t, router, http.MethodPost, "/api/command", map[string]any{
		"user_id": "u1",
		"command": "notes",
		"params":  map[string]any{"game": "genshin"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "pending_authentication", decodeBody(t, rec)["status"])

	// Nothing to poll yet.
	rec = doJSON(t, router, http.MethodGet, "/api/result/u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Submit credentials; the suspended command resumes in the background.
	rec = doJSON(t, router, http.MethodPost, "/api/auth", map[string]any{
		"user_id": "u1",
		"uid":     "700123",
		"token":   "tok",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	// Poll until the resumed result lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = doJSON(t, router, http.MethodGet, "/api/result/u1", nil)
		if rec.Code == http.StatusOK {
			break
		}
		require.Equal(t, http.StatusNoContent, rec.Code)
		if time.Now().After(deadline) {
			t.Fatal("resumed result never became available")
		}
		time.Sleep(10 * time.Millisecond)
	}

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])

	// The result is consumed by the poll that returned it.
	rec = doJSON(t, router, http.MethodGet, "/api/result/u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRunCommand_RejectsArbitraryGameValue(t *testing.T) {
	_, router, creds := newTestServer(t)
	require.NoError(t, creds.Put("u1", auth.Credential{UID: "700123", Token: "tok"}))

	rec := doJSON(t, router, http.MethodPost, "/api/command", map[string]any{
		"user_id": "u1",
		"command": "notes",
		"params":  map[string]any{"game": "not-a-real-game/../admin", "server": "os_euro"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, string(result.ReasonValidationFailed), body["reason"])
}

func TestSubmitAuth_NoPending(t *testing.T) {
	_, router, _ := newTestServer(t)
	rec := doJSON(t, router, http.MethodPost, "/api/auth", map[string]any{
		"user_id": "u1",
		"uid":     "700123",
		"token":   "tok",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunCommand_FailureShape(t *testing.T) {
	_, router, creds := newTestServer(t)
	require.NoError(t, creds.Put("u1", auth.Credential{UID: "700123", Token: "tok"}))

	rec := doJSON(t, router, http.MethodPost, "/api/command", map[string]any{
		"user_id": "u1",
		"command": "unknown-command",
		"params":  map[string]any{"game": "genshin"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, string(result.ReasonBotError), body["reason"])
	assert.NotEmpty(t, body["message"])
}
