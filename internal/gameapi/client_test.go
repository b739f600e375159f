package gameapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-buddy/internal/auth"
)

var testCred = auth.Credential{UID: "700123", Token: "tok"}

func TestRealTimeNotes(t *testing.T) {
	var gotCookie, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Write([]byte(`{"retcode":0,"message":"OK","data":{"current_stamina":154,"max_stamina":200,"expedition_num":4}}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(zerolog.Nop(), srv.URL)
	notes, err := c.RealTimeNotes(context.Background(), testCred, "genshin", "os_euro")
	require.NoError(t, err)

	assert.Equal(t, 154, notes.CurrentStamina)
	assert.Equal(t, 200, notes.MaxStamina)
	assert.Equal(t, 4, notes.Expeditions)
	assert.Equal(t, "ltuid_v2=700123; ltoken_v2=tok", gotCookie)
	assert.Equal(t, "/game_record/genshin/api/note?server=os_euro", gotPath)
}

func TestCharacterList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retcode":0,"message":"OK","data":{"list":[{"name":"Furina","level":90},{"name":"Nahida","level":80}]}}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(zerolog.Nop(), srv.URL)
	chars, err := c.CharacterList(context.Background(), testCred, "genshin", "os_euro")
	require.NoError(t, err)

	require.Len(t, chars, 2)
	assert.Equal(t, "Furina", chars[0].Name)
	assert.Equal(t, 90, chars[0].Level)
}

func TestInvalidCookieNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"retcode":-100,"message":"Please login","data":null}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(zerolog.Nop(), srv.URL)
	_, err := c.RealTimeNotes(context.Background(), testCred, "genshin", "os_euro")

	assert.ErrorIs(t, err, ErrInvalidCookie)
	assert.Equal(t, int32(1), calls.Load(), "invalid cookie must not be retried")
}

func TestLoginExpiredRetcode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retcode":10001,"message":"Login expired","data":null}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(zerolog.Nop(), srv.URL)
	_, err := c.CharacterList(context.Background(), testCred, "genshin", "os_euro")
	assert.ErrorIs(t, err, ErrInvalidCookie)
}

func TestDailyCheckIn(t *testing.T) {
	var gotPath, gotBody, gotSigngame string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSigngame = r.Header.Get("X-Rpc-Signgame")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"retcode":0,"message":"OK","data":null}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(zerolog.Nop(), srv.URL)
	require.NoError(t, c.DailyCheckIn(context.Background(), testCred, "genshin"))

	assert.Equal(t, "/event/sol/sign", gotPath)
	assert.Contains(t, gotBody, `"act_id":"e202102251931481"`)
	assert.Empty(t, gotSigngame)

	require.NoError(t, c.DailyCheckIn(context.Background(), testCred, "zzz"))
	assert.Equal(t, "/event/luna/zzz/os/sign", gotPath)
	assert.Equal(t, "zzz", gotSigngame)
}

func TestDailyCheckIn_AlreadySignedNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"retcode":-5003,"message":"already","data":null}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(zerolog.Nop(), srv.URL)
	err := c.DailyCheckIn(context.Background(), testCred, "hsr")

	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDailyCheckIn_UnknownGame(t *testing.T) {
	c := NewClientWithBaseURL(zerolog.Nop(), "http://unused.invalid")
	assert.Error(t, c.DailyCheckIn(context.Background(), testCred, "honkai2"))
}

func TestUpstreamErrorRetcode(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"retcode":10102,"message":"Data is not public","data":null}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(zerolog.Nop(), srv.URL)
	_, err := c.RealTimeNotes(context.Background(), testCred, "genshin", "os_euro")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCookie)
	assert.Contains(t, err.Error(), "10102")
	assert.Equal(t, int32(1), calls.Load())
}
