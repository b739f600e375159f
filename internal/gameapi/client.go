// Package gameapi is a thin client for the HoYoLAB game-record endpoints the
// bot's handlers consume: real-time notes and the owned-character list.
// Requests are authenticated with the user's cookie pair and paced through
// an adaptive limiter so the upstream is never hammered during retries.
package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"game-buddy/internal/auth"
	"game-buddy/pkg/retrylimit"
)

const defaultBaseURL = "https://sg-public-api.hoyolab.com"

// ErrInvalidCookie means the upstream rejected the credential pair. Handlers
// map this to an authentication failure so the user is asked to re-submit.
var ErrInvalidCookie = errors.New("gameapi: cookie rejected by upstream")

// Daily check-in outcomes handlers distinguish from hard failures.
var (
	ErrAlreadyCheckedIn = errors.New("gameapi: already checked in today")
	ErrNoGameAccount    = errors.New("gameapi: no account for this game")
)

// StatusError carries an HTTP status so retrylimit can classify overload.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string   { return fmt.Sprintf("gameapi: http %d", e.Code) }
func (e *StatusError) StatusCode() int { return e.Code }

// Notes is the real-time notes snapshot for one account.
type Notes struct {
	CurrentStamina int `json:"current_stamina"`
	MaxStamina     int `json:"max_stamina"`
	Expeditions    int `json:"expedition_num"`
}

// Character is one owned character.
type Character struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// Client talks to the game-record API.
type Client struct {
	http    *http.Client
	baseURL string
	// signHost overrides the per-game check-in host; tests point it at a
	// fake server.
	signHost string
	lim      *retrylimit.AdaptiveLimiter
	log      zerolog.Logger
}

// NewClient builds a client against the public HoYoLAB host.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: 25 * time.Second},
		baseURL: defaultBaseURL,
		lim:     retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
		log:     log.With().Str("component", "gameapi").Logger(),
	}
}

// NewClientWithBaseURL is used by tests to point the client at a fake server.
func NewClientWithBaseURL(log zerolog.Logger, baseURL string) *Client {
	c := NewClient(log)
	c.baseURL = baseURL
	c.signHost = baseURL
	return c
}

// RealTimeNotes fetches the real-time notes for game on server.
func (c *Client) RealTimeNotes(ctx context.Context, cred auth.Credential, game, server string) (*Notes, error) {
	var notes Notes
	path := fmt.Sprintf("/game_record/%s/api/note?server=%s", url.PathEscape(game), url.QueryEscape(server))
	if err := c.get(ctx, cred, path, &notes); err != nil {
		return nil, err
	}
	return &notes, nil
}

// CharacterList fetches the owned characters for game on server.
func (c *Client) CharacterList(ctx context.Context, cred auth.Credential, game, server string) ([]Character, error) {
	var payload struct {
		List []Character `json:"list"`
	}
	path := fmt.Sprintf("/game_record/%s/api/character?server=%s", url.PathEscape(game), url.QueryEscape(server))
	if err := c.get(ctx, cred, path, &payload); err != nil {
		return nil, err
	}
	return payload.List, nil
}

// signEndpoint is one game's daily check-in event: host, path and the
// activity id the event API expects in the request body.
type signEndpoint struct {
	host  string
	path  string
	actID string
}

var signEndpoints = map[string]signEndpoint{
	"genshin": {host: "https://sg-hk4e-api.hoyolab.com", path: "/event/sol/sign", actID: "e202102251931481"},
	"hsr":     {host: "https://sg-public-api.hoyolab.com", path: "/event/luna/hkrpg/os/sign", actID: "e202303301540311"},
	"zzz":     {host: "https://sg-public-api.hoyolab.com", path: "/event/luna/zzz/os/sign", actID: "e202406031448091"},
}

// Check-in API retcodes.
const (
	retcodeAlreadySigned = -5003
	retcodeNoGameAccount = -10002
)

// DailyCheckIn claims the daily HoYoLAB check-in reward for game.
func (c *Client) DailyCheckIn(ctx context.Context, cred auth.Credential, game string) error {
	ep, ok := signEndpoints[game]
	if !ok {
		return fmt.Errorf("gameapi: no check-in event for game %q", game)
	}

	host := ep.host
	if c.signHost != "" {
		host = c.signHost
	}

	return retrylimit.WithRetry(ctx, func() error {
		payload, err := json.Marshal(map[string]string{"act_id": ep.actID})
		if err != nil {
			return &retrylimit.Fatal{Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+ep.path, bytes.NewReader(payload))
		if err != nil {
			return &retrylimit.Fatal{Err: err}
		}
		req.Header.Set("Cookie", fmt.Sprintf("ltuid_v2=%s; ltoken_v2=%s", cred.UID, cred.Token))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if game == "zzz" {
			req.Header.Set("X-Rpc-Signgame", "zzz")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode}
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("gameapi: decode response: %w", err)
		}
		switch env.Retcode {
		case 0:
			return nil
		case retcodeAlreadySigned:
			return &retrylimit.Fatal{Err: ErrAlreadyCheckedIn}
		case retcodeNoGameAccount:
			return &retrylimit.Fatal{Err: ErrNoGameAccount}
		case retcodeInvalidCookie, retcodeLoginExpired:
			return &retrylimit.Fatal{Err: ErrInvalidCookie}
		default:
			return &retrylimit.Fatal{Err: fmt.Errorf("gameapi: retcode %d: %s", env.Retcode, env.Message)}
		}
	}, c.lim)
}

// envelope is the common HoYoLAB response wrapper.
type envelope struct {
	Retcode int             `json:"retcode"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Retcodes signaling an invalid or expired cookie.
const (
	retcodeInvalidCookie = -100
	retcodeLoginExpired  = 10001
)

func (c *Client) get(ctx context.Context, cred auth.Credential, path string, out any) error {
	return retrylimit.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return &retrylimit.Fatal{Err: err}
		}
		req.Header.Set("Cookie", fmt.Sprintf("ltuid_v2=%s; ltoken_v2=%s", cred.UID, cred.Token))
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode}
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("gameapi: decode response: %w", err)
		}
		switch env.Retcode {
		case 0:
		case retcodeInvalidCookie, retcodeLoginExpired:
			return &retrylimit.Fatal{Err: ErrInvalidCookie}
		default:
			return &retrylimit.Fatal{Err: fmt.Errorf("gameapi: retcode %d: %s", env.Retcode, env.Message)}
		}

		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("gameapi: decode data: %w", err)
		}
		return nil
	}, c.lim)
}
