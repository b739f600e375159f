// Package chars implements the character list command.
package chars

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"game-buddy/internal/executor"
	"game-buddy/internal/gameapi"
	"game-buddy/internal/result"
	"game-buddy/internal/storage"
)

// Discord caps a text block well above this; longer rosters are truncated.
const maxListed = 25

type Handler struct {
	API   *gameapi.Client
	Store *storage.Storage
}

func (h *Handler) Execute(ctx context.Context, cc *executor.CommandContext) (result.CommandResult, error) {
	game := cc.StringParam("game")

	server := cc.StringParam("server")
	if server == "" {
		last, ok, err := h.Store.LastServer(cc.UserID, game)
		if err != nil {
			return result.CommandResult{}, err
		}
		if !ok {
			return result.Failure(result.ReasonValidationFailed,
				"Server is required for first time use. Please specify the server parameter."), nil
		}
		server = last
	}

	chars, err := h.API.CharacterList(ctx, cc.Credential, game, server)
	if errors.Is(err, gameapi.ErrInvalidCookie) {
		return result.Failure(result.ReasonAuthError,
			"Your stored credentials are no longer valid. Please authenticate again."), nil
	}
	if err != nil {
		return result.Failure(result.ReasonApiError, fmt.Sprintf("Could not fetch characters: %v", err)), nil
	}

	if err := h.Store.SetLastServer(cc.UserID, game, server); err != nil {
		return result.CommandResult{}, err
	}

	if len(chars) == 0 {
		return result.SuccessEphemeral(result.Text{Content: "No characters found on this server."}), nil
	}

	var lines []string
	for i, ch := range chars {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("… and %d more", len(chars)-maxListed))
			break
		}
		lines = append(lines, fmt.Sprintf("%s — Lv. %d", ch.Name, ch.Level))
	}

	return result.SuccessEphemeral(
		result.Section{
			Title:      fmt.Sprintf("Characters — %s (%s)", game, server),
			Components: []result.Component{result.Text{Content: strings.Join(lines, "\n")}},
		},
	), nil
}
