// Package notes implements the real-time notes command: current stamina and
// running expeditions for the user's account in the chosen game.
package notes

import (
	"context"
	"errors"
	"fmt"

	"game-buddy/internal/executor"
	"game-buddy/internal/gameapi"
	"game-buddy/internal/result"
	"game-buddy/internal/storage"
)

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

	notes, err := h.API.RealTimeNotes(ctx, cc.Credential, game, server)
	if errors.Is(err, gameapi.ErrInvalidCookie) {
		return result.Failure(result.ReasonAuthError,
			"Your stored credentials are no longer valid. Please authenticate again."), nil
	}
	if err != nil {
		return result.Failure(result.ReasonApiError, fmt.Sprintf("Could not fetch real-time notes: %v", err)), nil
	}

	if err := h.Store.SetLastServer(cc.UserID, game, server); err != nil {
		return result.CommandResult{}, err
	}

	return result.SuccessEphemeral(
		result.Section{
			Title: fmt.Sprintf("Real-time notes — %s (%s)", game, server),
			Components: []result.Component{
				result.Text{Content: fmt.Sprintf("Stamina: %d/%d", notes.CurrentStamina, notes.MaxStamina)},
				result.Text{Content: fmt.Sprintf("Expeditions running: %d", notes.Expeditions)},
			},
		},
	), nil
}
