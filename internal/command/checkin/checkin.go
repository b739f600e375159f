// Package checkin implements the daily check-in command: claims the day's
// HoYoLAB login reward for the chosen game.
package checkin

import (
	"context"
	"errors"
	"fmt"

	"game-buddy/internal/executor"
	"game-buddy/internal/gameapi"
	"game-buddy/internal/result"
)

type Handler struct {
	API *gameapi.Client
}

func (h *Handler) Execute(ctx context.Context, cc *executor.CommandContext) (result.CommandResult, error) {
	game := cc.StringParam("game")

	err := h.API.DailyCheckIn(ctx, cc.Credential, game)
	switch {
	case err == nil:
		return result.SuccessEphemeral(
			result.Text{Content: fmt.Sprintf("Checked in for %s. Today's reward has been claimed.", game)},
		), nil
	case errors.Is(err, gameapi.ErrAlreadyCheckedIn):
		return result.SuccessEphemeral(
			result.Text{Content: fmt.Sprintf("You have already checked in today for %s.", game)},
		), nil
	case errors.Is(err, gameapi.ErrNoGameAccount):
		return result.Failure(result.ReasonApiError,
			fmt.Sprintf("No account found for %s on this HoYoLAB profile.", game)), nil
	case errors.Is(err, gameapi.ErrInvalidCookie):
		return result.Failure(result.ReasonAuthError,
			"Your stored credentials are no longer valid. Please authenticate again."), nil
	default:
		return result.Failure(result.ReasonApiError, fmt.Sprintf("Could not check in: %v", err)), nil
	}
}
