package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"game-buddy/internal/auth"
	"game-buddy/internal/ratelimit"
	"game-buddy/internal/result"
)

// Handler is the business seam: one implementation per feature, registered
// against a command name and invoked by the executor once validation, rate
// limiting and authentication have passed. A returned error is an unexpected
// internal failure; expected failures (bad API responses and the like) are
// expressed as Failure results.
type Handler interface {
	Execute(ctx context.Context, cc *CommandContext) (result.CommandResult, error)
}

// PromptSender emits an "ask for credential" event to the user. The matching
// submission later enters through the Correlator.
type PromptSender interface {
	PromptCredential(cc *CommandContext, requestID string) error
}

// Outcome is what Execute hands back synchronously. When Pending is set the
// terminal result arrives later through the context's Deliver callback.
type Outcome struct {
	Pending bool
	Result  result.CommandResult
}

// Config wires an Executor. Plain struct, no builder: everything is known at
// startup.
type Config struct {
	Limiter     *ratelimit.Limiter
	Credentials *auth.CredentialStore
	Correlator  *auth.Correlator
	Prompt      PromptSender
	Resolve     func(command string) (Handler, bool)
	Logger      zerolog.Logger
}

// Executor orchestrates the command pipeline.
type Executor struct {
	validators []ValidationRule

	limiter *ratelimit.Limiter
	creds   *auth.CredentialStore
	corr    *auth.Correlator
	prompt  PromptSender
	resolve func(string) (Handler, bool)
	log     zerolog.Logger
}

// New builds an Executor from cfg.
func New(cfg Config) *Executor {
	return &Executor{
		limiter: cfg.Limiter,
		creds:   cfg.Credentials,
		corr:    cfg.Correlator,
		prompt:  cfg.Prompt,
		resolve: cfg.Resolve,
		log:     cfg.Logger.With().Str("component", "executor").Logger(),
	}
}

// Execute runs the pipeline for one invocation: validate, admit, resolve
// credentials, dispatch. Each step short-circuits on failure. When the
// credential must be asked for out-of-band, Execute returns a pending
// outcome immediately; no goroutine blocks waiting for the user.
func (e *Executor) Execute(ctx context.Context, cc *CommandContext) Outcome {
	e.log.Info().Str("user", cc.UserID).Str("command", cc.Command).Msg("command received")

	if errs := e.Validate(cc); len(errs) > 0 {
		return terminal(result.Failure(result.ReasonValidationFailed, strings.Join(errs, "\n")))
	}

	allowed, retryAfter, err := e.limiter.Allow(cc.UserID)
	if err != nil {
		// Fail closed: an unreachable store must not disable admission
		// control.
		e.log.Error().Err(err).Str("user", cc.UserID).Msg("rate limiter unavailable, denying")
		return terminal(result.Failure(result.ReasonRateLimited, "Service is busy. Please try again later."))
	}
	if !allowed {
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return terminal(result.Failure(result.ReasonRateLimited,
			fmt.Sprintf("You are sending commands too quickly. Please try again in %s.", retryAfter.Round(time.Second))))
	}

	cred, found, err := e.creds.Get(cc.UserID)
	if err != nil {
		e.log.Error().Err(err).Str("user", cc.UserID).Msg("credential lookup failed")
		return terminal(result.Failure(result.ReasonAuthError, "Could not read your stored credentials. Please authenticate again."))
	}
	if found && cred.Valid() {
		cc.Credential = cred
		return terminal(e.invoke(ctx, cc))
	}

	return e.suspend(cc)
}

// suspend registers a continuation with the correlator and prompts the user.
// The invocation appears pending to the caller; the continuation finishes it
// whenever the submission (or the deadline) arrives.
func (e *Executor) suspend(cc *CommandContext) Outcome {
	requestID, err := e.corr.Register(cc.UserID, func(res auth.Resolution) {
		cc.Deliver(e.resume(cc, res))
	})
	if errors.Is(err, auth.ErrAlreadyPending) {
		return terminal(result.Failure(result.ReasonAuthError, "You already have an authentication in progress. Please complete it first."))
	}
	if err != nil {
		e.log.Error().Err(err).Str("user", cc.UserID).Msg("failed to register pending authentication")
		return terminal(result.Failure(result.ReasonBotError, "Something went wrong. Please try again later."))
	}

	if err := e.prompt.PromptCredential(cc, requestID); err != nil {
		e.log.Error().Err(err).Str("user", cc.UserID).Msg("failed to prompt for credentials")
		e.corr.Cancel(cc.UserID)
		return terminal(result.Failure(result.ReasonBotError, "Could not ask for your credentials. Please try again later."))
	}

	e.log.Info().Str("user", cc.UserID).Str("command", cc.Command).Msg("command suspended pending authentication")
	return Outcome{Pending: true}
}

// resume completes a suspended invocation once the correlator fires.
func (e *Executor) resume(cc *CommandContext, res auth.Resolution) result.CommandResult {
	if res.Status == auth.StatusExpired {
		e.log.Info().Str("user", cc.UserID).Str("command", cc.Command).Msg("command timed out waiting for authentication")
		return result.Failure(result.ReasonAuthError, "Authentication timed out. Please run the command again.")
	}

	if err := e.creds.Put(cc.UserID, res.Credential); err != nil {
		e.log.Error().Err(err).Str("user", cc.UserID).Msg("failed to persist credential")
		return result.Failure(result.ReasonAuthError, "Could not store your credentials. Please try again.")
	}

	cc.Credential = res.Credential
	e.log.Info().Str("user", cc.UserID).Str("command", cc.Command).Msg("command resumed after authentication")
	return e.invoke(context.Background(), cc)
}

// invoke dispatches into the feature handler. Panics and errors are mapped
// to a generic BotError; the cause is logged, never shown to the caller.
func (e *Executor) invoke(ctx context.Context, cc *CommandContext) (res result.CommandResult) {
	handler, ok := e.resolve(cc.Command)
	if !ok {
		return result.Failure(result.ReasonBotError, "Unknown command.")
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Any("panic", r).Str("user", cc.UserID).Str("command", cc.Command).Msg("handler panicked")
			res = result.Failure(result.ReasonBotError, "An internal error occurred. Please try again later.")
		}
	}()

	r, err := handler.Execute(ctx, cc)
	if err != nil {
		e.log.Error().Err(err).Str("user", cc.UserID).Str("command", cc.Command).Msg("handler failed")
		return result.Failure(result.ReasonBotError, "An internal error occurred. Please try again later.")
	}
	return r
}

func terminal(r result.CommandResult) Outcome {
	return Outcome{Result: r}
}
