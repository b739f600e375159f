// Package dashboard is the web front-end: the same pipeline as the Discord
// bot, exposed over HTTP. A command that suspends for authentication answers
// 202; the client submits credentials to /api/auth and polls /api/result for
// the asynchronously-completed outcome.
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"game-buddy/internal/auth"
	"game-buddy/internal/command"
	"game-buddy/internal/executor"
	"game-buddy/internal/result"
)

// Server handles dashboard requests.
type Server struct {
	exec *executor.Executor
	corr *auth.Correlator
	log  zerolog.Logger

	// completed holds the latest asynchronously-delivered result per user,
	// consumed by the next poll.
	completed sync.Map // userID → result.CommandResult
}

// NewServer wires the dashboard front-end.
func NewServer(exec *executor.Executor, corr *auth.Correlator, log zerolog.Logger) *Server {
	return &Server{
		exec: exec,
		corr: corr,
		log:  log.With().Str("component", "dashboard").Logger(),
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/api/commands", s.listCommands)
	r.POST("/api/command", s.runCommand)
	r.POST("/api/auth", s.submitAuth)
	r.GET("/api/result/:user", s.pollResult)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down dashboard server")
		_ = srv.Shutdown(context.Background())
	}()

	s.log.Info().Str("addr", addr).Msg("dashboard listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) listCommands(c *gin.Context) {
	type item struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	var items []item
	for _, d := range command.All() {
		items = append(items, item{Name: d.Name, Description: d.Description})
	}
	c.JSON(http.StatusOK, items)
}

type commandRequest struct {
	UserID  string         `json:"user_id" binding:"required"`
	Command string         `json:"command" binding:"required"`
	Params  map[string]any `json:"params"`
}

func (s *Server) runCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and command are required"})
		return
	}

	cc := executor.NewContext(req.UserID, req.Command)
	for name, value := range req.Params {
		cc.SetParam(name, value)
	}
	cc.OnDeliver(func(r result.CommandResult) {
		s.completed.Store(req.UserID, r)
	})

	outcome := s.exec.Execute(c.Request.Context(), cc)
	if outcome.Pending {
		c.JSON(http.StatusAccepted, gin.H{
			"status": "pending_authentication",
			"detail": "Submit your credentials to /api/auth, then poll /api/result.",
		})
		return
	}
	c.JSON(http.StatusOK, renderJSON(outcome.Result))
}

type authRequest struct {
	UserID string `json:"user_id" binding:"required"`
	UID    string `json:"uid" binding:"required"`
	Token  string `json:"token" binding:"required"`
}

func (s *Server) submitAuth(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, uid and token are required"})
		return
	}

	err := s.corr.Resolve(req.UserID, auth.Credential{UID: req.UID, Token: req.Token})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending authentication request for this user"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) pollResult(c *gin.Context) {
	userID := c.Param("user")
	if v, ok := s.completed.LoadAndDelete(userID); ok {
		c.JSON(http.StatusOK, renderJSON(v.(result.CommandResult)))
		return
	}
	c.Status(http.StatusNoContent)
}

// renderJSON flattens a CommandResult into the dashboard's wire shape.
func renderJSON(r result.CommandResult) gin.H {
	if !r.OK {
		return gin.H{
			"ok":      false,
			"reason":  string(r.Reason),
			"message": r.Message,
		}
	}
	return gin.H{
		"ok":         true,
		"ephemeral":  r.Ephemeral,
		"components": renderComponents(r.Components),
	}
}

func renderComponents(components []result.Component) []gin.H {
	out := make([]gin.H, 0, len(components))
	for _, c := range components {
		switch v := c.(type) {
		case result.Text:
			out = append(out, gin.H{"type": "text", "content": v.Content})
		case result.Attachment:
			out = append(out, gin.H{"type": "attachment", "file_name": v.FileName})
		case result.Section:
			out = append(out, gin.H{"type": "section", "title": v.Title, "components": renderComponents(v.Components)})
		}
	}
	return out
}
