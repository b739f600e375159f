package command

import (
	"regexp"

	"game-buddy/internal/executor"
)

// Games the handlers can query, in the order the front-ends present them.
var Games = []string{"genshin", "hsr", "zzz"}

// Server identifiers are lowercase slugs like os_euro or prod_official_eur.
// Anything else never reaches the upstream API, or a URL.
var serverPattern = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

// InstallValidators registers the parameter rules shared by every command.
// Called once at startup on the executor both front-ends feed.
func InstallValidators(e *executor.Executor) {
	e.AddValidator("game", executor.EnumRule(Games...),
		"game must be one of: genshin, hsr, zzz")
	e.AddOptionalValidator("server", executor.StringRule(serverPattern.MatchString),
		"server must be a lowercase server id, e.g. os_euro")
}
