// Package command keeps the registry of feature handlers. Handlers are
// constructed and registered at startup; the executor resolves them by
// command name at dispatch.
package command

import (
	"sort"

	"game-buddy/internal/executor"
)

// Descriptor pairs a handler with the identity front-ends need to register
// it (slash-command definitions, dashboard listings).
type Descriptor struct {
	Name        string
	Description string
	Handler     executor.Handler
}

var registry = map[string]Descriptor{}

// Register adds a handler under its command name.
func Register(d Descriptor) {
	registry[d.Name] = d
}

// Get returns the handler registered under name.
func Get(name string) (executor.Handler, bool) {
	d, ok := registry[name]
	if !ok {
		return nil, false
	}
	return d.Handler, true
}

// All returns every registered descriptor, sorted by name.
func All() []Descriptor {
	list := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
