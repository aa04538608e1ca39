package builtin

import (
	"github.com/drblury/operatorhost/handlers"
	"github.com/drblury/operatorhost/responder"
)

// Modules returns every built-in module, sharing resp.
func Modules(resp *responder.Responder) []handlers.Module {
	return []handlers.Module{
		Text{Responder: resp},
		JSONTransform{Responder: resp},
	}
}
