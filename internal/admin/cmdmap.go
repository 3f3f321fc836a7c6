package admin

import (
	"context"

	"github.com/tidwall/redcon"
)

// CommandHandler is the function signature for admin console commands.
type CommandHandler func(ctx context.Context, conn redcon.Conn, args [][]byte)

// cmdMap is a plain lookup table for the admin console's fixed,
// small command set. An open-addressing table earns its keep when a
// command set is large and hot; this console serves five read-only
// commands at low volume, so a map is clearer and just as fast in
// practice.
type cmdMap struct {
	handlers map[string]CommandHandler
}

func newCmdMap(h *Handler) *cmdMap {
	cm := &cmdMap{handlers: make(map[string]CommandHandler)}
	cm.register("PING", h.cmdPing)
	cm.register("INFO", h.cmdInfo)
	cm.register("WORKERS", h.cmdWorkers)
	cm.register("SERVICES", h.cmdServices)
	cm.register("STATS", h.cmdStats)
	return cm
}

func (cm *cmdMap) register(name string, handler CommandHandler) {
	cm.handlers[name] = handler
}

func (cm *cmdMap) Lookup(name string) CommandHandler {
	return cm.handlers[name]
}
