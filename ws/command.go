package ws

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/kbukum/base-api/logger"
)

// CommandID discriminates command payloads inside the wire envelope.
type CommandID int32

// CommandBasic is the scheduling command: fire a numbered command at a
// numbered target at a relative timestamp.
const CommandBasic CommandID = 0

// BasicCommand is the payload of CommandBasic.
type BasicCommand struct {
	Timestamp uint16 `bson:"timestamp"`
	Target    uint8  `bson:"target"`
	Command   uint8  `bson:"command"`
}

// HandlerFunc processes the decoded data document of one command.
type HandlerFunc func(ctx context.Context, data bson.Raw) error

// Dispatcher routes the BSON command envelope, {id: int32, data: document},
// to the handler registered for the id. Malformed envelopes and unknown ids
// are dropped with a warning; a byte stream from the network is never a
// reason to take the session down.
type Dispatcher struct {
	handlers map[CommandID]HandlerFunc
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher with no handlers registered.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[CommandID]HandlerFunc),
		log:      logger.WithComponent("ws"),
	}
}

// Register binds a handler to a command id, replacing any previous binding.
func (d *Dispatcher) Register(id CommandID, fn HandlerFunc) {
	d.handlers[id] = fn
}

// Dispatch parses one complete message and invokes the matching handler.
// The returned error reports why a message was dropped; callers log it, the
// session stays up regardless.
func (d *Dispatcher) Dispatch(ctx context.Context, message []byte) error {
	raw := bson.Raw(message)
	if err := raw.Validate(); err != nil {
		return fmt.Errorf("ws: invalid bson envelope: %w", err)
	}

	idVal, err := raw.LookupErr("id")
	if err != nil {
		return fmt.Errorf("ws: envelope missing id: %w", err)
	}
	id, ok := idVal.Int32OK()
	if !ok {
		return fmt.Errorf("ws: envelope id is %s, want int32", idVal.Type)
	}

	dataVal, err := raw.LookupErr("data")
	if err != nil {
		return fmt.Errorf("ws: envelope missing data: %w", err)
	}
	data, ok := dataVal.DocumentOK()
	if !ok {
		return fmt.Errorf("ws: envelope data is %s, want document", dataVal.Type)
	}

	fn, ok := d.handlers[CommandID(id)]
	if !ok {
		return fmt.Errorf("ws: no handler for command id %d", id)
	}
	return fn(ctx, data)
}

// RegisterBasicHandler installs the CommandBasic handler, which decodes and
// records the scheduled command.
func (d *Dispatcher) RegisterBasicHandler() {
	log := d.log
	d.Register(CommandBasic, func(_ context.Context, data bson.Raw) error {
		var cmd BasicCommand
		if err := bson.Unmarshal(data, &cmd); err != nil {
			return fmt.Errorf("ws: basic command decode: %w", err)
		}
		log.Info("Basic command received", logger.Fields(
			"timestamp", cmd.Timestamp,
			"target", cmd.Target,
			"command", cmd.Command,
		))
		return nil
	})
}
