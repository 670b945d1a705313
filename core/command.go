package core

import (
	"errors"
	"sync"

	"sparkbox/protocol"
)

var (
	// ErrUnknownCommand is returned for a cmdsub nobody registered
	ErrUnknownCommand = errors.New("unknown command")
	// ErrLayoutMismatch is returned when the fields do not match the
	// registered layout
	ErrLayoutMismatch = errors.New("field layout mismatch")
)

// CommandHandler handles one decoded message. The message aliases decoder
// storage and must not be kept after the handler returns.
type CommandHandler func(msg *protocol.Message) error

// Command describes one amp protocol command or response
type Command struct {
	CmdSub  uint16
	Name    string
	Layout  []protocol.FieldType
	Handler CommandHandler
}

// Format renders the layout for the dictionary, e.g. "byte bool"
func (c *Command) Format() string {
	s := ""
	for i, t := range c.Layout {
		if i > 0 {
			s += " "
		}
		s += t.String()
	}
	return s
}

// CommandRegistry maps cmdsub values to commands. Each bridge owns its own
// registries; there is no process-wide one.
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   map[uint16]*Command
	nameToID   map[string]uint16
	order      []uint16
	dictionary string
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// Register adds a command. A nil handler registers a response-only entry
// used for naming and layout checks. Registering a cmdsub again replaces it.
func (r *CommandRegistry) Register(cmdsub uint16, name string, layout []protocol.FieldType, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, exists := r.commands[cmdsub]; exists {
		delete(r.nameToID, old.Name)
	} else {
		r.order = append(r.order, cmdsub)
	}

	r.commands[cmdsub] = &Command{
		CmdSub:  cmdsub,
		Name:    name,
		Layout:  layout,
		Handler: handler,
	}
	r.nameToID[name] = cmdsub

	r.rebuildDictionary()
}

// Lookup retrieves a command by cmdsub
func (r *CommandRegistry) Lookup(cmdsub uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[cmdsub]
	return cmd, ok
}

// ByName returns the cmdsub registered under name
func (r *CommandRegistry) ByName(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	return id, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Validate checks msg against its registered layout
func (r *CommandRegistry) Validate(msg *protocol.Message) (*Command, error) {
	cmd, ok := r.Lookup(msg.CmdSub)
	if !ok {
		return nil, ErrUnknownCommand
	}
	if !msg.Matches(cmd.Layout) {
		return cmd, ErrLayoutMismatch
	}
	return cmd, nil
}

// Dispatch validates msg and calls its handler. Response-only entries
// validate and return nil.
func (r *CommandRegistry) Dispatch(msg *protocol.Message) error {
	cmd, err := r.Validate(msg)
	if err != nil {
		return err
	}
	if cmd.Handler == nil {
		return nil
	}
	return cmd.Handler(msg)
}

// Dictionary returns one "0xCCSS name layout" line per command in
// registration order
func (r *CommandRegistry) Dictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// CommandsAndResponses splits entries into those with handlers and
// response-only ones, keyed by name
func (r *CommandRegistry) CommandsAndResponses() (map[string]uint16, map[string]uint16) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make(map[string]uint16)
	responses := make(map[string]uint16)

	for _, id := range r.order {
		cmd := r.commands[id]
		if cmd.Handler != nil {
			commands[cmd.Name] = id
		} else {
			responses[cmd.Name] = id
		}
	}

	return commands, responses
}

// rebuildDictionary rebuilds the dictionary string
// Must be called with lock held
func (r *CommandRegistry) rebuildDictionary() {
	dict := ""
	for _, id := range r.order {
		cmd := r.commands[id]
		dict += "0x" + hex16(id) + " " + cmd.Name
		if f := cmd.Format(); f != "" {
			dict += " " + f
		}
		dict += "\n"
	}
	r.dictionary = dict
}
