// Package commands maps command names to handlers and assembles the cobra
// command tree from them.
package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var (
	ErrDuplicateCommand = errors.New("command already registered")
	ErrInvalidHandler   = errors.New("invalid command handler")
)

// Handler describes one subcommand.
type Handler struct {
	Name  string
	Short string
	// Bind registers flags on the command. Optional.
	Bind func(cmd *cobra.Command)
	Run  func(cmd *cobra.Command, args []string) error
}

// Registry holds handlers by name.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h. Names are unique.
func (r *Registry) Register(h Handler) error {
	name := strings.TrimSpace(h.Name)
	if name == "" || h.Run == nil {
		return fmt.Errorf("%w: name and run are required", ErrInvalidHandler)
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}
	h.Name = name
	r.handlers[name] = h
	return nil
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Root builds a cobra root command with one subcommand per handler.
func (r *Registry) Root(use, short string) *cobra.Command {
	root := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	for _, name := range r.Names() {
		h := r.handlers[name]
		cmd := &cobra.Command{
			Use:           h.Name,
			Short:         h.Short,
			Args:          cobra.NoArgs,
			SilenceErrors: true,
			SilenceUsage:  true,
			RunE:          h.Run,
		}
		if h.Bind != nil {
			h.Bind(cmd)
		}
		root.AddCommand(cmd)
	}
	return root
}
