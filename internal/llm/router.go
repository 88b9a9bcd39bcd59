package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrNoProvider is returned when a model has nowhere to go.
var ErrNoProvider = errors.New("no provider for model")

// Router is a Client that sends each model to a named provider. Models
// without a route go to the default provider. A route naming a provider
// that was never registered is an error rather than a trip to the
// default, so a missing API key shows up at the first call.
type Router struct {
	providers map[string]Client
	routes    map[string]string
	def       string
}

// NewRouter returns a Router whose default provider is name, backed by
// c. A nil c leaves the router without a default.
func NewRouter(name string, c Client) *Router {
	r := &Router{providers: map[string]Client{}, routes: map[string]string{}}
	if c != nil {
		r.providers[name] = c
		r.def = name
	}
	return r
}

// Register adds or replaces a provider.
func (r *Router) Register(name string, c Client) {
	r.providers[name] = c
}

// Route sends model to provider.
func (r *Router) Route(model, provider string) {
	r.routes[model] = provider
}

func (r *Router) resolve(model string) (Client, error) {
	name, routed := r.routes[model]
	if !routed {
		name = r.def
	}
	if c, ok := r.providers[name]; ok && name != "" {
		return c, nil
	}
	if routed {
		return nil, fmt.Errorf("%w %q: provider %q is not configured", ErrNoProvider, model, name)
	}
	return nil, fmt.Errorf("%w %q", ErrNoProvider, model)
}

// Chat forwards to the provider for model.
func (r *Router) Chat(ctx context.Context, model string, messages []Message) (*ChatResponse, error) {
	c, err := r.resolve(model)
	if err != nil {
		return nil, err
	}
	return c.Chat(ctx, model, messages)
}

// Ping checks each registered provider once, in name order, and stops
// at the first failure.
func (r *Router) Ping(ctx context.Context) error {
	if len(r.providers) == 0 {
		return errors.New("no providers configured")
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := r.providers[name].Ping(ctx); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}
	return nil
}
