package mediator

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Command is a CQRS command: it mutates state and returns only an error.
type Command interface {
	CommandName() string
}

// Query is a CQRS query: it reads state and returns a result.
type Query interface {
	QueryName() string
}

// CommandHandler executes exactly one concrete Command type.
type CommandHandler func(ctx context.Context, command Command) error

// QueryHandler executes exactly one concrete Query type.
type QueryHandler func(ctx context.Context, query Query) (interface{}, error)

// CommandBus routes a Command to its registered handler by concrete type.
// Grounded on backend's application/mediator dispatch pattern; the
// teacher's own commands/bus package was not present in this bundle, so
// the registry is reconstructed here in the same handler-per-type idiom.
type CommandBus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]CommandHandler
}

func NewCommandBus() *CommandBus {
	return &CommandBus{handlers: make(map[reflect.Type]CommandHandler)}
}

// Register binds a handler to the concrete type of example. Panics on a
// duplicate registration — that is a wiring bug, not a runtime condition.
func (b *CommandBus) Register(example Command, handler CommandHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf(example)
	if _, exists := b.handlers[t]; exists {
		panic(fmt.Sprintf("mediator: command handler already registered for %s", t))
	}
	b.handlers[t] = handler
}

func (b *CommandBus) Send(ctx context.Context, command Command) error {
	b.mu.RLock()
	handler, ok := b.handlers[reflect.TypeOf(command)]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("mediator: no handler registered for command %s", command.CommandName())
	}
	return handler(ctx, command)
}

// QueryBus routes a Query to its registered handler by concrete type.
type QueryBus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]QueryHandler
}

func NewQueryBus() *QueryBus {
	return &QueryBus{handlers: make(map[reflect.Type]QueryHandler)}
}

func (b *QueryBus) Register(example Query, handler QueryHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf(example)
	if _, exists := b.handlers[t]; exists {
		panic(fmt.Sprintf("mediator: query handler already registered for %s", t))
	}
	b.handlers[t] = handler
}

func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	b.mu.RLock()
	handler, ok := b.handlers[reflect.TypeOf(query)]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mediator: no handler registered for query %s", query.QueryName())
	}
	return handler(ctx, query)
}
