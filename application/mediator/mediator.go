// Package mediator implements the CQRS mediator pattern: a single entry
// point for commands (mutate, return error only) and queries (read,
// return data), decoupling interfaces/http from the application services.
// Grounded on backend's application/mediator/mediator.go and behaviors.go.
package mediator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Behavior is a cross-cutting concern applied to every command/query.
type Behavior interface {
	PreProcess(ctx context.Context, command Command) error
	PostProcess(ctx context.Context, command Command, err error)
	PreProcessQuery(ctx context.Context, query Query) error
	PostProcessQuery(ctx context.Context, query Query, result interface{}, err error)
}

// IMediator is the interface consumed by interfaces/http handlers.
type IMediator interface {
	Send(ctx context.Context, command Command) error
	Query(ctx context.Context, query Query) (interface{}, error)
}

// Mediator dispatches commands/queries through a behavior pipeline onto
// the command and query buses.
type Mediator struct {
	commandBus *CommandBus
	queryBus   *QueryBus
	logger     *zap.Logger
	behaviors  []Behavior
}

func NewMediator(commandBus *CommandBus, queryBus *QueryBus, logger *zap.Logger) *Mediator {
	return &Mediator{commandBus: commandBus, queryBus: queryBus, logger: logger, behaviors: []Behavior{}}
}

func (m *Mediator) Send(ctx context.Context, command Command) error {
	start := time.Now()

	for _, b := range m.behaviors {
		if err := b.PreProcess(ctx, command); err != nil {
			m.logger.Error("command pre-processing failed",
				zap.String("command", fmt.Sprintf("%T", command)), zap.Error(err))
			return err
		}
	}

	err := m.commandBus.Send(ctx, command)

	for _, b := range m.behaviors {
		b.PostProcess(ctx, command, err)
	}

	if err != nil {
		m.logger.Error("command failed",
			zap.String("command", fmt.Sprintf("%T", command)),
			zap.Error(err), zap.Duration("duration", time.Since(start)))
		return err
	}
	m.logger.Debug("command succeeded",
		zap.String("command", fmt.Sprintf("%T", command)), zap.Duration("duration", time.Since(start)))
	return nil
}

func (m *Mediator) Query(ctx context.Context, query Query) (interface{}, error) {
	start := time.Now()

	for _, b := range m.behaviors {
		if err := b.PreProcessQuery(ctx, query); err != nil {
			m.logger.Error("query pre-processing failed",
				zap.String("query", fmt.Sprintf("%T", query)), zap.Error(err))
			return nil, err
		}
	}

	result, err := m.queryBus.Ask(ctx, query)

	for _, b := range m.behaviors {
		b.PostProcessQuery(ctx, query, result, err)
	}

	if err != nil {
		m.logger.Error("query failed",
			zap.String("query", fmt.Sprintf("%T", query)),
			zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, err
	}
	m.logger.Debug("query succeeded",
		zap.String("query", fmt.Sprintf("%T", query)), zap.Duration("duration", time.Since(start)))
	return result, nil
}

func (m *Mediator) AddBehavior(behavior Behavior) {
	m.behaviors = append(m.behaviors, behavior)
	m.logger.Info("added mediator behavior", zap.String("behavior", fmt.Sprintf("%T", behavior)))
}

func (m *Mediator) Behaviors() []Behavior { return m.behaviors }
