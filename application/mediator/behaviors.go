package mediator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// LoggingBehavior logs every command/query at debug level, and failures
// at error level.
type LoggingBehavior struct {
	logger *zap.Logger
}

func NewLoggingBehavior(logger *zap.Logger) *LoggingBehavior {
	return &LoggingBehavior{logger: logger}
}

func (b *LoggingBehavior) PreProcess(ctx context.Context, command Command) error {
	b.logger.Debug("executing command", zap.String("type", fmt.Sprintf("%T", command)))
	return nil
}

func (b *LoggingBehavior) PostProcess(ctx context.Context, command Command, err error) {
	if err != nil {
		b.logger.Error("command failed", zap.String("type", fmt.Sprintf("%T", command)), zap.Error(err))
		return
	}
	b.logger.Debug("command succeeded", zap.String("type", fmt.Sprintf("%T", command)))
}

func (b *LoggingBehavior) PreProcessQuery(ctx context.Context, query Query) error {
	b.logger.Debug("executing query", zap.String("type", fmt.Sprintf("%T", query)))
	return nil
}

func (b *LoggingBehavior) PostProcessQuery(ctx context.Context, query Query, result interface{}, err error) {
	if err != nil {
		b.logger.Error("query failed", zap.String("type", fmt.Sprintf("%T", query)), zap.Error(err))
		return
	}
	b.logger.Debug("query succeeded", zap.String("type", fmt.Sprintf("%T", query)))
}

// Validatable is implemented by commands/queries that can self-validate
// before dispatch (e.g. via go-playground/validator struct tags upstream).
type Validatable interface {
	Validate() error
}

// ValidationBehavior rejects malformed commands/queries before they reach
// a handler.
type ValidationBehavior struct {
	logger *zap.Logger
}

func NewValidationBehavior(logger *zap.Logger) *ValidationBehavior {
	return &ValidationBehavior{logger: logger}
}

func (b *ValidationBehavior) PreProcess(ctx context.Context, command Command) error {
	if v, ok := command.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

func (b *ValidationBehavior) PostProcess(ctx context.Context, command Command, err error) {}

func (b *ValidationBehavior) PreProcessQuery(ctx context.Context, query Query) error {
	if v, ok := query.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

func (b *ValidationBehavior) PostProcessQuery(ctx context.Context, query Query, result interface{}, err error) {
}
