package commands

import (
	"fmt"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/pkg/apperr"
)

func errRequired(field string) error {
	return apperr.New(apperr.Validation, fmt.Sprintf("%s is required", field))
}

func errWrongCommand(want string, got mediator.Command) error {
	return apperr.New(apperr.Internal, fmt.Sprintf("handler registered for %s received %T", want, got))
}

func errUnknownVocabType(name string) error {
	return apperr.New(apperr.UnknownVocabType, fmt.Sprintf("vocabulary type %q is not active", name))
}
