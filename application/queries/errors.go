package queries

import (
	"fmt"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/pkg/apperr"
)

func errWrongQuery(want string, got mediator.Query) error {
	return apperr.New(apperr.Internal, fmt.Sprintf("handler registered for %s received %T", want, got))
}
