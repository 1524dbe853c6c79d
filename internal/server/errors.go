package server

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/magefree/mage-commander/internal/game"
	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/store"
)

// errBadRequest marks malformed input.
var errBadRequest = errors.New("bad request")

func errorCode(err error) (int, codes.Code) {
	switch {
	case errors.Is(err, game.ErrGameNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, codes.NotFound
	case errors.Is(err, rules.ErrInvalidAction), errors.Is(err, rules.ErrGameOver):
		return http.StatusConflict, codes.FailedPrecondition
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, codes.InvalidArgument
	}
	return http.StatusInternalServerError, codes.Internal
}
