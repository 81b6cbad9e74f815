// Package specialerror turns arbitrary errors into coded ones for callers
// that must answer with a code, such as the HTTP bridge.
package specialerror

import (
	"errors"
	"net/http"
	"sync"

	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
)

var (
	mu       sync.RWMutex
	handlers []func(err error) *errs.CodeError
)

// AddErrHandler registers a translator for errors that carry no code.
// A handler returns nil when the error is not its concern.
func AddErrHandler(h func(err error) *errs.CodeError) error {
	if h == nil {
		return errs.New("nil handler")
	}
	mu.Lock()
	handlers = append(handlers, h)
	mu.Unlock()
	return nil
}

// ErrCode finds the code of err, asking the handlers when the chain holds
// no CodeError. Unknown errors become ErrInternalServer. nil stays nil.
func ErrCode(err error) *errs.CodeError {
	if err == nil {
		return nil
	}
	var ce *errs.CodeError
	if errors.As(err, &ce) {
		return ce
	}
	mu.RLock()
	defer mu.RUnlock()
	for _, h := range handlers {
		if ce := h(err); ce != nil {
			return ce
		}
	}
	return errs.ErrInternalServer.WithDetail(err.Error())
}

func HTTPStatus(ce *errs.CodeError) int {
	if ce == nil {
		return http.StatusOK
	}
	switch ce.Code {
	case errs.ArgsError:
		return http.StatusBadRequest
	case errs.UnauthenticatedError, errs.TokenExpiredError:
		return http.StatusUnauthorized
	case errs.NotConnectedError, errs.ManagerClosedError, errs.StorageUnavailable:
		return http.StatusServiceUnavailable
	case errs.HistoryFetchError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
