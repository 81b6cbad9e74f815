package storage

import (
	"context"
	"errors"
	"net"

	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/specialerror"
	"github.com/redis/go-redis/v9"
)

func init() {
	_ = specialerror.AddErrHandler(redisErrCode)
}

// redisErrCode codes the failures callers of the read API can see.
func redisErrCode(err error) *errs.CodeError {
	if errors.Is(err, redis.Nil) {
		return errs.ErrArgs.WithDetail("nothing recorded")
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.ErrClosed) || errors.As(err, &ne) {
		return errs.ErrStorage.WithDetail(err.Error())
	}
	return nil
}
