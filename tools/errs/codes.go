package errs

const (
	ServerInternalError  = 500
	ArgsError            = 1001
	UnauthenticatedError = 1101
	TokenExpiredError    = 1102
	NotConnectedError    = 1201
	ManagerClosedError   = 1202
	HistoryFetchError    = 1301
	StorageUnavailable   = 1401
)

var (
	ErrInternalServer  = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrArgs            = NewCodeError(ArgsError, "ArgsError")
	ErrUnauthenticated = NewCodeError(UnauthenticatedError, "Unauthenticated")
	ErrTokenExpired    = NewCodeError(TokenExpiredError, "TokenExpired")
	ErrNotConnected    = NewCodeError(NotConnectedError, "NotConnected")
	ErrManagerClosed   = NewCodeError(ManagerClosedError, "ManagerClosed")
	ErrHistoryFetch    = NewCodeError(HistoryFetchError, "HistoryFetchFailed")
	ErrStorage         = NewCodeError(StorageUnavailable, "StorageUnavailable")
)

func init() {
	// an expired token is also an unauthenticated one
	_ = DefaultCodeRelation.Add(UnauthenticatedError, TokenExpiredError)
}
