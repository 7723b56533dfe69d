package domain

type CtxKey string

const (
	KeyUser      CtxKey = "User"
	KeyRequestID CtxKey = "RequestID"
)
