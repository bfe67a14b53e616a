package logstore

import "context"

// RequestInfo is the request metadata stamped onto an inserted entry.
// The zero value means no request: anonymous user, empty strings.
type RequestInfo struct {
	UserID      uint
	IPAddress   string
	PageURL     string
	ReferrerURL string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the RequestInfo attached to ctx, or the zero value.
func RequestInfoFrom(ctx context.Context) RequestInfo {
	if ctx == nil {
		return RequestInfo{}
	}
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}
