package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Invoker is the slice of *grpc.ClientConn the clients need. Tests swap in a fake.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

var _ Invoker = (*grpc.ClientConn)(nil)

type caller struct {
	inv     Invoker
	timeout time.Duration
	ua      string
}

func newCaller(inv Invoker, timeout time.Duration, userAgent string) caller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return caller{inv: inv, timeout: timeout, ua: userAgent}
}

func (c caller) call(ctx context.Context, method string, req, resp any) error {
	// ensure per-call timeout if caller didn't set one
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.ua != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "user-agent", c.ua)
	}
	return c.inv.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(CodecName))
}

// Retryable reports whether a gateway error is worth another attempt.
func Retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}
