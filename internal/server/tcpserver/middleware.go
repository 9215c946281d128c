package tcpserver

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/vsp-server/internal/wire"
)

// Endpoint turns one decoded request into the response written back on the connection.
type Endpoint func(ctx context.Context, req *wire.Request) wire.Response

// Logging returns middleware that writes one structured line per request.
func Logging(log *zap.Logger) func(Endpoint) Endpoint {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req *wire.Request) wire.Response {
			start := time.Now()
			resp := next(ctx, req)

			// metadata only, never bodies or tokens
			log.Info("request",
				zap.String("method", req.Method),
				zap.String("path", req.Path()),
				zap.Int("status", resp.Status),
				zap.Int("bytes", len(resp.Body)),
				zap.Duration("dur", time.Since(start)),
				zap.String("peer", peerFromCtx(ctx)),
			)
			return resp
		}
	}
}

// Recover returns middleware that turns a handler panic into a 500 response.
func Recover(log *zap.Logger) func(Endpoint) Endpoint {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req *wire.Request) (resp wire.Response) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic",
						zap.Any("reason", r),
						zap.ByteString("stack", debug.Stack()),
						zap.String("method", req.Method),
						zap.String("path", req.Path()),
					)
					resp = internalError()
				}
			}()
			return next(ctx, req)
		}
	}
}
