// Package tcpserver serves the video API over raw TCP connections, one request per connection.
package tcpserver

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/service"
	"github.com/and161185/vsp-server/internal/wire"
)

// Server wires services into route handlers and owns the accept loop.
type Server struct {
	auth    service.AuthService
	uploads service.UploadService
	videos  service.VideoService
	log     *zap.Logger
	maxBody int64

	router   *Router
	endpoint Endpoint
	conns    sync.WaitGroup
}

// New constructs a server with injected services. maxBody bounds request bodies when positive.
func New(auth service.AuthService, uploads service.UploadService, videos service.VideoService, log *zap.Logger, maxBody int64) *Server {
	s := &Server{auth: auth, uploads: uploads, videos: videos, log: log, maxBody: maxBody}

	r := NewRouter()
	r.handle("POST", "/api/login", authNone, s.login)
	r.handle("POST", "/api/register", authNone, s.register)
	r.handle("POST", "/api/newvid", authBearer, s.newVideo)
	r.handle("POST", "/api/upload_chunk", authBearer, s.uploadChunk)
	r.handle("POST", "/api/commit", authBearer, s.commit)
	r.handle("GET", "/api/upload/{id}", authBearer, s.uploadStatus)
	r.handle("GET", "/api/videos", authBearer, s.listVideos)
	r.handle("GET", "/api/video/{id}", authBearerOrQuery, s.getVideo)
	r.handle("DELETE", "/api/video/{id}", authBearer, s.deleteVideo)
	s.router = r

	s.endpoint = Logging(log)(Recover(log)(s.dispatch))
	return s
}

// Handle runs one decoded request through routing, auth and the handler.
func (s *Server) Handle(ctx context.Context, req *wire.Request) wire.Response {
	return s.endpoint(ctx, req)
}

func (s *Server) dispatch(ctx context.Context, req *wire.Request) wire.Response {
	rt, params, err := s.router.resolve(req.Method, req.Path())
	if err != nil {
		return errorResponse(err)
	}
	if rt.auth != authNone {
		principal, err := s.principal(req, rt.auth == authBearerOrQuery)
		if err != nil {
			return errorResponse(err)
		}
		ctx = WithPrincipal(ctx, principal)
	}
	resp, err := rt.h(ctx, req, params)
	if err != nil {
		return errorResponse(err)
	}
	return resp
}

// principal extracts "Authorization: Bearer <JWT>" (or the access_token query
// parameter when allowed) and verifies it.
func (s *Server) principal(req *wire.Request, allowQuery bool) (string, error) {
	tok := bearerToken(req.Header("Authorization"))
	if tok == "" && allowQuery {
		tok = req.Query().Get("access_token")
	}
	if tok == "" {
		return "", errs.ErrUnauthorized
	}
	return s.auth.Authenticate(tok)
}

func bearerToken(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

const maxAcceptDelay = time.Second

// Serve accepts connections until ctx is cancelled, then waits for in-flight ones.
// Accept errors other than a closed listener are logged and retried.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.conns.Wait()
				return nil
			}
			// EMFILE and friends: keep the listener, retry with backoff
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			s.log.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.ServeConn(ctx, conn)
		}()
	}
}

// ServeConn reads one request from conn, writes one response and closes it.
// A request that cannot be decoded closes the connection without a response.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	peer := ""
	if a := conn.RemoteAddr(); a != nil {
		peer = a.String()
	}
	req, err := wire.Decode(bufio.NewReader(conn), s.maxBody)
	if err != nil {
		s.log.Debug("decode failed", zap.String("peer", peer), zap.Error(err))
		return
	}
	resp := s.Handle(withPeer(ctx, peer), req)
	if err := wire.WriteResponse(conn, resp); err != nil {
		s.log.Debug("write failed", zap.String("peer", peer), zap.Error(err))
	}
}
