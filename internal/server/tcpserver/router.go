package tcpserver

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/wire"
)

var errMethodNotAllowed = errors.New("method not allowed")

// Params holds the values of {name} path segments.
type Params map[string]string

// HandlerFunc serves one matched route.
type HandlerFunc func(ctx context.Context, req *wire.Request, params Params) (wire.Response, error)

type authMode int

const (
	authNone authMode = iota
	authBearer
	// authBearerOrQuery also accepts an access_token query parameter.
	authBearerOrQuery
)

type route struct {
	method string
	segs   []string
	auth   authMode
	h      HandlerFunc
}

// Router matches method and path exactly; a {name} segment matches any one non-empty segment.
type Router struct {
	routes []route
}

// NewRouter returns an empty router.
func NewRouter() *Router { return &Router{} }

func (r *Router) handle(method, pattern string, auth authMode, h HandlerFunc) {
	r.routes = append(r.routes, route{method: method, segs: strings.Split(pattern, "/"), auth: auth, h: h})
}

// resolve finds the route for method and path. A path registered only under
// other methods yields errMethodNotAllowed, anything else errs.ErrEndpointNotFound.
func (r *Router) resolve(method, path string) (*route, Params, error) {
	segs := strings.Split(path, "/")
	pathKnown := false
	for i := range r.routes {
		rt := &r.routes[i]
		params, ok := match(rt.segs, segs)
		if !ok {
			continue
		}
		if rt.method != method {
			pathKnown = true
			continue
		}
		return rt, params, nil
	}
	if pathKnown {
		return nil, nil, errMethodNotAllowed
	}
	return nil, nil, errs.ErrEndpointNotFound
}

func match(pattern, segs []string) (Params, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}
	var params Params
	for i, p := range pattern {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			if segs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = Params{}
			}
			params[p[1:len(p)-1]] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	return params, true
}
