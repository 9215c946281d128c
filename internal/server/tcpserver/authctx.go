package tcpserver

import "context"

type ctxKey string

const (
	principalKey ctxKey = "vsp.principal"
	peerKey      ctxKey = "vsp.peer"
)

// WithPrincipal stores the authenticated principal in context.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromCtx fetches the principal from context.
func PrincipalFromCtx(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey).(string)
	return p, ok && p != ""
}

func withPeer(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, peerKey, addr)
}

func peerFromCtx(ctx context.Context) string {
	p, _ := ctx.Value(peerKey).(string)
	return p
}
