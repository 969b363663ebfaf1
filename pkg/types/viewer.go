package types

import "context"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Viewer is the authenticated caller on whose behalf a query runs.
// The pair is trusted verbatim; identity checks happen before it is built.
type Viewer struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (v Viewer) IsAdmin() bool {
	return v.Role == RoleAdmin
}

func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

type viewerKey struct{}

// WithViewer stores the viewer on the request context.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

// ViewerFromContext returns the viewer set by the auth middleware.
func ViewerFromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(viewerKey{}).(Viewer)
	return v, ok
}
