package obs

import "context"

type routePatternKey struct{}

// WithRoutePattern records the router pattern that matched the request, so
// log lines and metric labels can use a bounded label set instead of raw
// paths.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext returns the recorded pattern, or "" when no route
// matched.
func RoutePatternFromContext(ctx context.Context) string {
	v, _ := ctx.Value(routePatternKey{}).(string)
	return v
}
