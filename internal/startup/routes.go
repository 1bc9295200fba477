package startup

import (
	"slices"
	"strings"

	"github.com/gorilla/mux"

	"media-catalog/internal/logging"
)

// RouteInfo is one method/path pair of a mux.Router.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes lists the router's routes in registration order. Routes without
// a method matcher are reported with method "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		tpl, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: tpl, Name: route.GetName()})
		}
		return nil
	})
	return routes, err
}

// LogHTTPRoutes logs the route count, and the table grouped by prefix at
// debug level.
func LogHTTPRoutes(router *mux.Router) {
	section("OPS SERVER SETUP")

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	logging.Info("  %d routes registered", len(routes))
	if !logging.IsDebugEnabled() {
		return
	}

	byGroup := make(map[string][]RouteInfo)
	var names []string
	for _, r := range routes {
		g := getRouteGroup(r.Path)
		if _, seen := byGroup[g]; !seen {
			names = append(names, g)
		}
		byGroup[g] = append(byGroup[g], r)
	}
	slices.Sort(names)

	for _, g := range names {
		label := g
		if label == "" {
			label = "root"
		}
		logging.Debug("  [%s]", label)
		for _, r := range byGroup[g] {
			logging.Debug("    %-6s %s", r.Method, r.Path)
		}
	}
}

// getRouteGroup returns the first path segment, or "api/<segment>" for
// paths under /api.
func getRouteGroup(path string) string {
	head, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if head != "api" || rest == "" {
		return head
	}
	sub, _, _ := strings.Cut(rest, "/")
	return "api/" + sub
}
