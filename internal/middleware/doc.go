// Package middleware provides HTTP middleware for the ops server:
//   - request logging in W3C Extended Log Format, with probes skipped by default
//   - Prometheus request metrics labelled by route template
//
// Both are installed with mux.Router.Use so the route is known when
// metrics are recorded.
package middleware
