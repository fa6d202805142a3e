// Package server provides the HTTP surface of the pipeline process.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [BasicRouter] registers method-qualified patterns on [http.ServeMux].
//
// # Endpoints
//
//   - /healthz : [HealthHandler] pings the datastore and lists scheduled jobs
//   - /metrics : Prometheus exposition from the metrics package
//   - /callback : [OAuthHandler], only while an account link is in progress
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code through the
// platform client and sends the result through a channel. It processes a single callback.
package server
