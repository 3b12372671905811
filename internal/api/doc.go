// Package api hosts the HTTP server, middleware, and REST handlers that front
// the URL frontier. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawler/batches to submit crawl results.
//   - POST /v1/crawler/batches/new to lease a batch of URLs to crawl.
//   - POST /v1/crawler/scores for bulk score lookups.
//   - GET /v1/crawler/urls and /v1/crawler/stats for inspection.
package api
