// Package http exposes the reshape pipeline over a JSON API. Clients
// post wide tables and options to /api/v1/unpivot and receive the
// long records, validation report and per-sheet stats in one
// response. Prometheus metrics are served on /metrics.
package http
