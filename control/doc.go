// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection for canvasrelay.
//
// Provides:
//   - Prometheus collectors for connection, frame and delivery counters
//   - A named probe registry dumped by the HTTP debug endpoint
package control
