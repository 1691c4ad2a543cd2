// File: canvas/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package canvas defines the drawing-event convention carried by relay
// messages and serves the browser test page that speaks it.
//
// Events are JSON objects: {"x":<number>,"y":<number>,"type":"start"|"move"}
// for strokes and {"type":"clear"} to wipe the canvas. The relay itself is
// payload-agnostic; Validate is an optional message filter.
package canvas
