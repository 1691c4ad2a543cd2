// File: canvas/page.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package canvas

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net"
	"net/url"
)

//go:embed page.html
var pageSource string

var pageTemplate = template.Must(template.New("page").Parse(pageSource))

// Page renders the drawing test page connected to wsURL.
func Page(wsURL string) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, struct{ WSURL string }{wsURL}); err != nil {
		return nil, fmt.Errorf("canvas: render page: %w", err)
	}
	return buf.Bytes(), nil
}

// WebSocketURL builds the ws:// URL the page should dial. wsAddr is the
// relay listen address; an empty or unspecified host is replaced by the
// host the page was requested on.
func WebSocketURL(wsAddr, requestHost string) string {
	host, port, err := net.SplitHostPort(wsAddr)
	if err != nil {
		return (&url.URL{Scheme: "ws", Host: wsAddr, Path: "/"}).String()
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = requestHost
		if h, _, err := net.SplitHostPort(requestHost); err == nil {
			host = h
		}
		if host == "" {
			host = "localhost"
		}
	}
	return (&url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: "/"}).String()
}
