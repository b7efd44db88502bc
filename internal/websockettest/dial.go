// Package websockettest holds websocket helpers shared by host tests.
package websockettest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// URL rewrites an httptest server URL into a websocket URL for path.
func URL(serverURL, path string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + path
}

// Dial connects to urlStr and returns the handshake response even on failure so
// tests can assert rejection status codes.
func Dial(urlStr string, header http.Header) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	return dialer.Dial(urlStr, header)
}

// DialIgnoringPongs establishes a connection that never answers pings, so tests
// can simulate an unresponsive peer.
func DialIgnoringPongs(urlStr string, header http.Header) (*websocket.Conn, *http.Response, error) {
	conn, resp, err := Dial(urlStr, header)
	if err != nil {
		return nil, resp, err
	}
	conn.SetPingHandler(func(string) error { return nil })
	conn.SetPongHandler(func(string) error { return nil })
	return conn, resp, nil
}

// ReadUntil decodes JSON text frames into a generic map until match accepts one
// or timeout elapses.
func ReadUntil(conn *websocket.Conn, timeout time.Duration, match func(map[string]any) bool) (map[string]any, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		if match == nil || match(msg) {
			return msg, nil
		}
	}
}

// OfType matches messages whose "type" field equals kind.
func OfType(kind string) func(map[string]any) bool {
	return func(msg map[string]any) bool {
		return msg["type"] == kind
	}
}
