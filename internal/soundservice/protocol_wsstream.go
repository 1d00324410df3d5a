package soundservice

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WSStreamDirective carries the streaming source's ws/wss URL. This is
// the long-lived-connection variant of the URL-backed loading shape
// named in spec.md §4.6: instead of one GET request returning a body,
// the server pushes binary frames for as long as the connection stays
// open, for live/remote audio sources that don't have a fixed length.
type WSStreamDirective struct {
	URL string
}

// WSStreamProtocol opens a websocket connection and exposes the binary
// frames it receives as a single ordered byte stream.
type WSStreamProtocol struct {
	dialer *websocket.Dialer
}

// NewWSStreamProtocol constructs the protocol with a bounded handshake
// timeout, matching the teacher's pattern of giving every outbound
// network client an explicit timeout rather than relying on defaults.
func NewWSStreamProtocol(handshakeTimeout time.Duration) *WSStreamProtocol {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &WSStreamProtocol{dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout}}
}

func (p *WSStreamProtocol) OpenURI(name string, directive Directive) (io.ReadCloser, error) {
	d, ok := directive.(WSStreamDirective)
	if !ok || d.URL == "" {
		return nil, errors.New("soundservice: wsstream protocol requires a WSStreamDirective with a URL")
	}
	if _, err := url.Parse(d.URL); err != nil {
		return nil, fmt.Errorf("soundservice: parse wsstream url %q: %w", d.URL, err)
	}

	conn, _, err := p.dialer.Dial(d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("soundservice: dial %q: %w", d.URL, err)
	}

	pr, pw := io.Pipe()
	s := &wsStream{conn: conn, pr: pr}
	go s.pump(pw)
	return s, nil
}

func (WSStreamProtocol) Suffix(directive Directive) string {
	if d, ok := directive.(WSStreamDirective); ok {
		return d.URL
	}
	return ""
}

// wsStream adapts a websocket connection's sequence of binary messages
// into an io.ReadCloser: a goroutine reads frames and writes their
// payloads into a pipe, which the caller drains like any other stream.
type wsStream struct {
	conn *websocket.Conn
	pr   *io.PipeReader
}

func (s *wsStream) pump(pw *io.PipeWriter) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if _, err := pw.Write(data); err != nil {
			pw.CloseWithError(err)
			return
		}
	}
}

func (s *wsStream) Read(p []byte) (int, error) { return s.pr.Read(p) }

func (s *wsStream) Close() error {
	s.pr.Close()
	return s.conn.Close()
}
