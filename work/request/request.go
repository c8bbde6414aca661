package request

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Error kinds for failures while establishing the socket. Every failure of a
// single fetch attempt maps to exactly one kind so callers can tell a DNS
// problem from a refused connect or a broken TLS handshake.
const (
	KindScheme  = "scheme"
	KindDNS     = "dns"
	KindConnect = "connect"
	KindTLS     = "tls"
)

// fallback body size when the server sends no content-length; playlists are
// small so this is generous
const defaultBodySize = 10000

// headers may not grow without bound on a hostile server
const maxHeaderBytes = 64 * 1024

// ConnectError is a failure to establish the connection: unsupported scheme,
// DNS resolution, TCP connect or TLS handshake. Fatal to the single fetch
// attempt only.
type ConnectError struct {
	Kind string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect failed (%s): %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ParseError is a malformed or truncated response head: missing status line,
// unparseable status code or headers cut off mid-line.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return e.Reason }

// Headers is the parsed result of one HTTP(S) exchange: status code, status
// message, protocol version and a case-insensitive header map. Keys are
// stored lower-cased; on duplicate headers the last occurrence wins.
// Immutable once parsed.
type Headers struct {
	Code    int
	Message string
	Version string
	Headers map[string]string
}

// Get returns the value for a header name, matched case-insensitively.
func (h *Headers) Get(key string) string {
	return h.Headers[strings.ToLower(key)]
}

// Request is a single in-flight HTTP(S) exchange over one raw socket. The
// response head is parsed eagerly in New; the body is only consumed when
// ReadContent is called.
type Request struct {
	url      *url.URL
	Info     Headers
	conn     net.Conn
	reader   *bufio.Reader
	readDone bool
	content  string
	readErr  error
}

// New opens a TCP (optionally TLS-wrapped) connection to the URL's host,
// sends a bare GET and parses the response status line and headers byte by
// byte. Only http and https are supported. One attempt, one socket, no
// retries; the timeout covers connect, handshake and all reads.
func New(urlStr, userAgent string, timeout time.Duration) (*Request, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, &ConnectError{Kind: KindScheme, Err: err}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConnectError{Kind: KindScheme, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}

	host := u.Hostname()
	if host == "" {
		return nil, &ConnectError{Kind: KindScheme, Err: fmt.Errorf("missing host in %q", urlStr)}
	}

	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), timeout)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return nil, &ConnectError{Kind: KindDNS, Err: err}
		}
		return nil, &ConnectError{Kind: KindConnect, Err: err}
	}

	// one deadline covers the whole exchange; a stalled read surfaces as a
	// timeout error instead of blocking the worker forever
	conn.SetDeadline(time.Now().Add(timeout))

	if u.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: host})
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, &ConnectError{Kind: KindTLS, Err: err}
		}
		conn = tlsConn
		conn.SetDeadline(time.Now().Add(timeout))
	}

	req := &Request{
		url:    u,
		conn:   conn,
		reader: bufio.NewReader(conn),
	}

	if err := req.sendRequest(host, userAgent); err != nil {
		conn.Close()
		return nil, &ConnectError{Kind: KindConnect, Err: err}
	}

	info, err := req.readHead()
	if err != nil {
		conn.Close()
		return nil, err
	}
	req.Info = *info

	return req, nil
}

// URL returns the URL this request was made against.
func (r *Request) URL() *url.URL { return r.url }

// Close releases the underlying socket.
func (r *Request) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// ReadContent reads the response body once and caches the result; subsequent
// calls return the same content and the same error without touching the
// socket again. Exactly content-length bytes are read when the header is
// present, a fixed fallback size otherwise. A short read keeps whatever
// arrived, and invalid UTF-8 is passed through rather than failing the fetch.
// Bodies served with content-encoding gzip are transparently decompressed.
func (r *Request) ReadContent() (string, error) {
	if r.readDone {
		return r.content, r.readErr
	}
	r.readDone = true

	size := defaultBodySize
	if cl := r.Info.Get("content-length"); cl != "" {
		if n, err := strconv.Atoi(cl); err == nil && n >= 0 && n < 10*1024*1024 {
			size = n
		}
	}

	buf := make([]byte, size)
	n, err := io.ReadFull(r.reader, buf)
	if err != nil && n == 0 && err != io.EOF && err != io.ErrUnexpectedEOF {
		r.readErr = err
		return "", err
	}
	buf = buf[:n]

	if strings.Contains(strings.ToLower(r.Info.Get("content-encoding")), "gzip") {
		if gz, err := gzip.NewReader(bytes.NewReader(buf)); err == nil {
			if plain, err := io.ReadAll(gz); err == nil {
				buf = plain
			}
			gz.Close()
		}
	}

	r.content = string(buf)
	return r.content, nil
}

// sendRequest writes the GET request line and the fixed header set. The
// connection is never reused, so Connection: close is always requested.
func (r *Request) sendRequest(host, userAgent string) error {
	path := r.url.RequestURI()
	if path == "" {
		path = "/"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.0\r\n", path)
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	b.WriteString("Accept: */*\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")

	if _, err := io.WriteString(r.conn, b.String()); err != nil {
		return err
	}
	return nil
}

// readHead parses the status line and then accumulates header lines until the
// blank line that terminates the head.
func (r *Request) readHead() (*Headers, error) {
	line, complete, err := readUntil(r.reader, []byte("\r\n"))
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, &ParseError{Reason: "truncated status line"}
	}

	info, err := decodeStatusLine(strings.TrimSuffix(line, "\r\n"))
	if err != nil {
		return nil, err
	}

	// some servers close the socket right after the last header without a
	// terminating blank line; whatever arrived is still usable
	block, _, err := readUntil(r.reader, []byte("\r\n\r\n"))
	if err != nil {
		return nil, err
	}

	for _, line := range strings.Split(block, "\r\n") {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		if key != "" {
			info.Headers[key] = value
		}
	}

	return info, nil
}

// decodeStatusLine parses "HTTP/x.y code message" or the legacy "ICY code
// message" status line used by shoutcast-era streaming servers, which has no
// protocol version field.
func decodeStatusLine(line string) (*Headers, error) {
	switch {
	case strings.HasPrefix(line, "HTTP/"):
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 2 {
			return nil, &ParseError{Reason: fmt.Sprintf("HTTP status line too short: %q", line)}
		}
		code, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("bad status code in %q", line)}
		}
		message := ""
		if len(parts) == 3 {
			message = parts[2]
		}
		return &Headers{
			Code:    code,
			Message: message,
			Version: strings.TrimPrefix(parts[0], "HTTP/"),
			Headers: make(map[string]string),
		}, nil

	case strings.HasPrefix(line, "ICY"):
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 2 {
			return nil, &ParseError{Reason: fmt.Sprintf("ICY status line too short: %q", line)}
		}
		code, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("bad status code in %q", line)}
		}
		message := ""
		if len(parts) == 3 {
			message = parts[2]
		}
		return &Headers{
			Code:    code,
			Message: message,
			Headers: make(map[string]string),
		}, nil

	default:
		return nil, &ParseError{Reason: "HTTP status line missing"}
	}
}

// readUntil consumes the stream byte by byte until the terminator sequence
// has been seen, returning everything read including the terminator. An EOF
// before the terminator returns the partial data with complete=false; the
// caller decides whether that is fatal.
func readUntil(reader *bufio.Reader, cond []byte) (data string, complete bool, err error) {
	var buf []byte
	for {
		b, e := reader.ReadByte()
		if e != nil {
			if e == io.EOF {
				return string(buf), false, nil
			}
			return "", false, &ParseError{Reason: fmt.Sprintf("reading response head: %v", e)}
		}
		buf = append(buf, b)
		if len(buf) >= len(cond) && bytes.Equal(buf[len(buf)-len(cond):], cond) {
			return string(buf), true, nil
		}
		if len(buf) > maxHeaderBytes {
			return "", false, &ParseError{Reason: "response head too large"}
		}
	}
}
