// Package wire implements the minimal HTTP/1.1 message framing used by the server:
// one request is decoded from a connection and one response is encoded back.
// Chunked transfer encoding and persistent connections are not supported.
package wire

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
)

// MaxHeaderBytes caps the cumulative size of header lines (CRLF excluded).
const MaxHeaderBytes = 64 * 1024

// DefaultVersion is assumed when a start line carries only two fields.
const DefaultVersion = "HTTP/1.1"

var (
	// ErrConnectionTerminated indicates the peer closed the stream mid-message.
	ErrConnectionTerminated = errors.New("connection terminated")
	// ErrMalformedStartLine indicates a start line that does not tokenize into 2 or 3+ fields.
	ErrMalformedStartLine = errors.New("malformed start line")
	// ErrHeadersTooLarge indicates the header block exceeded MaxHeaderBytes.
	ErrHeadersTooLarge = errors.New("headers too large")
	// ErrBodyTooLarge indicates Content-Length exceeded the configured body limit.
	ErrBodyTooLarge = errors.New("body too large")
)

var crlf = []byte("\r\n")

// readLine returns the next CRLF-terminated line without its terminator.
// A bare LF does not end a line. limit bounds the returned length.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		buf = append(buf, frag...)
		if err == nil {
			if bytes.HasSuffix(buf, crlf) {
				return buf[:len(buf)-2], nil
			}
		} else if !errors.Is(err, bufio.ErrBufferFull) {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrConnectionTerminated
			}
			return nil, err
		}
		if len(buf) > limit+2 {
			return nil, ErrHeadersTooLarge
		}
	}
}

// readHeaders consumes header lines up to the blank line. Lines without a colon
// are counted but ignored; duplicate keys keep the last value.
func readHeaders(r *bufio.Reader) (map[string]string, error) {
	headers := map[string]string{}
	total := 0
	for {
		line, err := readLine(r, MaxHeaderBytes-total)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			return headers, nil
		}
		if k, v, ok := strings.Cut(string(line), ":"); ok {
			headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		total += len(line)
		if total > MaxHeaderBytes {
			return nil, ErrHeadersTooLarge
		}
	}
}

// contentLength returns the declared body length; absent, non-numeric or
// non-positive values mean no body.
func contentLength(headers map[string]string) int64 {
	v, ok := headers["Content-Length"]
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func readBody(r *bufio.Reader, headers map[string]string, maxBody int64) ([]byte, error) {
	n := contentLength(headers)
	if n == 0 {
		return nil, nil
	}
	if maxBody > 0 && n > maxBody {
		return nil, ErrBodyTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrConnectionTerminated
		}
		return nil, err
	}
	return body, nil
}

// writeHeaderBlock emits headers in key order followed by the blank line.
func writeHeaderBlock(b *bytes.Buffer, headers map[string]string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(headers[k])
		b.Write(crlf)
	}
}
