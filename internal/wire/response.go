package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Response is a response message before encoding.
type Response struct {
	Status  int
	Reason  string
	Headers map[string]string
	Body    []byte
}

// NewResponse builds a response with the standard reason phrase for status.
func NewResponse(status int, headers map[string]string, body []byte) Response {
	if headers == nil {
		headers = map[string]string{}
	}
	return Response{Status: status, Reason: StatusText(status), Headers: headers, Body: body}
}

// Encode serializes resp. Content-Length and Connection: close are added when
// absent; the cross-origin allowance is always emitted.
func Encode(resp Response) []byte {
	headers := make(map[string]string, len(resp.Headers)+3)
	for k, v := range resp.Headers {
		headers[k] = v
	}
	if _, ok := headers["Content-Length"]; !ok {
		headers["Content-Length"] = strconv.Itoa(len(resp.Body))
	}
	if _, ok := headers["Connection"]; !ok {
		headers["Connection"] = "close"
	}
	headers["Access-Control-Allow-Origin"] = "*"

	var b bytes.Buffer
	b.Grow(128 + len(resp.Body))
	fmt.Fprintf(&b, "HTTP/1.1 %d %s", resp.Status, resp.Reason)
	b.Write(crlf)
	writeHeaderBlock(&b, headers)
	b.Write(crlf)
	b.Write(resp.Body)
	return b.Bytes()
}

// WriteResponse encodes resp onto w.
func WriteResponse(w io.Writer, resp Response) error {
	_, err := w.Write(Encode(resp))
	return err
}

// DecodeResponse reads one response from r. The body is framed by Content-Length.
func DecodeResponse(r *bufio.Reader, maxBody int64) (*Response, error) {
	line, err := readLine(r, MaxHeaderBytes)
	if err != nil {
		return nil, err
	}
	// "HTTP/1.1 206 Partial Content"
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) < 2 {
		return nil, ErrMalformedStartLine
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, ErrMalformedStartLine
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}
	headers, err := readHeaders(r)
	if err != nil {
		return nil, err
	}
	body, err := readBody(r, headers, maxBody)
	if err != nil {
		return nil, err
	}
	return &Response{Status: status, Reason: reason, Headers: headers, Body: body}, nil
}

var statusText = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	206: "Partial Content",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	409: "Conflict",
	416: "Range Not Satisfiable",
	422: "Unprocessable Entity",
	429: "Too Many Requests",
	500: "Internal Server Error",
}

// StatusText returns the reason phrase for code, or "Status" when unknown.
func StatusText(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return "Status"
}
