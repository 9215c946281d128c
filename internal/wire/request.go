package wire

import (
	"bufio"
	"bytes"
	"net/url"
	"strconv"
	"strings"
)

// Request is a decoded request message. It lives for one connection cycle.
type Request struct {
	Method  string
	Target  string
	Version string
	Headers map[string]string
	Body    []byte
}

// Header returns the value stored under the exact key.
func (r *Request) Header(key string) string {
	return r.Headers[key]
}

// Path returns the target without its query.
func (r *Request) Path() string {
	p, _, _ := strings.Cut(r.Target, "?")
	return p
}

// Query returns the parsed query of the target; a malformed query yields empty values.
func (r *Request) Query() url.Values {
	_, q, ok := strings.Cut(r.Target, "?")
	if !ok {
		return url.Values{}
	}
	v, err := url.ParseQuery(q)
	if err != nil {
		return url.Values{}
	}
	return v
}

// Decode reads one request from r. maxBody bounds Content-Length when positive.
//
// A two-field start line is accepted with the version defaulted and no headers
// or body read. Decode errors are fatal to the connection.
func Decode(r *bufio.Reader, maxBody int64) (*Request, error) {
	line, err := readLine(r, MaxHeaderBytes)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(line))
	switch {
	case len(fields) == 2:
		return &Request{
			Method:  fields[0],
			Target:  fields[1],
			Version: DefaultVersion,
			Headers: map[string]string{},
		}, nil
	case len(fields) < 3:
		return nil, ErrMalformedStartLine
	}

	headers, err := readHeaders(r)
	if err != nil {
		return nil, err
	}
	body, err := readBody(r, headers, maxBody)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:  fields[0],
		Target:  fields[1],
		Version: fields[2],
		Headers: headers,
		Body:    body,
	}, nil
}

// EncodeRequest serializes a request for the client side. Content-Length is
// injected when the body is not empty and the caller did not set it.
func EncodeRequest(req Request) []byte {
	var b bytes.Buffer
	version := req.Version
	if version == "" {
		version = DefaultVersion
	}
	b.WriteString(req.Method + " " + req.Target + " " + version)
	b.Write(crlf)

	headers := make(map[string]string, len(req.Headers)+1)
	for k, v := range req.Headers {
		headers[k] = v
	}
	if _, ok := headers["Content-Length"]; !ok && len(req.Body) > 0 {
		headers["Content-Length"] = strconv.Itoa(len(req.Body))
	}
	writeHeaderBlock(&b, headers)
	b.Write(crlf)
	b.Write(req.Body)
	return b.Bytes()
}
