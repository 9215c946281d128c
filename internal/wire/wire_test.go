package wire

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func reader(s string) *bufio.Reader { return bufio.NewReader(strings.NewReader(s)) }

func TestDecode_StartLineFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		line                    string
		method, target, version string
	}{
		{"GET /api/videos HTTP/1.1", "GET", "/api/videos", "HTTP/1.1"},
		{"POST  /api/login   HTTP/1.0", "POST", "/api/login", "HTTP/1.0"},
		{"GET /x HTTP/1.1 trailing junk", "GET", "/x", "HTTP/1.1"},
	}
	for _, c := range cases {
		req, err := Decode(reader(c.line+"\r\n\r\n"), 0)
		require.NoError(t, err, c.line)
		require.Equal(t, c.method, req.Method)
		require.Equal(t, c.target, req.Target)
		require.Equal(t, c.version, req.Version)
		require.Empty(t, req.Body)
	}
}

func TestDecode_TwoFieldsDefaultsVersion(t *testing.T) {
	t.Parallel()

	// Anything after the start line is left unread.
	req, err := Decode(reader("GET /api/videos\r\nHost: x\r\n\r\n"), 0)
	require.NoError(t, err)
	require.Equal(t, "GET", req.Method)
	require.Equal(t, "/api/videos", req.Target)
	require.Equal(t, DefaultVersion, req.Version)
	require.Empty(t, req.Headers)
	require.Empty(t, req.Body)
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"\r\n", "GET\r\n", "   \r\n"} {
		_, err := Decode(reader(s), 0)
		require.ErrorIs(t, err, ErrMalformedStartLine, "%q", s)
	}
}

func TestDecode_ConnectionTerminated(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		"",
		"GET /x HTTP/1.1",
		"GET /x HTTP/1.1\n",
		"GET /x HTTP/1.1\r\nHost: a\r\n",
		"POST /x HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc",
	} {
		_, err := Decode(reader(s), 0)
		require.ErrorIs(t, err, ErrConnectionTerminated, "%q", s)
	}
}

func TestDecode_HeadersAndBody(t *testing.T) {
	t.Parallel()

	raw := "POST /api/upload_chunk HTTP/1.1\r\n" +
		"Upload-Id : abc \r\n" +
		"no colon here\r\n" +
		"X-Dup: 1\r\n" +
		"X-Dup: 2\r\n" +
		"Range: bytes=0-1\r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		"AAAAAextra"
	req, err := Decode(reader(raw), 0)
	require.NoError(t, err)
	require.Equal(t, "abc", req.Header("Upload-Id"))
	require.Equal(t, "2", req.Header("X-Dup"))
	require.Equal(t, "bytes=0-1", req.Header("Range"))
	require.Equal(t, []byte("AAAAA"), req.Body)
	require.Len(t, req.Headers, 4)
}

func TestDecode_HeaderKeysAreCaseSensitive(t *testing.T) {
	t.Parallel()

	req, err := Decode(reader("GET /x HTTP/1.1\r\ncontent-length: 3\r\n\r\nabc"), 0)
	require.NoError(t, err)
	require.Equal(t, "3", req.Header("content-length"))
	require.Empty(t, req.Header("Content-Length"))
	require.Empty(t, req.Body)
}

func TestDecode_LenientContentLength(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"abc", "-4", "0", ""} {
		req, err := Decode(reader("POST /x HTTP/1.1\r\nContent-Length: "+v+"\r\n\r\nbody"), 0)
		require.NoError(t, err, v)
		require.Empty(t, req.Body, v)
	}
}

func TestDecode_HeadersTooLarge(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("GET /x HTTP/1.1\r\n")
	line := "X-Pad: " + strings.Repeat("a", 1000) + "\r\n"
	for b.Len() < MaxHeaderBytes+2000 {
		b.WriteString(line)
	}
	b.WriteString("\r\n")
	_, err := Decode(reader(b.String()), 0)
	require.ErrorIs(t, err, ErrHeadersTooLarge)

	// One enormous line is cut off before it is fully buffered.
	_, err = Decode(reader("GET /x HTTP/1.1\r\nX: "+strings.Repeat("b", MaxHeaderBytes+10)+"\r\n\r\n"), 0)
	require.ErrorIs(t, err, ErrHeadersTooLarge)
}

func TestDecode_BodyLimit(t *testing.T) {
	t.Parallel()

	_, err := Decode(reader("POST /x HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello world"), 10)
	require.ErrorIs(t, err, ErrBodyTooLarge)

	req, err := Decode(reader("POST /x HTTP/1.1\r\nContent-Length: 10\r\n\r\nhelloworld"), 10)
	require.NoError(t, err)
	require.Equal(t, "helloworld", string(req.Body))
}

func TestRequest_PathAndQuery(t *testing.T) {
	t.Parallel()

	r := &Request{Target: "/api/video/abc?access_token=t%2Bk&x=1"}
	require.Equal(t, "/api/video/abc", r.Path())
	require.Equal(t, "t+k", r.Query().Get("access_token"))

	r = &Request{Target: "/api/videos"}
	require.Equal(t, "/api/videos", r.Path())
	require.Empty(t, r.Query())
}

func TestEncode_InjectsDefaults(t *testing.T) {
	t.Parallel()

	out := string(Encode(NewResponse(200, map[string]string{"Content-Type": "application/json"}, []byte(`{"a":1}`))))
	require.Equal(t, "HTTP/1.1 200 OK\r\n"+
		"Access-Control-Allow-Origin: *\r\n"+
		"Connection: close\r\n"+
		"Content-Length: 7\r\n"+
		"Content-Type: application/json\r\n"+
		"\r\n"+
		`{"a":1}`, out)
}

func TestEncode_CallerOverrides(t *testing.T) {
	t.Parallel()

	resp := Response{Status: 206, Reason: "Partial Content", Headers: map[string]string{
		"Content-Length":              "99",
		"Connection":                  "keep-alive",
		"Access-Control-Allow-Origin": "https://example.org",
	}}
	out := string(Encode(resp))
	require.True(t, strings.HasPrefix(out, "HTTP/1.1 206 Partial Content\r\n"))
	require.Contains(t, out, "Content-Length: 99\r\n")
	require.Contains(t, out, "Connection: keep-alive\r\n")
	require.Contains(t, out, "Access-Control-Allow-Origin: *\r\n")
	require.NotContains(t, out, "example.org")
	require.True(t, strings.HasSuffix(out, "\r\n\r\n"))

	// Encode must not mutate the caller's map.
	require.Equal(t, "https://example.org", resp.Headers["Access-Control-Allow-Origin"])
}

func TestResponse_RoundTripThroughClientDecoder(t *testing.T) {
	t.Parallel()

	body := []byte("AABBBBB")
	enc := Encode(NewResponse(206, map[string]string{"Content-Range": "bytes 3-9/10"}, body))
	resp, err := DecodeResponse(bufio.NewReader(strings.NewReader(string(enc))), 0)
	require.NoError(t, err)
	require.Equal(t, 206, resp.Status)
	require.Equal(t, "Partial Content", resp.Reason)
	require.Equal(t, "bytes 3-9/10", resp.Headers["Content-Range"])
	require.Equal(t, body, resp.Body)
}

func TestEncodeRequest_DecodesBack(t *testing.T) {
	t.Parallel()

	raw := EncodeRequest(Request{
		Method:  "POST",
		Target:  "/api/upload_chunk",
		Headers: map[string]string{"Upload-Id": "u1", "Chunk-Index": "3"},
		Body:    []byte("chunk"),
	})
	req, err := Decode(bufio.NewReader(strings.NewReader(string(raw))), 0)
	require.NoError(t, err)
	require.Equal(t, "POST", req.Method)
	require.Equal(t, DefaultVersion, req.Version)
	require.Equal(t, "3", req.Header("Chunk-Index"))
	require.Equal(t, "5", req.Header("Content-Length"))
	require.Equal(t, []byte("chunk"), req.Body)
}
