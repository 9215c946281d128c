package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/and161185/vsp-server/internal/wire"
)

// apiError is a non-2xx reply from the server.
type apiError struct {
	Status int
	Msg    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server: %d %s: %s", e.Status, wire.StatusText(e.Status), e.Msg)
}

// client speaks the one-request-per-connection protocol over raw TCP.
type client struct {
	addr    string
	token   string
	timeout time.Duration
	maxBody int64
}

func (c *client) do(ctx context.Context, req wire.Request) (*wire.Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if c.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}

	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	if c.token != "" {
		req.Headers["Authorization"] = "Bearer " + c.token
	}
	if _, err := conn.Write(wire.EncodeRequest(req)); err != nil {
		return nil, err
	}
	resp, err := wire.DecodeResponse(bufio.NewReader(conn), c.maxBody)
	if err != nil {
		return nil, err
	}
	if resp.Status >= 400 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(resp.Body, &body)
		return resp, &apiError{Status: resp.Status, Msg: body.Error}
	}
	return resp, nil
}

func (c *client) doJSON(ctx context.Context, method, target string, in, out any) error {
	req := wire.Request{Method: method, Target: target, Headers: map[string]string{}}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		req.Body = b
		req.Headers["Content-Type"] = "application/json"
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(resp.Body, out)
}

type loginResult struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

func (c *client) login(ctx context.Context, username, password string) (loginResult, error) {
	var out loginResult
	err := c.doJSON(ctx, "POST", "/api/login", map[string]string{"username": username, "password": password}, &out)
	return out, err
}

func (c *client) register(ctx context.Context, username, password string) (string, error) {
	var out struct {
		UserID string `json:"user_id"`
	}
	err := c.doJSON(ctx, "POST", "/api/register", map[string]string{"username": username, "password": password}, &out)
	return out.UserID, err
}

type sessionInfo struct {
	UploadID  string `json:"upload_id"`
	Title     string `json:"title"`
	TotalSize int64  `json:"total_size"`
	Received  int64  `json:"received"`
	Chunks    []int  `json:"chunks"`
	Missing   []int  `json:"missing"`
	Committed bool   `json:"committed"`
}

type videoInfo struct {
	VideoID   string    `json:"video_id"`
	Title     string    `json:"title"`
	MIME      string    `json:"mime"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created"`
}

type uploadOpts struct {
	Title     string
	MIME      string
	ChunkSize int64
	Retries   int
	// Progress, when set, is called after each stored chunk.
	Progress func(index int, sent, total int64)
}

// upload sends the file at path in fixed-size chunks and commits it with the
// whole-file digest. Chunk appends are idempotent, so each one is retried as is.
func (c *client) upload(ctx context.Context, path string, opts uploadOpts) (string, error) {
	if opts.ChunkSize <= 0 {
		return "", errors.New("chunk size must be positive")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", err
	}
	total := st.Size()

	var sess sessionInfo
	if err := c.doJSON(ctx, "POST", "/api/newvid", map[string]any{
		"title": opts.Title, "total_size": total, "mime": opts.MIME,
	}, &sess); err != nil {
		return "", err
	}

	h := sha256.New()
	buf := make([]byte, opts.ChunkSize)
	var sent int64
	for index := 0; ; index++ {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			chunk := buf[:n]
			h.Write(chunk)
			if err := c.putChunk(ctx, sess.UploadID, index, chunk, opts.Retries); err != nil {
				return sess.UploadID, err
			}
			sent += int64(n)
			if opts.Progress != nil {
				opts.Progress(index, sent, total)
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return sess.UploadID, err
		}
	}

	sum := hex.EncodeToString(h.Sum(nil))
	var out struct {
		VideoID string `json:"video_id"`
	}
	resp, err := c.do(ctx, wire.Request{
		Method:  "POST",
		Target:  "/api/commit",
		Headers: map[string]string{"Upload-Id": sess.UploadID, "Upload-Checksum": sum},
	})
	if err != nil {
		return sess.UploadID, err
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return sess.UploadID, err
	}
	return out.VideoID, nil
}

func (c *client) putChunk(ctx context.Context, uploadID string, index int, chunk []byte, retries int) error {
	sum := sha256.Sum256(chunk)
	req := wire.Request{
		Method: "POST",
		Target: "/api/upload_chunk",
		Headers: map[string]string{
			"Upload-Id":      uploadID,
			"Chunk-Index":    strconv.Itoa(index),
			"Chunk-Checksum": hex.EncodeToString(sum[:]),
		},
		Body: chunk,
	}
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if _, err = c.do(ctx, req); err == nil {
			return nil
		}
		var ae *apiError
		if errors.As(err, &ae) && ae.Status < 500 {
			// the server rejected the chunk; resending will not help
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 200 * time.Millisecond):
		}
	}
	return fmt.Errorf("chunk %d: %w", index, err)
}

func (c *client) status(ctx context.Context, uploadID string) (sessionInfo, error) {
	var out sessionInfo
	err := c.doJSON(ctx, "GET", "/api/upload/"+uploadID, nil, &out)
	return out, err
}

func (c *client) list(ctx context.Context) ([]videoInfo, error) {
	var out struct {
		Videos []videoInfo `json:"videos"`
	}
	err := c.doJSON(ctx, "GET", "/api/videos", nil, &out)
	return out.Videos, err
}

// get fetches a video, or the byte range described by rangeSpec ("3-", "0-99").
func (c *client) get(ctx context.Context, id, rangeSpec string) (*wire.Response, error) {
	req := wire.Request{Method: "GET", Target: "/api/video/" + id, Headers: map[string]string{}}
	if rangeSpec != "" {
		req.Headers["Range"] = "bytes=" + rangeSpec
	}
	return c.do(ctx, req)
}

func (c *client) remove(ctx context.Context, id string) error {
	return c.doJSON(ctx, "DELETE", "/api/video/"+id, nil, nil)
}
