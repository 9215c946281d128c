package tcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/model"
	"github.com/and161185/vsp-server/internal/wire"
)

// --- Auth ---

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginReply struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
}

func (s *Server) login(ctx context.Context, req *wire.Request, _ Params) (wire.Response, error) {
	var c credentials
	if err := decodeJSON(req.Body, &c); err != nil {
		return wire.Response{}, err
	}
	tok, u, err := s.auth.Login(ctx, c.Username, c.Password, peerFromCtx(ctx))
	if err != nil {
		return wire.Response{}, err
	}
	return jsonResponse(200, loginReply{
		AccessToken: tok.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   tok.ExpiresAt,
		UserID:      u.ID.String(),
		Username:    u.Username,
	}), nil
}

func (s *Server) register(ctx context.Context, req *wire.Request, _ Params) (wire.Response, error) {
	var c credentials
	if err := decodeJSON(req.Body, &c); err != nil {
		return wire.Response{}, err
	}
	id, err := s.auth.Register(ctx, c.Username, c.Password)
	if err != nil {
		return wire.Response{}, err
	}
	return jsonResponse(201, map[string]string{"user_id": id}), nil
}

// --- Uploads ---

type newVideoRequest struct {
	Title     string `json:"title"`
	TotalSize int64  `json:"total_size"`
	MIME      string `json:"mime"`
}

type sessionReply struct {
	UploadID  string `json:"upload_id"`
	Title     string `json:"title"`
	MIME      string `json:"mime"`
	TotalSize int64  `json:"total_size"`
	Received  int64  `json:"received"`
	Chunks    []int  `json:"chunks"`
	Missing   []int  `json:"missing"`
	Committed bool   `json:"committed"`
}

func toSessionReply(sess model.UploadSession) sessionReply {
	chunks := []int{}
	for _, c := range sess.SortedChunks() {
		chunks = append(chunks, c.Index)
	}
	return sessionReply{
		UploadID:  sess.ID,
		Title:     sess.Title,
		MIME:      sess.MIME,
		TotalSize: sess.TotalSize,
		Received:  sess.Received,
		Chunks:    chunks,
		Missing:   sess.MissingIndices(),
		Committed: sess.Committed,
	}
}

func (s *Server) newVideo(ctx context.Context, req *wire.Request, _ Params) (wire.Response, error) {
	var in newVideoRequest
	if len(req.Body) > 0 {
		if err := decodeJSON(req.Body, &in); err != nil {
			return wire.Response{}, err
		}
	}
	owner, _ := PrincipalFromCtx(ctx)
	sess, err := s.uploads.CreateSession(ctx, owner, in.Title, in.TotalSize, in.MIME)
	if err != nil {
		return wire.Response{}, err
	}
	return jsonResponse(200, toSessionReply(sess)), nil
}

func (s *Server) uploadChunk(ctx context.Context, req *wire.Request, _ Params) (wire.Response, error) {
	id, err := requiredHeader(req, "Upload-Id")
	if err != nil {
		return wire.Response{}, err
	}
	raw, err := requiredHeader(req, "Chunk-Index")
	if err != nil {
		return wire.Response{}, err
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		return wire.Response{}, fmt.Errorf("%w: bad Chunk-Index %q", errs.ErrValidation, raw)
	}
	owner, _ := PrincipalFromCtx(ctx)
	sess, err := s.uploads.AppendChunk(ctx, owner, id, index, req.Body, req.Header("Chunk-Checksum"))
	if err != nil {
		return wire.Response{}, err
	}
	return jsonResponse(200, map[string]any{
		"ok":        true,
		"upload_id": sess.ID,
		"index":     index,
		"received":  sess.Received,
	}), nil
}

type commitRequest struct {
	UploadID string `json:"upload_id"`
	SHA256   string `json:"sha256"`
}

func (s *Server) commit(ctx context.Context, req *wire.Request, _ Params) (wire.Response, error) {
	var in commitRequest
	if len(req.Body) > 0 {
		if err := decodeJSON(req.Body, &in); err != nil {
			return wire.Response{}, err
		}
	}
	id := req.Header("Upload-Id")
	if id == "" {
		id = in.UploadID
	}
	if id == "" {
		return wire.Response{}, fmt.Errorf("%w: missing Upload-Id", errs.ErrValidation)
	}
	sum := req.Header("Upload-Checksum")
	if sum == "" {
		sum = in.SHA256
	}
	owner, _ := PrincipalFromCtx(ctx)
	v, err := s.uploads.Commit(ctx, owner, id, sum)
	if err != nil {
		return wire.Response{}, err
	}
	return jsonResponse(200, map[string]any{
		"ok":       true,
		"video_id": v.ID,
		"size":     v.Size,
	}), nil
}

func (s *Server) uploadStatus(ctx context.Context, _ *wire.Request, params Params) (wire.Response, error) {
	owner, _ := PrincipalFromCtx(ctx)
	sess, err := s.uploads.Status(ctx, owner, params["id"])
	if err != nil {
		return wire.Response{}, err
	}
	return jsonResponse(200, toSessionReply(sess)), nil
}

// --- Videos ---

type videoView struct {
	VideoID   string    `json:"video_id"`
	Title     string    `json:"title"`
	MIME      string    `json:"mime"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created"`
}

func (s *Server) listVideos(ctx context.Context, _ *wire.Request, _ Params) (wire.Response, error) {
	owner, _ := PrincipalFromCtx(ctx)
	vids, err := s.videos.List(ctx, owner)
	if err != nil {
		return wire.Response{}, err
	}
	out := make([]videoView, 0, len(vids))
	for _, v := range vids {
		out = append(out, videoView{VideoID: v.ID, Title: v.Title, MIME: v.MIME, Size: v.Size, CreatedAt: v.CreatedAt})
	}
	return jsonResponse(200, map[string]any{"videos": out}), nil
}

func (s *Server) getVideo(ctx context.Context, req *wire.Request, params Params) (wire.Response, error) {
	v, err := s.videos.Get(ctx, params["id"])
	if err != nil {
		return wire.Response{}, err
	}
	rangeHdr := req.Header("Range")
	start, end, err := ParseRange(rangeHdr)
	if err != nil {
		return notSatisfiable(v.Size), nil
	}
	data, rs, re, total, err := s.videos.ReadRange(ctx, v.ID, start, end)
	if errors.Is(err, errs.ErrRangeNotSatisfiable) {
		return notSatisfiable(total), nil
	}
	if err != nil {
		return wire.Response{}, err
	}

	headers := map[string]string{
		"Content-Type":  v.MIME,
		"Accept-Ranges": "bytes",
	}
	if start == nil && end == nil {
		return wire.NewResponse(200, headers, data), nil
	}
	headers["Content-Range"] = fmt.Sprintf("bytes %d-%d/%d", rs, re, total)
	return wire.NewResponse(206, headers, data), nil
}

func notSatisfiable(total int64) wire.Response {
	resp := jsonResponse(416, errorBody{Error: errs.ErrRangeNotSatisfiable.Error()})
	resp.Headers["Content-Range"] = fmt.Sprintf("bytes */%d", total)
	return resp
}

func (s *Server) deleteVideo(ctx context.Context, _ *wire.Request, params Params) (wire.Response, error) {
	owner, _ := PrincipalFromCtx(ctx)
	if err := s.videos.Delete(ctx, owner, params["id"]); err != nil {
		return wire.Response{}, err
	}
	return jsonResponse(200, map[string]any{"ok": true, "video_id": params["id"]}), nil
}

// ParseRange parses a single "bytes=<start>-<end>" range. Either bound may be
// omitted; an absent header yields nil bounds.
func ParseRange(header string) (start, end *int64, err error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, nil, errs.ErrRangeNotSatisfiable
	}
	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, nil, errs.ErrRangeNotSatisfiable
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	var s int64
	if first != "" {
		if s, err = parseBound(first); err != nil {
			return nil, nil, err
		}
	}
	start = &s
	if last != "" {
		e, err := parseBound(last)
		if err != nil {
			return nil, nil, err
		}
		end = &e
	}
	return start, end, nil
}

func parseBound(v string) (int64, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, errs.ErrRangeNotSatisfiable
	}
	return n, nil
}

func requiredHeader(req *wire.Request, key string) (string, error) {
	v := strings.TrimSpace(req.Header(key))
	if v == "" {
		return "", fmt.Errorf("%w: missing %s", errs.ErrValidation, key)
	}
	return v, nil
}

func decodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: bad json body", errs.ErrValidation)
	}
	return nil
}
