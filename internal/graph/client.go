package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/NamanBalaji/vbridge/internal/config"
	"github.com/NamanBalaji/vbridge/internal/logger"
	"github.com/NamanBalaji/vbridge/internal/progress"
	httpPkg "github.com/NamanBalaji/vbridge/pkg/http"
)

const chunkFieldName = "video_file_chunk"

var (
	ErrSessionRejected = errors.New("upload session rejected")
	ErrChunkTransfer   = errors.New("chunk transfer failed")
	ErrInvalidToken    = errors.New("token is not valid for page")

	ErrArtifactOpen = errors.New("failed to open artifact file")
	ErrArtifactRead = errors.New("failed to read artifact file")
)

// Client talks to the Graph video upload and metadata endpoints.
type Client struct {
	http *httpPkg.Client
	cfg  *config.GraphConfig
	sink progress.Sink
}

func NewClient(client *httpPkg.Client, cfg *config.GraphConfig, sink progress.Sink) *Client {
	return &Client{
		http: client,
		cfg:  cfg,
		sink: sink,
	}
}

// sessionResponse covers all three upload phases. The API encodes offsets as
// quoted decimal strings.
type sessionResponse struct {
	SessionID   string          `json:"upload_session_id"`
	VideoID     string          `json:"video_id"`
	StartOffset offset          `json:"start_offset"`
	EndOffset   offset          `json:"end_offset"`
	Error       json.RawMessage `json:"error,omitempty"`
}

type offset int64

func (o *offset) UnmarshalJSON(b []byte) error {
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}

	if len(b) == 0 || string(b) == "null" {
		*o = 0
		return nil
	}

	var v int64

	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	*o = offset(v)

	return nil
}

// Upload transfers the artifact at path to the page's video endpoint using the
// start/transfer/finish session protocol and returns the public video URL.
// The server dictates every chunk's byte range; chunks are sent strictly in
// sequence. A response carrying an error field is terminal: no further chunks
// are sent and the session is not finished.
func (c *Client) Upload(ctx context.Context, path, pageID, token string, opID uuid.UUID) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrArtifactOpen, err)
	}

	fileSize := fi.Size()
	endpoint := fmt.Sprintf("%s/%s/videos", c.cfg.UploadEndpoint, pageID)

	progress.Emit(c.sink, opID, "Uploading %.2fMB video to Facebook...", float64(fileSize)/(1024*1024))

	session, raw, err := c.startSession(ctx, endpoint, token, fileSize)
	if err != nil {
		if errors.Is(err, ErrSessionRejected) {
			progress.Emit(c.sink, opID, "Upload session failed: %s", raw)
		}

		return "", err
	}

	if err := c.transferChunks(ctx, endpoint, path, token, session, opID); err != nil {
		return "", err
	}

	if err := c.finishSession(ctx, endpoint, token, session.SessionID); err != nil {
		return "", err
	}

	videoURL := fmt.Sprintf(c.cfg.VideoURLTemplate, session.VideoID)
	progress.Emit(c.sink, opID, "Uploaded: %s", videoURL)

	return videoURL, nil
}

func (c *Client) startSession(ctx context.Context, endpoint, token string, fileSize int64) (*sessionResponse, string, error) {
	params := url.Values{
		"upload_phase": {"start"},
		"access_token": {token},
		"file_size":    {fmt.Sprintf("%d", fileSize)},
	}

	resp, err := c.http.PostQuery(ctx, endpoint, params)
	if err != nil {
		return nil, "", err
	}

	var session sessionResponse

	raw, err := decodeResponse(resp, &session)
	if err != nil {
		return nil, raw, err
	}

	if session.SessionID == "" {
		return nil, raw, fmt.Errorf("%w: %s", ErrSessionRejected, raw)
	}

	logger.Debugf("Upload session %s opened, video id %s, initial range %d-%d",
		session.SessionID, session.VideoID, session.StartOffset, session.EndOffset)

	return &session, raw, nil
}

func (c *Client) transferChunks(ctx context.Context, endpoint, path, token string, session *sessionResponse, opID uuid.UUID) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArtifactOpen, err)
	}

	defer func() {
		if err := f.Close(); err != nil {
			logger.Errorf("Failed to close artifact file %s: %v", path, err)
		}
	}()

	start := int64(session.StartOffset)
	end := int64(session.EndOffset)

	for {
		// The cursor is server-authoritative but never trusted blindly: a
		// malformed range must fail this operation, not crash the process.
		if start < 0 || end < start {
			return fmt.Errorf("%w: invalid offsets %d-%d", ErrChunkTransfer, start, end)
		}

		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return fmt.Errorf("%w: %w", ErrArtifactRead, err)
		}

		buf := make([]byte, end-start)

		n, err := io.ReadFull(f, buf)
		if n == 0 {
			// Nothing left to read: treat as complete even if the server
			// never reported matching offsets.
			return nil
		}

		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %w", ErrArtifactRead, err)
		}

		params := url.Values{
			"upload_phase":      {"transfer"},
			"upload_session_id": {session.SessionID},
			"start_offset":      {fmt.Sprintf("%d", start)},
			"access_token":      {token},
		}

		resp, err := c.postChunk(ctx, endpoint, params, buf[:n])
		if err != nil {
			return err
		}

		var update sessionResponse

		raw, err := decodeResponse(resp, &update)
		if err != nil {
			return err
		}

		if update.Error != nil {
			progress.Emit(c.sink, opID, "Transfer error: %s", update.Error)
			return fmt.Errorf("%w: %s", ErrChunkTransfer, raw)
		}

		start = int64(update.StartOffset)
		end = int64(update.EndOffset)

		progress.Emit(c.sink, opID, "Chunk uploaded. Next: %d to %d", start, end)

		if start == end {
			return nil
		}
	}
}

// postChunk sends one chunk, retrying transport failures up to the configured
// bound. Retries default to off.
func (c *Client) postChunk(ctx context.Context, endpoint string, params url.Values, chunk []byte) (*http.Response, error) {
	var (
		resp *http.Response
		err  error
	)

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Warnf("Retrying chunk at offset %s (attempt %d): %v", params.Get("start_offset"), attempt, err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		resp, err = c.http.PostChunk(ctx, endpoint, params, chunkFieldName, chunk)
		if err == nil {
			return resp, nil
		}

		if !httpPkg.IsRetryable(err) {
			return nil, err
		}
	}

	return nil, err
}

func (c *Client) finishSession(ctx context.Context, endpoint, token, sessionID string) error {
	params := url.Values{
		"upload_phase":      {"finish"},
		"upload_session_id": {sessionID},
		"access_token":      {token},
	}

	resp, err := c.http.PostQuery(ctx, endpoint, params)
	if err != nil {
		return err
	}

	var finish sessionResponse

	if _, err := decodeResponse(resp, &finish); err != nil {
		return err
	}

	return nil
}

// CheckToken probes whether the token is authorized for the page. The probe is
// read-only and makes a single attempt; any response without an id field is
// treated as a rejection.
func (c *Client) CheckToken(ctx context.Context, token, pageID string, opID uuid.UUID) error {
	endpoint := fmt.Sprintf("%s/%s", c.cfg.APIEndpoint, pageID)

	resp, err := c.http.GetRaw(ctx, endpoint, url.Values{"access_token": {token}})
	if err != nil {
		return err
	}

	var page struct {
		ID string `json:"id"`
	}

	raw, err := decodeResponse(resp, &page)
	if err != nil && raw == "" {
		return err
	}

	if page.ID == "" {
		progress.Emit(c.sink, opID, "Invalid token or page ID: %s", raw)
		return fmt.Errorf("%w: %s", ErrInvalidToken, raw)
	}

	progress.Emit(c.sink, opID, "Token is valid for this page.")

	return nil
}

// decodeResponse reads the full body, returning it verbatim alongside the
// decoded value so failures can surface the raw server response.
func decodeResponse(resp *http.Response, v interface{}) (string, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", httpPkg.ClassifyError(err)
	}

	if err := json.Unmarshal(b, v); err != nil {
		return string(b), fmt.Errorf("unexpected response: %s", b)
	}

	return string(b), nil
}
