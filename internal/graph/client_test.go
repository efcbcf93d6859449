package graph_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamanBalaji/vbridge/internal/config"
	"github.com/NamanBalaji/vbridge/internal/graph"
	"github.com/NamanBalaji/vbridge/internal/progress"
	httpPkg "github.com/NamanBalaji/vbridge/pkg/http"
)

func graphConfig(serverURL string) *config.GraphConfig {
	return &config.GraphConfig{
		UploadEndpoint:   serverURL,
		APIEndpoint:      serverURL,
		VideoURLTemplate: "https://www.facebook.com/video.php?v=%s",
		MaxRetries:       0,
		RetryDelay:       10 * time.Millisecond,
	}
}

func writeArtifact(t *testing.T, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	return path
}

// uploadServer simulates the session endpoint, dictating chunkSize-byte ranges
// and recording every chunk it receives.
type uploadServer struct {
	mu        sync.Mutex
	fileSize  int64
	chunkSize int64

	startCalls    int
	transferCalls int
	finishCalls   int
	received      []byte
}

func (s *uploadServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		q := r.URL.Query()
		require.NotEmpty(t, q.Get("access_token"))

		switch q.Get("upload_phase") {
		case "start":
			s.startCalls++
			end := min(s.chunkSize, s.fileSize)
			fmt.Fprintf(w, `{"upload_session_id":"sess-1","video_id":"vid-77","start_offset":"0","end_offset":"%d"}`, end)
		case "transfer":
			s.transferCalls++
			require.Equal(t, "sess-1", q.Get("upload_session_id"))

			file, _, err := r.FormFile("video_file_chunk")
			require.NoError(t, err)
			chunk, err := io.ReadAll(file)
			require.NoError(t, err)
			s.received = append(s.received, chunk...)

			start := int64(len(s.received))
			end := min(start+s.chunkSize, s.fileSize)
			fmt.Fprintf(w, `{"start_offset":"%d","end_offset":"%d"}`, start, end)
		case "finish":
			s.finishCalls++
			fmt.Fprint(w, `{"success":true}`)
		default:
			t.Errorf("unexpected upload_phase %q", q.Get("upload_phase"))
		}
	}
}

func TestUpload_MultiChunk(t *testing.T) {
	content := []byte("0123456789abcdefghij")

	srv := &uploadServer{fileSize: int64(len(content)), chunkSize: 8}
	server := httptest.NewServer(srv.handler(t))
	defer server.Close()

	sink := progress.NewMemorySink()
	client := graph.NewClient(httpPkg.NewClient(0), graphConfig(server.URL), sink)

	videoURL, err := client.Upload(context.Background(), writeArtifact(t, content), "page-1", "tok", uuid.New())
	require.NoError(t, err)

	assert.Equal(t, "https://www.facebook.com/video.php?v=vid-77", videoURL)
	assert.Equal(t, 1, srv.startCalls)
	assert.Equal(t, 3, srv.transferCalls, "20 bytes in 8-byte ranges take 3 chunks")
	assert.Equal(t, 1, srv.finishCalls)
	assert.Equal(t, content, srv.received, "server must receive the exact byte sequence")

	lines := sink.Lines()
	assert.Contains(t, lines, "Chunk uploaded. Next: 8 to 16")
	assert.Contains(t, lines, "Chunk uploaded. Next: 20 to 20")
	assert.Equal(t, "Uploaded: https://www.facebook.com/video.php?v=vid-77", lines[len(lines)-1])
}

func TestUpload_StartRejected(t *testing.T) {
	var transferCalls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("upload_phase") {
		case "start":
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"invalid token"}}`)
		case "transfer":
			transferCalls++
		}
	}))
	defer server.Close()

	sink := progress.NewMemorySink()
	client := graph.NewClient(httpPkg.NewClient(0), graphConfig(server.URL), sink)

	_, err := client.Upload(context.Background(), writeArtifact(t, []byte("some data")), "page-1", "tok", uuid.New())
	require.ErrorIs(t, err, graph.ErrSessionRejected)

	assert.Zero(t, transferCalls, "no transfer requests after a rejected start")

	lines := sink.Lines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1], "Upload session failed:")
	assert.Contains(t, lines[len(lines)-1], "invalid token")
}

func TestUpload_TransferError(t *testing.T) {
	var transferCalls, finishCalls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("upload_phase") {
		case "start":
			fmt.Fprint(w, `{"upload_session_id":"sess-2","video_id":"vid-1","start_offset":"0","end_offset":"4"}`)
		case "transfer":
			transferCalls++
			fmt.Fprint(w, `{"error":{"message":"chunk too large"}}`)
		case "finish":
			finishCalls++
		}
	}))
	defer server.Close()

	sink := progress.NewMemorySink()
	client := graph.NewClient(httpPkg.NewClient(0), graphConfig(server.URL), sink)

	_, err := client.Upload(context.Background(), writeArtifact(t, []byte("abcdefgh")), "page-1", "tok", uuid.New())
	require.ErrorIs(t, err, graph.ErrChunkTransfer)

	assert.Equal(t, 1, transferCalls, "must stop after the first error response")
	assert.Zero(t, finishCalls, "finish must not be called after a transfer error")
}

func TestUpload_InvertedOffsetsRejected(t *testing.T) {
	var transferCalls, finishCalls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("upload_phase") {
		case "start":
			fmt.Fprint(w, `{"upload_session_id":"sess-4","video_id":"vid-4","start_offset":"0","end_offset":"4"}`)
		case "transfer":
			transferCalls++
			// A range that moves backwards violates the cursor invariant.
			fmt.Fprint(w, `{"start_offset":"8","end_offset":"4"}`)
		case "finish":
			finishCalls++
		}
	}))
	defer server.Close()

	client := graph.NewClient(httpPkg.NewClient(0), graphConfig(server.URL), progress.NewMemorySink())

	var err error

	require.NotPanics(t, func() {
		_, err = client.Upload(context.Background(), writeArtifact(t, []byte("abcdefgh")), "page-1", "tok", uuid.New())
	})
	require.ErrorIs(t, err, graph.ErrChunkTransfer)
	assert.Contains(t, err.Error(), "invalid offsets 8-4")

	assert.Equal(t, 1, transferCalls, "no further chunks after a malformed range")
	assert.Zero(t, finishCalls)
}

func TestUpload_NegativeStartOffsetRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("upload_phase") == "start" {
			fmt.Fprint(w, `{"upload_session_id":"sess-5","video_id":"vid-5","start_offset":"-1","end_offset":"4"}`)
			return
		}

		t.Errorf("unexpected %s request after a malformed start range", r.URL.Query().Get("upload_phase"))
	}))
	defer server.Close()

	client := graph.NewClient(httpPkg.NewClient(0), graphConfig(server.URL), progress.NewMemorySink())

	_, err := client.Upload(context.Background(), writeArtifact(t, []byte("abcdefgh")), "page-1", "tok", uuid.New())
	require.ErrorIs(t, err, graph.ErrChunkTransfer)
}

func TestUpload_MissingArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected when the artifact is missing")
	}))
	defer server.Close()

	client := graph.NewClient(httpPkg.NewClient(0), graphConfig(server.URL), progress.NewMemorySink())

	_, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), "page-1", "tok", uuid.New())
	require.ErrorIs(t, err, graph.ErrArtifactOpen)
}

func TestCheckToken(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/page-9", r.URL.Path)
			assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
			fmt.Fprint(w, `{"id":"page-9","name":"My Page"}`)
		}))
		defer server.Close()

		sink := progress.NewMemorySink()
		client := graph.NewClient(httpPkg.NewClient(0), graphConfig(server.URL), sink)

		err := client.CheckToken(context.Background(), "tok", "page-9", uuid.New())
		require.NoError(t, err)
		assert.Contains(t, sink.Lines(), "Token is valid for this page.")
	})

	t.Run("rejected token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token"}}`)
		}))
		defer server.Close()

		sink := progress.NewMemorySink()
		client := graph.NewClient(httpPkg.NewClient(0), graphConfig(server.URL), sink)

		err := client.CheckToken(context.Background(), "bad", "page-9", uuid.New())
		require.ErrorIs(t, err, graph.ErrInvalidToken)

		lines := sink.Lines()
		require.NotEmpty(t, lines)
		assert.Contains(t, lines[len(lines)-1], "Invalid token or page ID:")
	})

	t.Run("response without id field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"name":"no id here"}`)
		}))
		defer server.Close()

		client := graph.NewClient(httpPkg.NewClient(0), graphConfig(server.URL), progress.NewMemorySink())

		err := client.CheckToken(context.Background(), "tok", "page-9", uuid.New())
		require.ErrorIs(t, err, graph.ErrInvalidToken)
	})
}

func TestUpload_RetriesTransportFailure(t *testing.T) {
	content := []byte("retry-me")

	var attempts int

	var srvMu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srvMu.Lock()
		defer srvMu.Unlock()

		switch r.URL.Query().Get("upload_phase") {
		case "start":
			fmt.Fprintf(w, `{"upload_session_id":"sess-3","video_id":"vid-3","start_offset":"0","end_offset":"%d"}`, len(content))
		case "transfer":
			attempts++
			if attempts == 1 {
				// Drop the connection to force a transport error.
				hj, ok := w.(http.Hijacker)
				require.True(t, ok)
				conn, _, err := hj.Hijack()
				require.NoError(t, err)
				conn.Close()

				return
			}

			fmt.Fprintf(w, `{"start_offset":"%d","end_offset":"%d"}`, len(content), len(content))
		case "finish":
			fmt.Fprint(w, `{"success":true}`)
		}
	}))
	defer server.Close()

	cfg := graphConfig(server.URL)
	cfg.MaxRetries = 2

	client := graph.NewClient(httpPkg.NewClient(0), cfg, progress.NewMemorySink())

	videoURL, err := client.Upload(context.Background(), writeArtifact(t, content), "page-1", "tok", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "https://www.facebook.com/video.php?v=vid-3", videoURL)
	assert.Equal(t, 2, attempts)
}
