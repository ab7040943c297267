package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quillscan/quillscan/internal/cache"
	"github.com/quillscan/quillscan/internal/config"
	"github.com/quillscan/quillscan/internal/document"
	"github.com/quillscan/quillscan/internal/ocr"
	"github.com/quillscan/quillscan/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDispatcher satisfies dispatcherInterface with canned responses.
type fakeDispatcher struct {
	lastImagePath string
	lastBatch     []string
	lastVideoOpts ocr.VideoOpts
	imageResult   *ocr.Result
	videoResult   *ocr.VideoResult
	progress      []pipeline.VideoProgress
	status        string
	metrics       *pipeline.Metrics
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		imageResult: &ocr.Result{Text: "hello", Success: true},
		videoResult: &ocr.VideoResult{Text: "video text", Success: true},
		status:      "ready",
		metrics:     pipeline.NewMetrics(),
	}
}

func (f *fakeDispatcher) SubmitImage(_ context.Context, path string, _ ocr.PreprocessOpts, _ ocr.TextOpts) *ocr.Result {
	f.lastImagePath = path
	res := *f.imageResult
	res.FilePath = path
	return &res
}

func (f *fakeDispatcher) SubmitBatch(_ context.Context, paths []string, _ ocr.PreprocessOpts, _ ocr.TextOpts) *ocr.BatchResult {
	f.lastBatch = paths
	return &ocr.BatchResult{BatchSize: len(paths)}
}

func (f *fakeDispatcher) SubmitVideo(ctx context.Context, path string, videoOpts ocr.VideoOpts, preOpts ocr.PreprocessOpts) *ocr.VideoResult {
	return f.SubmitVideoProgress(ctx, path, videoOpts, preOpts, nil)
}

func (f *fakeDispatcher) SubmitVideoProgress(_ context.Context, _ string, videoOpts ocr.VideoOpts, _ ocr.PreprocessOpts, progress func(pipeline.VideoProgress)) *ocr.VideoResult {
	f.lastVideoOpts = videoOpts
	if progress != nil {
		for _, p := range f.progress {
			progress(p)
		}
	}
	return f.videoResult
}

func (f *fakeDispatcher) Metrics() *pipeline.Metrics    { return f.metrics }
func (f *fakeDispatcher) CacheStats() cache.Stats       { return cache.Stats{Size: 1, Hits: 2} }
func (f *fakeDispatcher) RecognizerStatus() string      { return f.status }

func newTestServer(fd *fakeDispatcher) *Server {
	cfg := config.DefaultConfig()
	cfg.Server.MaxBatchSize = 3
	return &Server{
		dispatcher:     fd,
		documents:      document.NewRegistry(),
		corsOrigin:     cfg.Server.CORSOrigin,
		maxUploadBytes: cfg.MaxUploadBytes(),
		maxBatchSize:   cfg.Server.MaxBatchSize,
		videoDefaults:  cfg.ToVideoOpts(),
	}
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 10, 10))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestHealthEndpoint(t *testing.T) {
	rec := serve(newTestServer(newFakeDispatcher()), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ready", resp.OCRStatus)
}

func TestHealthReportsRecognizerDown(t *testing.T) {
	fd := newFakeDispatcher()
	fd.status = "not_initialized"

	rec := serve(newTestServer(fd), httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_initialized", resp.OCRStatus)
}

func TestMetricsEndpointIncludesCacheStats(t *testing.T) {
	rec := serve(newTestServer(newFakeDispatcher()), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Contains(t, snap, "total_requests")
	cacheStats, ok := snap["cache"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, cacheStats["size"])
	assert.EqualValues(t, 2, cacheStats["hits"])
}

func TestSupportedFormats(t *testing.T) {
	rec := serve(newTestServer(newFakeDispatcher()), httptest.NewRequest(http.MethodGet, "/supported_formats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SupportedFormatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Images, ".png")
	assert.Contains(t, resp.Videos, ".mp4")
	assert.Contains(t, resp.Documents, ".pdf")
}

func TestOCRImageJSONRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	writePNG(t, path)

	fd := newFakeDispatcher()
	body, _ := json.Marshal(map[string]any{"file_path": path})
	req := httptest.NewRequest(http.MethodPost, "/ocr/image", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newTestServer(fd), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, path, fd.lastImagePath)

	var res ocr.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "hello", res.Text)
}

func TestOCRImageMissingFilePath(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/ocr/image", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newTestServer(newFakeDispatcher()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOCRImageFileNotFound(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"file_path": filepath.Join(t.TempDir(), "absent.png")})
	req := httptest.NewRequest(http.MethodPost, "/ocr/image", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newTestServer(newFakeDispatcher()), req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOCRImageUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.xyz")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	body, _ := json.Marshal(map[string]any{"file_path": path})
	req := httptest.NewRequest(http.MethodPost, "/ocr/image", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newTestServer(newFakeDispatcher()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file format")
}

func TestOCRImageMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/ocr/image", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newTestServer(newFakeDispatcher()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOCRImageMultipartUpload(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "scan.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(fw, image.NewGray(image.Rect(0, 0, 10, 10))))
	require.NoError(t, mw.WriteField("preprocessing_options", `{"deskew":false}`))
	require.NoError(t, mw.Close())

	fd := newFakeDispatcher()
	req := httptest.NewRequest(http.MethodPost, "/ocr/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := serve(newTestServer(fd), req)
	require.Equal(t, http.StatusOK, rec.Code)
	// Upload was spooled to a temp png and cleaned up afterwards.
	assert.True(t, strings.HasSuffix(fd.lastImagePath, ".png"))
	_, statErr := os.Stat(fd.lastImagePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOCRImageMultipartWithoutFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("unrelated", "1"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/ocr/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := serve(newTestServer(newFakeDispatcher()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no file or file_path")
}

func TestOCRBatch(t *testing.T) {
	fd := newFakeDispatcher()
	body, _ := json.Marshal(map[string]any{"file_paths": []string{"a.png", "b.png"}})
	req := httptest.NewRequest(http.MethodPost, "/ocr/batch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newTestServer(fd), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a.png", "b.png"}, fd.lastBatch)
}

func TestOCRBatchEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/ocr/batch", strings.NewReader(`{"file_paths":[]}`))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newTestServer(newFakeDispatcher()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOCRBatchOverLimit(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"file_paths": []string{"a", "b", "c", "d"}})
	req := httptest.NewRequest(http.MethodPost, "/ocr/batch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newTestServer(newFakeDispatcher()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds limit")
}

func TestOCRVideoAppliesConfiguredDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake"), 0o600))

	fd := newFakeDispatcher()
	body, _ := json.Marshal(map[string]any{"file_path": path})
	req := httptest.NewRequest(http.MethodPost, "/ocr/video", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newTestServer(fd), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, fd.lastVideoOpts.FrameInterval)
	assert.InDelta(t, 0.98, fd.lastVideoOpts.SimilarityThreshold, 1e-9)
}

func TestOCRVideoUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.png")
	require.NoError(t, os.WriteFile(path, []byte("fake"), 0o600))

	body, _ := json.Marshal(map[string]any{"file_path": path})
	req := httptest.NewRequest(http.MethodPost, "/ocr/video", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newTestServer(newFakeDispatcher()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("document body"), 0o600))

	body, _ := json.Marshal(map[string]any{"file_path": path})
	req := httptest.NewRequest(http.MethodPost, "/extract/document", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newTestServer(newFakeDispatcher()), req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res ocr.DocumentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "document body", res.Text)
}

func TestExtractDocumentUnsupported(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"file_path": "slides.pptx"})
	req := httptest.NewRequest(http.MethodPost, "/extract/document", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(newTestServer(newFakeDispatcher()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file format: pptx")
}

func TestMethodNotAllowed(t *testing.T) {
	rec := serve(newTestServer(newFakeDispatcher()), httptest.NewRequest(http.MethodGet, "/ocr/image", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	rec := serve(newTestServer(newFakeDispatcher()), httptest.NewRequest(http.MethodOptions, "/ocr/image", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddlewareConvertsPanic(t *testing.T) {
	s := newTestServer(newFakeDispatcher())
	h := s.wrap(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
