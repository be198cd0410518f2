package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhenenjay/earth-engine-mcp/internal/artifacts"
	"github.com/Dhenenjay/earth-engine-mcp/internal/config"
	"github.com/Dhenenjay/earth-engine-mcp/internal/degrade"
	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
	"github.com/Dhenenjay/earth-engine-mcp/internal/geometry"
	"github.com/Dhenenjay/earth-engine-mcp/internal/router"
)

// nullBackend satisfies ee.Client with empty results; the server tests only
// exercise framing, not operation semantics.
type nullBackend struct{}

func (nullBackend) SearchCatalog(ctx context.Context, query string, limit int) ([]ee.CatalogEntry, error) {
	return ee.SearchBuiltinCatalog(query, limit), nil
}
func (nullBackend) CollectionInfo(ctx context.Context, id string) (*ee.CollectionInfo, error) {
	return &ee.CollectionInfo{ID: id}, nil
}
func (nullBackend) FilterCollection(ctx context.Context, req ee.FilterRequest) (*ee.FilterResult, error) {
	return &ee.FilterResult{}, nil
}
func (nullBackend) Composite(ctx context.Context, req ee.CompositeRequest) (ee.Handle, error) {
	return "h", nil
}
func (nullBackend) BandMath(ctx context.Context, input ee.Handle, expression, rename string) (ee.Handle, error) {
	return "h", nil
}
func (nullBackend) MaskClouds(ctx context.Context, input ee.Handle, collectionID string) (ee.Handle, error) {
	return "h", nil
}
func (nullBackend) ReduceRegion(ctx context.Context, req ee.ReduceRequest) (map[string]float64, error) {
	return nil, nil
}
func (nullBackend) ThumbnailURL(ctx context.Context, req ee.ThumbnailRequest) (string, error) {
	return "https://backend.test/t.png", nil
}
func (nullBackend) TileURLTemplate(ctx context.Context, input ee.Handle, spec ee.VisualizationSpec) (string, error) {
	return "https://backend.test/{z}/{x}/{y}", nil
}
func (nullBackend) StartExport(ctx context.Context, req ee.ExportRequest) (string, error) {
	return "T1", nil
}
func (nullBackend) TaskStatus(ctx context.Context, taskID string) (*ee.TaskStatus, error) {
	return &ee.TaskStatus{ID: taskID, State: ee.TaskStateRunning}, nil
}
func (nullBackend) LookupBoundary(ctx context.Context, q ee.BoundaryQuery) ([]ee.BoundaryFeature, error) {
	return nil, nil
}
func (nullBackend) Ping(ctx context.Context) error {
	return nil
}

// syncBuffer makes bytes.Buffer safe for the server's concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestServer(t *testing.T) (*Server, *syncBuffer) {
	t.Helper()
	backend := nullBackend{}
	store := artifacts.NewStore()
	resolver := geometry.NewResolver(backend, nil)
	degrader, err := degrade.NewController(backend, nil)
	require.NoError(t, err)

	r := router.New(backend, store, resolver, degrader, nil, config.DefaultConfig())
	out := &syncBuffer{}
	return New(r, out), out
}

func responses(t *testing.T, out *syncBuffer) []Response {
	t.Helper()
	var resps []Response
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	for scanner.Scan() {
		var resp Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		resps = append(resps, resp)
	}
	return resps
}

func TestRunAnswersEachLine(t *testing.T) {
	srv, out := newTestServer(t)

	in := strings.Join([]string{
		`{"id":"a","tool":"earth_engine_system","arguments":{"operation":"capabilities"}}`,
		`{"id":"b","tool":"earth_engine_data","arguments":{"operation":"search_catalog","query":"sentinel"}}`,
	}, "\n")

	require.NoError(t, srv.Run(context.Background(), strings.NewReader(in)))

	resps := responses(t, out)
	require.Len(t, resps, 2)

	byID := map[string]Response{}
	for _, r := range resps {
		byID[r.ID] = r
	}
	assert.Equal(t, true, byID["a"].Result["success"])
	assert.Equal(t, true, byID["b"].Result["success"])
}

func TestRunSkipsBlankLines(t *testing.T) {
	srv, out := newTestServer(t)

	in := "\n\n" + `{"id":"a","tool":"earth_engine_system","arguments":{"operation":"capabilities"}}` + "\n\n"
	require.NoError(t, srv.Run(context.Background(), strings.NewReader(in)))

	assert.Len(t, responses(t, out), 1)
}

func TestRunSurvivesMalformedLine(t *testing.T) {
	srv, out := newTestServer(t)

	in := strings.Join([]string{
		`{not json`,
		`{"id":"ok","tool":"earth_engine_system","arguments":{"operation":"capabilities"}}`,
	}, "\n")

	require.NoError(t, srv.Run(context.Background(), strings.NewReader(in)))

	resps := responses(t, out)
	require.Len(t, resps, 2)

	var sawError, sawOK bool
	for _, r := range resps {
		if r.ID == "ok" {
			sawOK = assert.Equal(t, true, r.Result["success"])
			continue
		}
		sawError = true
		assert.Equal(t, false, r.Result["success"])
		assert.Contains(t, r.Result["error"], "malformed request")
		assert.NotEmpty(t, r.ID, "malformed lines still get a correlatable ID")
	}
	assert.True(t, sawError)
	assert.True(t, sawOK)
}

func TestRunGeneratesMissingID(t *testing.T) {
	srv, out := newTestServer(t)

	in := `{"tool":"earth_engine_system","arguments":{"operation":"capabilities"}}`
	require.NoError(t, srv.Run(context.Background(), strings.NewReader(in)))

	resps := responses(t, out)
	require.Len(t, resps, 1)
	assert.NotEmpty(t, resps[0].ID)
}

func TestRunUnknownToolStillReplies(t *testing.T) {
	srv, out := newTestServer(t)

	in := `{"id":"x","tool":"weather","arguments":{"operation":"forecast"}}`
	require.NoError(t, srv.Run(context.Background(), strings.NewReader(in)))

	resps := responses(t, out)
	require.Len(t, resps, 1)
	assert.Equal(t, false, resps[0].Result["success"])
}
