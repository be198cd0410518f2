package ee

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/oauth2/google"

	"github.com/Dhenenjay/earth-engine-mcp/internal/logging"
)

const (
	defaultBaseURL = "https://earthengine.googleapis.com/v1"
	authScope      = "https://www.googleapis.com/auth/earthengine"
)

// RESTOptions configures the REST backend client.
type RESTOptions struct {
	// KeyFile is the path to a service-account JSON key.
	KeyFile string

	// Project is the cloud project the computations are billed to.
	Project string

	// BaseURL overrides the production endpoint (tests, regional endpoints).
	BaseURL string

	// HTTPTimeout caps a single request. Per-attempt budgets are applied by
	// callers through ctx; this is the hard outer bound.
	HTTPTimeout time.Duration
}

// RESTClient talks to the Earth Engine REST API with service-account
// credentials. Expression composition is local; only evaluation calls
// (compute, thumbnails, maps, exports, table lookups) hit the network.
type RESTClient struct {
	http    *http.Client
	baseURL string
	project string
}

var _ Client = (*RESTClient)(nil)

// NewRESTClient loads the service-account key and builds an authorized
// client. The key is read once at construction.
func NewRESTClient(ctx context.Context, opts RESTOptions) (*RESTClient, error) {
	if opts.KeyFile == "" {
		return nil, fmt.Errorf("%w: no service account key configured", ErrUnauthorized)
	}
	key, err := os.ReadFile(opts.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account key: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(key, authScope)
	if err != nil {
		return nil, fmt.Errorf("invalid service account key: %w", err)
	}

	httpClient := conf.Client(ctx)
	if opts.HTTPTimeout > 0 {
		httpClient.Timeout = opts.HTTPTimeout
	}

	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &RESTClient{
		http:    httpClient,
		baseURL: strings.TrimRight(base, "/"),
		project: opts.Project,
	}, nil
}

// SearchCatalog matches against the builtin catalog. The public REST surface
// has no free-text catalog search; the builtin slice covers the collections
// the operation handlers support.
func (c *RESTClient) SearchCatalog(_ context.Context, query string, limit int) ([]CatalogEntry, error) {
	return SearchBuiltinCatalog(query, limit), nil
}

// CollectionInfo serves builtin metadata and falls back to the asset API.
func (c *RESTClient) CollectionInfo(ctx context.Context, collectionID string) (*CollectionInfo, error) {
	if e, ok := LookupBuiltin(collectionID); ok {
		return &CollectionInfo{
			ID: e.ID, Name: e.Name, Description: e.Description,
			Provider: e.Provider, Bands: e.Bands,
			StartDate: e.StartDate, EndDate: e.EndDate, GSDMeters: e.GSDMeters,
		}, nil
	}

	var asset struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Bands       []struct {
			ID string `json:"id"`
		} `json:"bands"`
	}
	path := fmt.Sprintf("/projects/earthengine-public/assets/%s", collectionID)
	if err := c.get(ctx, path, &asset); err != nil {
		return nil, err
	}
	info := &CollectionInfo{ID: collectionID, Name: asset.Title, Description: asset.Description}
	for _, b := range asset.Bands {
		info.Bands = append(info.Bands, b.ID)
	}
	return info, nil
}

// FilterCollection evaluates the collection size server-side and reports the
// band list from catalog metadata.
func (c *RESTClient) FilterCollection(ctx context.Context, req FilterRequest) (*FilterResult, error) {
	col := collectionExpr(req)
	handle, err := encodeHandle(col)
	if err != nil {
		return nil, err
	}

	sizeExpr := invoke("ImageCollection.size", map[string]any{"collection": col})
	var result struct {
		Result int `json:"result"`
	}
	if err := c.compute(ctx, sizeExpr, &result); err != nil {
		return nil, err
	}

	var bands []string
	if info, err := c.CollectionInfo(ctx, req.Collection); err == nil {
		bands = info.Bands
	}
	return &FilterResult{Handle: handle, ImageCount: result.Result, Bands: bands}, nil
}

// Composite builds the composite expression. Composition is lazy; the
// backend evaluates it when the handle is rendered, reduced or exported.
func (c *RESTClient) Composite(_ context.Context, req CompositeRequest) (Handle, error) {
	col := collectionExpr(FilterRequest{
		Collection: req.Collection,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Region:     req.Region,
	})
	if req.MaskClouds {
		col = invoke("ImageCollection.map", map[string]any{
			"collection":    col,
			"baseAlgorithm": cloudMaskExpr(expr{"argumentReference": "_img"}, req.Collection),
		})
	}
	img := compositeExpr(col, req.Method)
	img = selectExpr(img, req.Bands)
	return encodeHandle(img)
}

// BandMath wraps an existing handle in an expression evaluation.
func (c *RESTClient) BandMath(_ context.Context, input Handle, expression, rename string) (Handle, error) {
	img, err := decodeHandle(input)
	if err != nil {
		return "", err
	}
	return encodeHandle(bandMathExpr(img, expression, rename))
}

// MaskClouds applies the sensor QA mask to an existing handle.
func (c *RESTClient) MaskClouds(_ context.Context, input Handle, collectionID string) (Handle, error) {
	img, err := decodeHandle(input)
	if err != nil {
		return "", err
	}
	return encodeHandle(cloudMaskExpr(img, collectionID))
}

// ReduceRegion evaluates regional statistics server-side.
func (c *RESTClient) ReduceRegion(ctx context.Context, req ReduceRequest) (map[string]float64, error) {
	img, err := decodeHandle(req.Input)
	if err != nil {
		return nil, err
	}
	reducers := req.Reducers
	if len(reducers) == 0 {
		reducers = []string{"mean"}
	}
	scale := req.ScaleMeters
	if scale <= 0 {
		scale = 30
	}

	out := make(map[string]float64)
	for _, reducer := range reducers {
		e := invoke("Image.reduceRegion", map[string]any{
			"image":      img,
			"reducer":    invoke("Reducer."+reducer, map[string]any{}),
			"geometry":   geometryValue(req.Region),
			"scale":      scale,
			"bestEffort": true,
		})
		var result struct {
			Result map[string]float64 `json:"result"`
		}
		if err := c.compute(ctx, e, &result); err != nil {
			return nil, err
		}
		for band, v := range result.Result {
			out[band+"_"+reducer] = v
		}
	}
	return out, nil
}

// ThumbnailURL registers a thumbnail rendering and returns its pixel URL.
func (c *RESTClient) ThumbnailURL(ctx context.Context, req ThumbnailRequest) (string, error) {
	img, err := decodeHandle(req.Input)
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"expression": vizExpr(img, req.Spec),
		"fileFormat": "PNG",
		"dimensions": fmt.Sprintf("%d", req.Dimensions),
	}
	if req.Region != nil {
		body["region"] = geometryValue(req.Region)
	}
	var created struct {
		Name string `json:"name"`
	}
	path := fmt.Sprintf("/projects/%s/thumbnails", c.project)
	if err := c.post(ctx, path, body, &created); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s:getPixels", c.baseURL, created.Name), nil
}

// TileURLTemplate publishes the computation as a map and returns the XYZ
// tile template.
func (c *RESTClient) TileURLTemplate(ctx context.Context, input Handle, spec VisualizationSpec) (string, error) {
	img, err := decodeHandle(input)
	if err != nil {
		return "", err
	}
	var created struct {
		Name string `json:"name"`
	}
	path := fmt.Sprintf("/projects/%s/maps", c.project)
	if err := c.post(ctx, path, map[string]any{"expression": vizExpr(img, spec)}, &created); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/tiles/{z}/{x}/{y}", c.baseURL, created.Name), nil
}

// StartExport submits a Drive export and returns the operation ID.
func (c *RESTClient) StartExport(ctx context.Context, req ExportRequest) (string, error) {
	img, err := decodeHandle(req.Input)
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"expression":  img,
		"description": req.Description,
		"fileExportOptions": map[string]any{
			"fileFormat": req.FileFormat,
			"driveDestination": map[string]any{
				"folder":         req.Folder,
				"filenamePrefix": req.FileNamePrefix,
			},
		},
		"maxPixels": req.MaxPixels,
		"grid": map[string]any{
			"crsCode": req.CRS,
			"affineTransform": map[string]any{
				"scaleX": req.ScaleMeters,
				"scaleY": -req.ScaleMeters,
			},
		},
	}
	if req.Region != nil {
		body["region"] = geometryValue(req.Region)
	}
	if req.CloudOptimized {
		body["formatOptions"] = map[string]any{"cloudOptimized": true}
	}

	var op struct {
		Name string `json:"name"`
	}
	path := fmt.Sprintf("/projects/%s/image:export", c.project)
	if err := c.post(ctx, path, body, &op); err != nil {
		return "", err
	}
	// Operation names look like projects/{p}/operations/{id}.
	if i := strings.LastIndex(op.Name, "/"); i >= 0 {
		return op.Name[i+1:], nil
	}
	return op.Name, nil
}

// TaskStatus polls an export operation.
func (c *RESTClient) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	var op struct {
		Name     string `json:"name"`
		Done     bool   `json:"done"`
		Metadata struct {
			State           string   `json:"state"`
			Description     string   `json:"description"`
			Progress        float64  `json:"progress"`
			DestinationUris []string `json:"destinationUris"`
			UpdateTime      string   `json:"updateTime"`
		} `json:"metadata"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	path := fmt.Sprintf("/projects/%s/operations/%s", c.project, taskID)
	if err := c.get(ctx, path, &op); err != nil {
		return nil, err
	}

	status := &TaskStatus{
		ID:              taskID,
		State:           TaskState(op.Metadata.State),
		Description:     op.Metadata.Description,
		Progress:        op.Metadata.Progress,
		Error:           op.Error.Message,
		DestinationURIs: op.Metadata.DestinationUris,
	}
	if t, err := time.Parse(time.RFC3339, op.Metadata.UpdateTime); err == nil {
		status.UpdatedAt = t
	}
	if status.State == "" {
		if op.Done {
			status.State = TaskStateCompleted
		} else {
			status.State = TaskStatePending
		}
	}
	return status, nil
}

// LookupBoundary queries a boundary table for features whose name property
// equals the requested name, optionally filtered by country.
func (c *RESTClient) LookupBoundary(ctx context.Context, q BoundaryQuery) ([]BoundaryFeature, error) {
	col := invoke("Collection.filter", map[string]any{
		"collection": invoke("Collection.loadTable", map[string]any{"tableId": q.Dataset.ID}),
		"filter": invoke("Filter.equals", map[string]any{
			"leftField":  q.Dataset.NameProperty,
			"rightValue": q.Name,
		}),
	})
	if q.Country != "" && q.Dataset.CountryProperty != "" {
		col = invoke("Collection.filter", map[string]any{
			"collection": col,
			"filter": invoke("Filter.equals", map[string]any{
				"leftField":  q.Dataset.CountryProperty,
				"rightValue": q.Country,
			}),
		})
	}

	var result struct {
		Features []json.RawMessage `json:"features"`
	}
	path := fmt.Sprintf("/projects/%s/table:computeFeatures", c.project)
	if err := c.post(ctx, path, map[string]any{"expression": col}, &result); err != nil {
		return nil, err
	}

	features := make([]BoundaryFeature, 0, len(result.Features))
	for _, raw := range result.Features {
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil || f.Geometry == nil {
			continue
		}
		name, _ := f.Properties[q.Dataset.NameProperty].(string)
		features = append(features, BoundaryFeature{
			Name:       name,
			Geometry:   f.Geometry,
			AreaKm2:    geo.Area(f.Geometry) / 1e6,
			Properties: f.Properties,
		})
	}
	return features, nil
}

// Ping issues a bare asset GET. Unlike CollectionInfo it never answers from
// the builtin catalog, so revoked credentials or an unreachable backend
// surface immediately.
func (c *RESTClient) Ping(ctx context.Context) error {
	var asset struct {
		ID string `json:"id"`
	}
	return c.get(ctx, "/projects/earthengine-public/assets/COPERNICUS/S2_SR_HARMONIZED", &asset)
}

func vizExpr(img expr, spec VisualizationSpec) expr {
	args := map[string]any{"image": selectExpr(img, spec.Bands)}
	if len(spec.Min) > 0 {
		args["min"] = spec.Min
	}
	if len(spec.Max) > 0 {
		args["max"] = spec.Max
	}
	if len(spec.Palette) > 0 {
		args["palette"] = spec.Palette
	}
	if spec.Gamma > 0 {
		args["gamma"] = spec.Gamma
	}
	return invoke("Image.visualize", args)
}

func (c *RESTClient) compute(ctx context.Context, e expr, out any) error {
	path := fmt.Sprintf("/projects/%s/value:compute", c.project)
	return c.post(ctx, path, map[string]any{"expression": e}, out)
}

func (c *RESTClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *RESTClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *RESTClient) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	logging.BackendDebug("%s %s -> %d (%v)", req.Method, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s: %s", classifyHTTP(resp.StatusCode), resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
