package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/ironsheep/scan-splitter/internal/batch"
	"github.com/ironsheep/scan-splitter/internal/config"
	"github.com/ironsheep/scan-splitter/internal/deskew"
	"github.com/ironsheep/scan-splitter/internal/detection"
	"github.com/ironsheep/scan-splitter/internal/imaging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "scan_split_image").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Splitting
	case "scan_split_image":
		return s.handleSplitImage(ctx, args)
	case "scan_split_directory":
		return s.handleSplitDirectory(ctx, args)

	// Analysis
	case "scan_find_regions":
		return s.handleFindRegions(args)
	case "scan_detect_skew":
		return s.handleDetectSkew(args)
	case "scan_detect_separator":
		return s.handleDetectSeparator(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// overrides are the per-call settings shared by several tools. Nil fields
// keep the server configuration.
type overrides struct {
	Separator     *string  `json:"separator"`
	Deskew        *bool    `json:"deskew"`
	OutputDirName *string  `json:"output_dir_name"`
	Connectivity  *int     `json:"connectivity"`
	Patterns      []string `json:"patterns"`
}

// settings returns a validated copy of the server configuration with o applied.
func (s *Server) settings(o overrides) (*config.Config, error) {
	cfg := *s.cfg
	if o.Separator != nil {
		cfg.Separator = *o.Separator
	}
	if o.Deskew != nil {
		cfg.Deskew.Enabled = *o.Deskew
	}
	if o.OutputDirName != nil {
		cfg.OutputDirName = *o.OutputDirName
	}
	if o.Connectivity != nil {
		cfg.Connectivity = *o.Connectivity
	}
	if len(o.Patterns) > 0 {
		cfg.Patterns = o.Patterns
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// === Splitting Handlers ===

type splitImageArgs struct {
	overrides
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run"`
}

func (s *Server) handleSplitImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a splitImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	cfg, err := s.settings(a.overrides)
	if err != nil {
		return nil, err
	}
	p := s.pipeline(cfg)

	if !a.DryRun {
		res := p.ProcessFile(ctx, a.Path)
		if res.Err != nil {
			return nil, res.Err
		}
		return res, nil
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	split, err := p.Split(ctx, img)
	if err != nil {
		return nil, err
	}
	store := batch.FileStore{DirName: cfg.OutputDirName}
	res := batch.Result{
		Source:    a.Path,
		Separator: split.Separator.Hex(),
		Warnings:  split.Warnings,
	}
	for _, r := range split.Regions {
		res.Regions = append(res.Regions, r.Box)
		res.Skew = append(res.Skew, r.Skew)
		res.Outputs = append(res.Outputs, filepath.Join(store.OutputDir(a.Path), batch.SubImageName(a.Path, r.Index)))
	}
	return res, nil
}

type splitDirectoryArgs struct {
	overrides
	Dir string `json:"dir"`
}

func (s *Server) handleSplitDirectory(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a splitDirectoryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	cfg, err := s.settings(a.overrides)
	if err != nil {
		return nil, err
	}
	return s.pipeline(cfg).ProcessDir(ctx, a.Dir)
}

// === Analysis Handlers ===

type findRegionsArgs struct {
	overrides
	Path         string `json:"path"`
	Overlay      bool   `json:"overlay"`
	OverlayColor string `json:"overlay_color"`
}

// FindRegionsResult lists the regions of a scan and, on request, a preview.
type FindRegionsResult struct {
	*detection.RegionsResult
	Separator string                 `json:"separator"`
	Overlay   *imaging.OverlayResult `json:"overlay,omitempty"`
}

func (s *Server) handleFindRegions(args json.RawMessage) (interface{}, error) {
	var a findRegionsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.OverlayColor == "" {
		a.OverlayColor = "#FF0000"
	}
	cfg, img, sep, err := s.loadScan(a.Path, a.overrides)
	if err != nil {
		return nil, err
	}

	regions, err := detection.FindRegions(img, sep, cfg.ExtractOptions())
	if err != nil {
		return nil, err
	}
	result := &FindRegionsResult{RegionsResult: regions, Separator: sep.Hex()}
	if a.Overlay {
		rects := make([]image.Rectangle, len(regions.Regions))
		for i, b := range regions.Regions {
			rects[i] = b.Rect()
		}
		result.Overlay, err = imaging.OutlineBoxes(img, rects, a.OverlayColor)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

type detectSkewArgs struct {
	overrides
	Path  string `json:"path"`
	Index *int   `json:"index"`
}

// RegionSkew is the measured tilt of one region.
type RegionSkew struct {
	Index   int                   `json:"index"`
	Box     detection.BoundingBox `json:"box"`
	Aligned bool                  `json:"aligned"`
	Angle   float64               `json:"angle"`
	Lines   int                   `json:"lines"`
	// Correct reports whether the tilt is large enough to be corrected.
	Correct bool   `json:"correct"`
	Error   string `json:"error,omitempty"`
}

// DetectSkewResult is the result of the scan_detect_skew tool.
type DetectSkewResult struct {
	Separator string       `json:"separator"`
	MinAngle  float64      `json:"min_angle"`
	Regions   []RegionSkew `json:"regions"`
}

func (s *Server) handleDetectSkew(args json.RawMessage) (interface{}, error) {
	var a detectSkewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg, img, sep, err := s.loadScan(a.Path, a.overrides)
	if err != nil {
		return nil, err
	}

	session, err := detection.NewSession(img, sep, cfg.ExtractOptions())
	if err != nil {
		return nil, err
	}
	opts := cfg.Deskew.Options
	result := &DetectSkewResult{Separator: sep.Hex(), MinAngle: opts.MinAngle, Regions: []RegionSkew{}}
	for {
		region, ok, err := session.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if a.Index != nil && region.Index != *a.Index {
			continue
		}
		result.Regions = append(result.Regions, measureSkew(region, sep, opts))
		if a.Index != nil {
			return result, nil
		}
	}
	if a.Index != nil {
		return nil, fmt.Errorf("region %d not found: scan has %d regions", *a.Index, len(session.Regions()))
	}
	return result, nil
}

func measureSkew(region detection.SubImage, sep imaging.Separator, opts deskew.Options) RegionSkew {
	rs := RegionSkew{Index: region.Index, Box: region.Box}
	if deskew.IsAxisAligned(region.Pixels, sep) {
		rs.Aligned = true
		return rs
	}
	est, err := deskew.EstimateSkew(region.Pixels, sep, opts)
	if err != nil {
		rs.Error = err.Error()
		return rs
	}
	rs.Angle = est.Angle
	rs.Lines = est.Lines
	rs.Correct = math.Abs(est.Angle) >= opts.MinAngle
	return rs
}

type detectSeparatorArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleDetectSeparator(args json.RawMessage) (interface{}, error) {
	var a detectSeparatorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.DetectSeparator(img)
}

// loadScan applies o, loads the scan at path and resolves its separator.
func (s *Server) loadScan(path string, o overrides) (*config.Config, *image.NRGBA, imaging.Separator, error) {
	if path == "" {
		return nil, nil, imaging.Separator{}, fmt.Errorf("path is required")
	}
	cfg, err := s.settings(o)
	if err != nil {
		return nil, nil, imaging.Separator{}, err
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, nil, imaging.Separator{}, err
	}
	sep, err := s.pipeline(cfg).Separator(img)
	if err != nil {
		return nil, nil, imaging.Separator{}, err
	}
	return cfg, img, sep, nil
}
