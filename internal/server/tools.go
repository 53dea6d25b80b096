package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var (
	pathProperty = map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the scan",
	}
	separatorProperty = map[string]interface{}{
		"type":        "string",
		"description": "Separator color as #RRGGBB, or \"auto\" to detect it from the scan border. Defaults to the server configuration",
	}
	deskewProperty = map[string]interface{}{
		"type":        "boolean",
		"description": "Straighten tilted photos before saving. Defaults to the server configuration",
	}
	connectivityProperty = map[string]interface{}{
		"type":        "integer",
		"description": "Pixel neighborhood joining a region: 8 (edges and corners) or 4 (edges only)",
		"enum":        []int{4, 8},
	}
)

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Splitting
		{
			Name:        "scan_split_image",
			Description: "Split one composite scan into its photos and save each as <name>_NN.<ext> in the output directory next to the scan. Returns the region boxes, skew corrections and written files.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":      pathProperty,
					"separator": separatorProperty,
					"deskew":    deskewProperty,
					"output_dir_name": map[string]interface{}{
						"type":        "string",
						"description": "Name of the output directory created beside the scan",
					},
					"dry_run": map[string]interface{}{
						"type":        "boolean",
						"description": "Report what would be written without saving anything",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "scan_split_directory",
			Description: "Split every scan in a directory matching the file patterns. Scans are processed in parallel; a failing scan does not stop the others. Returns the batch report.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"dir": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the directory of scans",
					},
					"patterns": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Glob patterns selecting scans, e.g. [\"*.png\", \"*.jpg\"]",
					},
					"separator": separatorProperty,
					"deskew":    deskewProperty,
				},
				"required": []string{"dir"},
			},
		},

		// Analysis
		{
			Name:        "scan_find_regions",
			Description: "Find the bounding box of every photo in a scan without saving anything. Optionally returns a PNG preview with the boxes outlined and numbered.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":         pathProperty,
					"separator":    separatorProperty,
					"connectivity": connectivityProperty,
					"overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Include a base64 PNG preview with outlined regions",
						"default":     false,
					},
					"overlay_color": map[string]interface{}{
						"type":        "string",
						"description": "Outline color as #RRGGBB. Default #FF0000",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "scan_detect_skew",
			Description: "Measure the tilt of each photo in a scan. Positive angles are clockwise. Photos whose left column is all separator are reported as aligned.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":      pathProperty,
					"separator": separatorProperty,
					"index": map[string]interface{}{
						"type":        "integer",
						"description": "Only measure the region with this index (0-based). Default: all regions",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "scan_detect_separator",
			Description: "Guess the separator color of a scan from its border pixels. Returns the most frequent color and its share of the border.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
	}
}
