// Package server implements the MCP (Model Context Protocol) server exposing
// scan splitting as tools.
//
// This package provides a JSON-RPC 2.0 server that lets MCP clients split
// composite scans, preview the regions that would be cut, and inspect skew
// and separator color before committing to a batch run.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Splitting:
//   - scan_split_image: Split one scan and save its photos
//   - scan_split_directory: Split every matching scan of a directory
//
// Analysis:
//   - scan_find_regions: Bounding boxes, with an optional outlined preview
//   - scan_detect_skew: Tilt of each photo
//   - scan_detect_separator: Guess the background color from the border
//
// Every tool starts from the configuration the server was created with;
// arguments such as separator or deskew override it for that call only.
//
// # Image Caching
//
// Scans are decoded once and kept in memory for the lifetime of the server,
// so analysing a scan and then splitting it reads the file a single time.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(cfg, logger)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
