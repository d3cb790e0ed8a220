package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/score-report-reader/internal/config"
	"github.com/a3tai/score-report-reader/internal/descriptions"
	"github.com/a3tai/score-report-reader/internal/pdf"
	"github.com/a3tai/score-report-reader/internal/render"
)

const (
	formatText = "text"
	formatJSON = "json"

	shutdownTimeout = 5 * time.Second
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *pdf.Service
	mcpServer *server.MCPServer
	logger    *slog.Logger

	stdin  io.Reader
	stdout io.Writer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *pdf.Service, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
		logger:    logger,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
	}
	s.registerTools()
	return s, nil
}

func formatOption() mcp.ToolOption {
	return mcp.WithString("format",
		mcp.Description("Response format: 'text' (default) or 'json'"),
		mcp.Enum(formatText, formatJSON),
	)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	analyzeTool := mcp.NewTool(
		"score_report_analyze",
		mcp.WithDescription(descriptions.GetToolDescription("score_report_analyze")),
		mcp.WithArray("files",
			mcp.Description("Report paths to analyze; a comma-separated string is accepted too"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("directory",
			mcp.Description("Analyze every report under this directory (default directory when files and directory are empty)"),
		),
		mcp.WithString("proficiency",
			mcp.Description("Comma-separated proficiency categories to include in the filtered summary, e.g. 'Below Proficiency'"),
		),
		mcp.WithNumber("min_lexile", mcp.Description("Lowest Lexile lower bound included in the filtered summary")),
		mcp.WithNumber("max_lexile", mcp.Description("Highest Lexile lower bound included in the filtered summary")),
		mcp.WithBoolean("rows", mcp.Description("Include every row outcome per file")),
		formatOption(),
	)
	s.mcpServer.AddTool(analyzeTool, s.handleAnalyze)

	inspectTool := mcp.NewTool(
		"score_report_inspect",
		mcp.WithDescription(descriptions.GetToolDescription("score_report_inspect")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the report PDF"),
		),
		mcp.WithNumber("page",
			mcp.Description("Page number, starting at 1"),
			mcp.Min(1),
		),
		formatOption(),
	)
	s.mcpServer.AddTool(inspectTool, s.handleInspect)

	listTool := mcp.NewTool(
		"score_report_list",
		mcp.WithDescription(descriptions.GetToolDescription("score_report_list")),
		mcp.WithString("directory", mcp.Description("Directory to search (uses the default directory if empty)")),
		mcp.WithString("query", mcp.Description("Fuzzy filename match")),
		mcp.WithBoolean("validate", mcp.Description("Run the structural check on every file found")),
		formatOption(),
	)
	s.mcpServer.AddTool(listTool, s.handleList)

	validateTool := mcp.NewTool(
		"score_report_validate",
		mcp.WithDescription(descriptions.GetToolDescription("score_report_validate")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the file to check"),
		),
		formatOption(),
	)
	s.mcpServer.AddTool(validateTool, s.handleValidate)

	infoTool := mcp.NewTool(
		"score_report_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("score_report_server_info")),
		formatOption(),
	)
	s.mcpServer.AddTool(infoTool, s.handleServerInfo)
}

// respond renders v as JSON or with the given text renderer.
func respond[T any](request mcp.CallToolRequest, v T, text func(T) string) (*mcp.CallToolResult, error) {
	if request.GetString("format", formatText) != formatJSON {
		return mcp.NewToolResultText(text(v)), nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := analyzeRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Debug("analyze requested", "files", len(req.Files), "directory", req.Directory, "filtered", !req.Filter.IsZero())

	result, err := s.service.Analyze(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(request, result, render.Batch)
}

// analyzeRequest reads the analyze arguments. files may arrive as a JSON
// array or as one comma-separated string.
func analyzeRequest(request mcp.CallToolRequest) (pdf.AnalyzeRequest, error) {
	args := request.GetArguments()
	req := pdf.AnalyzeRequest{
		Directory: request.GetString("directory", ""),
		Rows:      request.GetBool("rows", false),
	}

	switch v := args["files"].(type) {
	case nil:
	case string:
		req.Files = splitList(v)
	default:
		files, err := request.RequireStringSlice("files")
		if err != nil {
			return req, err
		}
		req.Files = files
	}

	req.Filter.Proficiency = splitList(request.GetString("proficiency", ""))
	for _, bound := range []struct {
		key string
		dst **int
	}{
		{"min_lexile", &req.Filter.MinLexile},
		{"max_lexile", &req.Filter.MaxLexile},
	} {
		if _, ok := args[bound.key]; !ok {
			continue
		}
		v, err := request.RequireInt(bound.key)
		if err != nil {
			return req, err
		}
		*bound.dst = &v
	}
	return req, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) handleInspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page := request.GetInt("page", 1)

	result, err := s.service.Inspect(ctx, pdf.InspectRequest{Path: path, Page: page})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(request, result, render.Inspection)
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := pdf.ListRequest{
		Directory: request.GetString("directory", ""),
		Query:     request.GetString("query", ""),
		Validate:  request.GetBool("validate", false),
	}

	result, err := s.service.List(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(request, result, render.Listing)
}

func (s *Server) handleValidate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.Validate(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(request, result, render.Validation)
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(request, s.service.ServerInfo(ctx), render.ServerInfo)
}

// Run serves MCP over the configured transport until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsSSE() {
		return s.runSSE(ctx)
	}
	return s.runStdio(ctx)
}

// runStdio speaks the protocol on stdin/stdout. Logs must stay on stderr.
func (s *Server) runStdio(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", config.TransportStdio, "dir", s.config.PDFDirectory)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, s.stdin, s.stdout)
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runSSE serves HTTP server-sent events on the configured address and
// shuts down gracefully when ctx ends.
func (s *Server) runSSE(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL("http://"+addr),
		server.WithKeepAlive(true),
	)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server", "transport", config.TransportSSE, "addr", addr, "dir", s.config.PDFDirectory)
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve sse on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("stopping MCP server", "addr", addr)
	if err := sse.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down sse server: %w", err)
	}
	return nil
}
