package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docfiler/docfiler/internal/application"
	"github.com/docfiler/docfiler/internal/cache"
	"github.com/docfiler/docfiler/internal/library"
	"github.com/docfiler/docfiler/internal/lookup"
	"github.com/docfiler/docfiler/internal/services"
	"github.com/docfiler/docfiler/internal/usecase"
)

const defaultMaxClients = 50

// Server wraps the MCP server with the lookup tools
type Server struct {
	server   *mcp.Server
	lookups  *services.LookupService
	resolver *usecase.Resolver
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(lookups *services.LookupService, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "docfiler",
		Version: version,
	}, nil)

	s := &Server{
		server:   mcpServer,
		lookups:  lookups,
		resolver: usecase.NewResolver(lookups, logger),
		logger:   logger,
	}

	s.registerTools()

	return s
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over transport.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lookup_clients",
		Description: "Search clients by name, ignoring case and accents",
	}, s.handleClients)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lookup_options",
		Description: "List the options of a lookup list, optionally under a parent selection",
	}, s.handleOptions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cache_info",
		Description: "Describe the local lookup cache",
	}, s.handleInfo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cache_refresh",
		Description: "Rebuild the local lookup cache from SharePoint",
	}, s.handleRefresh)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cache_clear",
		Description: "Delete the local lookup cache",
	}, s.handleClear)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "resolve_metadata",
		Description: "Resolve saved document metadata against the live lookup lists",
	}, s.handleResolve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "compose_metadata",
		Description: "Build the metadata written to a document from selections",
	}, s.handleCompose)
}

// Input/Output types for each tool

type ClientsInput struct {
	Search string `json:"search,omitempty" jsonschema:"text to search for in client names"`
	Max    *int   `json:"max,omitempty" jsonschema:"maximum number of clients to return (default 50, 0 for all)"`
}

type OptionsOutput struct {
	Options []lookup.Record `json:"options"`
}

type OptionsInput struct {
	Source      string `json:"source" jsonschema:"lookup list, e.g. subjects or folder3"`
	ParentID    string `json:"parentId,omitempty" jsonschema:"id of the selected option one level above"`
	ParentTitle string `json:"parentTitle,omitempty" jsonschema:"title of the selected option one level above"`
}

type InfoInput struct{}

type InfoOutput struct {
	Present     bool   `json:"present"`
	LastUpdated string `json:"lastUpdated,omitempty"`
	Version     string `json:"version,omitempty"`
	RecordCount int    `json:"recordCount"`
	IsStale     bool   `json:"isStale"`
	Updating    bool   `json:"updating"`
}

type ClearOutput struct {
	Message string `json:"message"`
}

type ResolveInput struct {
	Library   string            `json:"library,omitempty" jsonschema:"library id, e.g. DOCUMENTOS_CLIENTES"`
	DriveName string            `json:"driveName,omitempty" jsonschema:"drive name of the document library, used when library is empty"`
	Metadata  map[string]string `json:"metadata" jsonschema:"saved metadata, field name to value"`
}

type ComposeInput struct {
	Library    string                      `json:"library,omitempty" jsonschema:"library id, e.g. DOCUMENTOS_CLIENTES"`
	DriveName  string                      `json:"driveName,omitempty" jsonschema:"drive name of the document library, used when library is empty"`
	Selections map[string]lookup.Selection `json:"selections" jsonschema:"selected option per field name"`
}

type ComposeOutput struct {
	Metadata map[string]string `json:"metadata"`
}

func resolveLibrary(id, driveName string) (library.Library, error) {
	return library.Resolve(library.Options{ID: id, DriveName: driveName})
}

func infoOutput(meta *cache.Metadata, updating bool) InfoOutput {
	if meta == nil {
		return InfoOutput{Updating: updating}
	}
	return InfoOutput{
		Present:     true,
		LastUpdated: meta.LastUpdated.Format(time.RFC3339),
		Version:     meta.Version,
		RecordCount: meta.RecordCount,
		IsStale:     meta.IsStale,
		Updating:    updating,
	}
}

// Tool handlers

func (s *Server) handleClients(ctx context.Context, req *mcp.CallToolRequest, input ClientsInput) (*mcp.CallToolResult, OptionsOutput, error) {
	limit := defaultMaxClients
	if input.Max != nil {
		limit = *input.Max
	}
	return nil, OptionsOutput{Options: s.lookups.Clients(ctx, input.Search, limit)}, nil
}

func (s *Server) handleOptions(ctx context.Context, req *mcp.CallToolRequest, input OptionsInput) (*mcp.CallToolResult, OptionsOutput, error) {
	src, err := lookup.ParseSource(input.Source)
	if err != nil {
		return nil, OptionsOutput{}, err
	}

	options, err := s.lookups.Options(ctx, src, lookup.Parent{ID: input.ParentID, Title: input.ParentTitle})
	if err != nil {
		return nil, OptionsOutput{}, fmt.Errorf("failed to load %s: %w", src, err)
	}
	return nil, OptionsOutput{Options: options}, nil
}

func (s *Server) handleInfo(ctx context.Context, req *mcp.CallToolRequest, input InfoInput) (*mcp.CallToolResult, InfoOutput, error) {
	return nil, infoOutput(s.lookups.Metadata(), s.lookups.IsUpdating()), nil
}

func (s *Server) handleRefresh(ctx context.Context, req *mcp.CallToolRequest, input InfoInput) (*mcp.CallToolResult, InfoOutput, error) {
	s.lookups.ForceRefresh(ctx)
	return nil, infoOutput(s.lookups.Metadata(), s.lookups.IsUpdating()), nil
}

func (s *Server) handleClear(ctx context.Context, req *mcp.CallToolRequest, input InfoInput) (*mcp.CallToolResult, ClearOutput, error) {
	s.lookups.Clear()
	s.logger.Info("cache cleared")
	return nil, ClearOutput{Message: "Cache cleared"}, nil
}

func (s *Server) handleResolve(ctx context.Context, req *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, application.ResolveAndComposeResult, error) {
	lib, err := resolveLibrary(input.Library, input.DriveName)
	if err != nil {
		return nil, application.ResolveAndComposeResult{}, err
	}
	return nil, application.ResolveAndCompose(ctx, s.resolver, lib, input.Metadata), nil
}

func (s *Server) handleCompose(ctx context.Context, req *mcp.CallToolRequest, input ComposeInput) (*mcp.CallToolResult, ComposeOutput, error) {
	lib, err := resolveLibrary(input.Library, input.DriveName)
	if err != nil {
		return nil, ComposeOutput{}, err
	}

	selections := make(map[string]*lookup.Selection, len(input.Selections))
	for field, sel := range input.Selections {
		f, ok := lib.Field(field)
		if !ok {
			return nil, ComposeOutput{}, fmt.Errorf("library %s has no field %q", lib.ID, field)
		}
		selections[f.Name] = &sel
	}
	return nil, ComposeOutput{Metadata: application.ComposeMetadata(lib, selections)}, nil
}
