// Package mcp exposes the screening instruments as MCP tools over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/service"
)

// Server wraps the SDK server with the screening tools registered.
type Server struct {
	mcpServer   *mcp.Server
	catalog     domain.InstrumentCatalog
	machine     *service.SessionMachine
	submissions *service.SubmissionService
	logger      *logrus.Logger
}

// Options configures a Server.
type Options struct {
	Name        string
	Version     string
	Catalog     domain.InstrumentCatalog
	Machine     *service.SessionMachine
	Submissions *service.SubmissionService
	Logger      *logrus.Logger
}

// NewServer creates the MCP server and registers every tool.
func NewServer(opts Options) (*Server, error) {
	if opts.Catalog == nil || opts.Machine == nil || opts.Submissions == nil {
		return nil, errors.New("mcp: catalog, machine and submissions are required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	s := &Server{
		catalog:     opts.Catalog,
		machine:     opts.Machine,
		submissions: opts.Submissions,
		logger:      opts.Logger,
	}
	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    opts.Name,
		Version: opts.Version,
	}, nil)

	for _, t := range s.tools() {
		s.mcpServer.AddTool(t.def, t.handler)
		s.logger.WithField("tool_name", t.def.Name).Debug("Registered MCP tool")
	}
	s.logger.WithField("tool_count", len(s.tools())).Info("MCP tools registered")
	return s, nil
}

// Run serves MCP over stdin/stdout until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting screening MCP server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
