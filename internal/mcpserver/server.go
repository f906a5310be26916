// Package mcpserver wires the Memory Kernel's tool table into a
// mark3labs/mcp-go server, grounded on the teacher's
// go/tools/cmd/tool-server/main.go (RegisterMCP/RunSSEServer shape) and
// go/cli/internal/cli/mcp/serve_agents.go's stdio/http transport
// switch.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kagent-dev/memoryanchor/internal/checklist"
	"github.com/kagent-dev/memoryanchor/internal/kernel"
	"github.com/kagent-dev/memoryanchor/internal/mcpserver/tools"
)

const (
	serverName    = "memoryanchor"
	serverVersion = "1.0.0"
)

// New builds the MCP server with every Memory Kernel tool registered,
// plus the checklist subsystem's tools.
func New(k *kernel.Kernel, cl *checklist.Store) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))
	tools.RegisterMemoryTools(s, k, cl)
	return s
}

// ServeStdio runs the MCP server over stdin/stdout, the transport an
// editor or CLI-invoked agent client uses to launch this process
// directly, mirroring serve_agents.go's "stdio" case.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	stdioServer := server.NewStdioServer(s)
	return stdioServer.Listen(ctx, in, out)
}

// ServeStdioDefault is the common case of ServeStdio against the
// process's own stdin/stdout.
func ServeStdioDefault(ctx context.Context, s *server.MCPServer) error {
	return ServeStdio(ctx, s, os.Stdin, os.Stdout)
}

// ServeSSE runs the MCP server over SSE on addr, mirroring the
// teacher's RunSSEServer for deployments that front the tool server
// with a reverse proxy rather than launching it as a subprocess.
func ServeSSE(s *server.MCPServer, addr string) (*server.SSEServer, error) {
	srv := server.NewSSEServer(s)
	if err := srv.Start(addr); err != nil {
		return nil, fmt.Errorf("start sse server: %w", err)
	}
	return srv, nil
}
