// Command memoryanchord is the per-project Memory Kernel daemon and
// scaffolding CLI, grounded on the teacher's cobra root command in
// go/cli/cmd/kagent/main.go (PersistentFlags + one cobra.Command per
// subcommand), simplified to a server daemon's subcommand set
// (serve/init/status/doctor) instead of an interactive agent shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kagent-dev/memoryanchor/internal/checklist"
	"github.com/kagent-dev/memoryanchor/internal/config"
	"github.com/kagent-dev/memoryanchor/internal/env"
	"github.com/kagent-dev/memoryanchor/internal/httpserver"
	"github.com/kagent-dev/memoryanchor/internal/logging"
	"github.com/kagent-dev/memoryanchor/internal/mcpserver"
	"github.com/kagent-dev/memoryanchor/internal/telemetry"
)

var projectDir string

func main() {
	rootCmd := &cobra.Command{
		Use:   "memoryanchord",
		Short: "memoryanchord is the per-project semantic memory store for AI coding assistants",
	}
	rootCmd.PersistentFlags().StringVar(&projectDir, "project-dir", ".", "Project directory holding config.yaml, constitution.yaml, and durable state")

	viper.SetEnvPrefix("MA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("project-dir", rootCmd.PersistentFlags().Lookup("project-dir"))
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		projectDir = viper.GetString("project-dir")
	}

	rootCmd.AddCommand(serveCmd(), initCmd(), statusCmd(), doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var httpAddr string
	var mcpTransport string
	var mcpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the MCP tool server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Init()
			logger := logging.Get()
			defer logger.Sync()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			shutdownTelemetry, err := telemetry.Init(ctx)
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			defer shutdownTelemetry()

			k, err := buildKernel(ctx, projectDir, logger)
			if err != nil {
				return err
			}
			cl := checklist.New()

			httpSrv := httpserver.New(httpserver.Config{Kernel: k, Checklist: cl, Logger: logger, APIKey: env.APIKey.Get()})
			httpSrv.Addr = httpAddr

			mcpSrv := mcpserver.New(k, cl)

			errCh := make(chan error, 2)
			go func() {
				logger.Info("http server listening", zap.String("addr", httpAddr))
				if err := httpSrv.ListenAndServe(); err != nil {
					errCh <- fmt.Errorf("http server: %w", err)
				}
			}()

			switch mcpTransport {
			case "stdio":
				go func() {
					logger.Info("mcp server listening on stdio")
					if err := mcpserver.ServeStdioDefault(ctx, mcpSrv); err != nil {
						errCh <- fmt.Errorf("mcp server: %w", err)
					}
				}()
			case "sse":
				go func() {
					logger.Info("mcp sse server listening", zap.String("addr", mcpAddr))
					if _, err := mcpserver.ServeSSE(mcpSrv, mcpAddr); err != nil {
						errCh <- fmt.Errorf("mcp sse server: %w", err)
					}
				}()
			default:
				return fmt.Errorf("invalid --mcp-transport %q (expected stdio or sse)", mcpTransport)
			}

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpSrv.WriteTimeout)
				defer shutdownCancel()
				return httpSrv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8085", "HTTP API listen address")
	cmd.Flags().StringVar(&mcpTransport, "mcp-transport", "stdio", "MCP tool server transport: stdio|sse")
	cmd.Flags().StringVar(&mcpAddr, "mcp-addr", ":8086", "MCP SSE listen address, used when --mcp-transport=sse")
	return cmd
}

func initCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a fresh project directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project-id is required")
			}
			if err := config.Init(projectDir, projectID); err != nil {
				return err
			}
			fmt.Printf("initialized memoryanchord project %q at %s\n", projectID, projectDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project-id", "", "Project identifier recorded in config.yaml and constitution.yaml")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print vector index stats and identity-schema item count",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Init()
			ctx := cmd.Context()
			k, err := buildKernel(ctx, projectDir, logging.Get())
			if err != nil {
				return err
			}
			stats, err := k.GetStats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("total items: %d\n", stats.Total)
			for l, count := range stats.ByLayer {
				fmt.Printf("  %s: %d\n", l, count)
			}

			items, err := k.GetConstitution(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("identity_schema items: %d\n", len(items))

			pendingStats, err := k.GetPendingStats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("pending queue: %d awaiting approval (avg confidence %.2f)\n", pendingStats.Total, pendingStats.AvgConfidence)
			for l, count := range pendingStats.ByLayer {
				fmt.Printf("  %s: %d\n", l, count)
			}
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the project directory and environment for common misconfiguration",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := config.ProjectDir{Root: projectDir}
			ok := true

			check := func(label string, cond bool, detail string) {
				status := "OK"
				if !cond {
					status = "FAIL"
					ok = false
				}
				fmt.Printf("[%s] %s: %s\n", status, label, detail)
			}

			_, cfgErr := config.LoadProjectConfig(dir.ConfigPath())
			check("config.yaml", cfgErr == nil, dir.ConfigPath())

			_, constErr := config.LoadConstitution(dir.ConstitutionPath())
			check("constitution.yaml", constErr == nil, dir.ConstitutionPath())

			mode := env.VectorIndexMode.Get()
			check("vector index mode", mode == "embedded" || mode == "remote", mode)
			if mode == "remote" {
				check("vector index url", env.VectorIndexURL.Get() != "", "MA_VECTOR_INDEX_URL")
			}

			if !ok {
				os.Exit(2)
			}
			return nil
		},
	}
}
