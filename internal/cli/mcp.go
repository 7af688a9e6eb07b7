package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reqgate/reqgate/internal/config"
	reqmcp "github.com/reqgate/reqgate/internal/mcp"
	"github.com/reqgate/reqgate/internal/opa"
)

var (
	mcpBundle      string
	mcpWatch       bool
	mcpDecisionLog string
	mcpEvidenceDir string
	mcpVerbose     bool
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpBundle, "bundle", "", "Path to OPA policy bundle directory (overrides config)")
	mcpCmd.Flags().BoolVar(&mcpWatch, "watch", false, "Reload bundle provenance when the bundle changes on disk")
	mcpCmd.Flags().StringVar(&mcpDecisionLog, "decision-log", "", "Decision log path (overrides config)")
	mcpCmd.Flags().StringVar(&mcpEvidenceDir, "evidence-dir", "", "Evidence store root directory (overrides config)")
	mcpCmd.Flags().BoolVar(&mcpVerbose, "verbose", false, "Enable debug logging")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs the compliance gate as an MCP (Model Context Protocol) server over stdio.\nExposes tools: reqif_parse, reqif_validate, reqif_query, reqif_export,\nreqif_evaluate, reqif_write_verification, reqif_reset.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, cfgHash, err := config.LoadWithHash(cfgPath)
	if err != nil {
		return err
	}
	if mcpBundle != "" {
		cfg.BundlePath = mcpBundle
	}
	if mcpDecisionLog != "" {
		cfg.DecisionLog = mcpDecisionLog
	}
	if mcpEvidenceDir != "" {
		cfg.EvidenceDir = mcpEvidenceDir
	}

	newLogger := zap.NewProduction
	if mcpVerbose {
		newLogger = zap.NewDevelopment
	}
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	srv, err := reqmcp.New(reqmcp.Config{
		BundlePath:          cfg.BundlePath,
		OPABinary:           cfg.OPABinary,
		EvalTimeout:         cfg.Timeout(),
		DecisionLogPath:     cfg.DecisionLogPath(),
		VerificationLogPath: cfg.VerificationLogPath(),
		BaselineID:          cfg.BaselineID,
		BaselineVersion:     cfg.BaselineVersion,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	if mcpWatch && cfg.BundlePath != "" {
		watcher, err := opa.NewWatcher(cfg.BundlePath, logger, srv.RefreshBundle)
		if err != nil {
			return fmt.Errorf("failed to watch bundle: %w", err)
		}
		go watcher.Run(ctx)
	}

	logger.Info("reqgate MCP server running on stdio",
		zap.String("config_hash", cfgHash),
		zap.String("bundle", cfg.BundlePath))

	return srv.Run(ctx)
}
