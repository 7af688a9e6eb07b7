// Package mcp exposes the compliance gate as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/reqgate/reqgate/internal/decisionlog"
	"github.com/reqgate/reqgate/internal/opa"
	"github.com/reqgate/reqgate/internal/store"
	"github.com/reqgate/reqgate/internal/verify"
)

// Config holds MCP server configuration.
type Config struct {
	BundlePath          string
	OPABinary           string
	EvalTimeout         time.Duration
	DecisionLogPath     string
	VerificationLogPath string
	BaselineID          string
	BaselineVersion     string
}

// Server wraps the MCP SDK server with the gate's tool surface.
type Server struct {
	mcpServer     *mcpsdk.Server
	store         *store.Store
	cfg           Config
	log           *zap.Logger
	decisions     *decisionlog.Log
	verifications *verify.Writer

	mu             sync.Mutex
	bundleHash     string
	bundleRevision string
}

// New creates an MCP server with an open decision log, a verification
// writer, and the current policy bundle provenance.
func New(cfg Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OPABinary == "" {
		cfg.OPABinary = opa.DefaultBinary
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = opa.DefaultTimeout
	}
	if cfg.BaselineID == "" {
		cfg.BaselineID = "default"
	}
	if cfg.BaselineVersion == "" {
		cfg.BaselineVersion = "1.0.0"
	}

	decisions, err := decisionlog.Open(cfg.DecisionLogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision log: %w", err)
	}

	s := &Server{
		store:         store.New(),
		cfg:           cfg,
		log:           logger,
		decisions:     decisions,
		verifications: verify.NewWriter(cfg.VerificationLogPath),
	}
	s.RefreshBundle()

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "reqgate",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// RefreshBundle recomputes the cached bundle hash and revision. Called at
// startup and by the bundle watcher after the bundle changes on disk.
func (s *Server) RefreshBundle() {
	if s.cfg.BundlePath == "" {
		return
	}

	hash, err := opa.BundleHash(s.cfg.BundlePath)
	if err != nil {
		s.log.Warn("failed to hash policy bundle", zap.String("path", s.cfg.BundlePath), zap.Error(err))
		return
	}
	revision := ""
	if m, err := opa.LoadManifest(s.cfg.BundlePath); err == nil {
		revision = m.Revision
	} else {
		s.log.Warn("failed to read bundle manifest", zap.String("path", s.cfg.BundlePath), zap.Error(err))
	}

	s.mu.Lock()
	s.bundleHash = hash
	s.bundleRevision = revision
	s.mu.Unlock()

	s.log.Info("policy bundle loaded",
		zap.String("path", s.cfg.BundlePath),
		zap.String("hash", hash),
		zap.String("revision", revision))
}

// BundleProvenance returns the cached bundle hash and revision.
func (s *Server) BundleProvenance() (hash, revision string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundleHash, s.bundleRevision
}

// provenanceFor resolves the provenance of the bundle an evaluation actually
// ran against: the cached values for the configured bundle, a fresh
// best-effort computation when the caller overrode the path.
func (s *Server) provenanceFor(bundlePath string) (hash, revision string) {
	if bundlePath == s.cfg.BundlePath {
		return s.BundleProvenance()
	}
	hash, err := opa.BundleHash(bundlePath)
	if err != nil {
		s.log.Warn("failed to hash policy bundle", zap.String("path", bundlePath), zap.Error(err))
		return "", ""
	}
	if m, err := opa.LoadManifest(bundlePath); err == nil {
		revision = m.Revision
	}
	return hash, revision
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close closes the decision log.
func (s *Server) Close() error {
	return s.decisions.Close()
}

// registerTools adds the gate's tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reqif_parse",
		Description: "Parse a base64-encoded ReqIF document, normalize it into canonical requirement records, and store them under a new baseline handle.",
	}, s.handleParse)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reqif_validate",
		Description: "Run integrity validation over a stored baseline and return structured findings (basic or strict mode).",
	}, s.handleValidate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reqif_query",
		Description: "Query a stored baseline by subtypes and status with deterministic pagination.",
	}, s.handleQuery)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reqif_export",
		Description: "Export a filtered requirement subset as serialized JSON.",
	}, s.handleExport)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reqif_evaluate",
		Description: "Evaluate one requirement against the policy bundle with agent facts, log the decision, write a SARIF report, and record a verification event.",
	}, s.handleEvaluate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reqif_write_verification",
		Description: "Validate and append a verification event to the verification log.",
	}, s.handleWriteVerification)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reqif_reset",
		Description: "Clear every stored baseline from the in-memory store.",
	}, s.handleReset)
}
