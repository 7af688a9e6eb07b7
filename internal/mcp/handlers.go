package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/reqgate/reqgate/internal/decisionlog"
	"github.com/reqgate/reqgate/internal/integrity"
	"github.com/reqgate/reqgate/internal/model"
	"github.com/reqgate/reqgate/internal/normalize"
	"github.com/reqgate/reqgate/internal/opa"
	"github.com/reqgate/reqgate/internal/reqif"
	"github.com/reqgate/reqgate/internal/sarif"
	"github.com/reqgate/reqgate/internal/store"
	"github.com/reqgate/reqgate/internal/verify"
)

// ErrorInfo is the structured failure payload every tool returns instead of
// throwing across the tool boundary.
type ErrorInfo struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// errorInfo maps an error to its wire shape, using the error taxonomy when
// available.
func errorInfo(err error) *ErrorInfo {
	var typed model.Typed
	if errors.As(err, &typed) {
		return &ErrorInfo{Message: err.Error(), Type: typed.ErrorType()}
	}
	return &ErrorInfo{Message: err.Error(), Type: "internal_error"}
}

// --- Input/Output types ---

// ParseInput defines parameters for the reqif_parse tool. Exactly one of
// XML and XMLBase64 must be set.
type ParseInput struct {
	XML             string `json:"xml,omitempty" jsonschema:"literal ReqIF XML document"`
	XMLBase64       string `json:"xml_b64,omitempty" jsonschema:"base64-encoded ReqIF XML document"`
	BaselineID      string `json:"baseline_id,omitempty" jsonschema:"policy baseline id (default: server config)"`
	BaselineVersion string `json:"baseline_version,omitempty" jsonschema:"policy baseline version (default: server config)"`
}

// ParseOutput returns the new baseline handle.
type ParseOutput struct {
	Handle string     `json:"handle,omitempty"`
	Count  int        `json:"count,omitempty"`
	Error  *ErrorInfo `json:"error,omitempty"`
}

// ValidateInput defines parameters for the reqif_validate tool.
type ValidateInput struct {
	Handle string `json:"handle" jsonschema:"baseline handle from reqif_parse"`
	Mode   string `json:"mode,omitempty" jsonschema:"validation mode: basic or strict (default basic)"`
}

// ValidateOutput carries the integrity report.
type ValidateOutput struct {
	Report *integrity.Report `json:"report,omitempty"`
	Error  *ErrorInfo        `json:"error,omitempty"`
}

// QueryInput defines parameters for the reqif_query tool.
type QueryInput struct {
	Handle   string   `json:"handle" jsonschema:"baseline handle from reqif_parse"`
	Subtypes []string `json:"subtypes,omitempty" jsonschema:"subtype tags the record must all carry"`
	Status   string   `json:"status,omitempty" jsonschema:"lifecycle status filter (active/obsolete/draft)"`
	Limit    int      `json:"limit,omitempty" jsonschema:"page size, 0 for all"`
	Offset   int      `json:"offset,omitempty" jsonschema:"page offset"`
}

// QueryOutput carries one page of requirements.
type QueryOutput struct {
	Page  *store.Page `json:"page,omitempty"`
	Error *ErrorInfo  `json:"error,omitempty"`
}

// ExportInput defines parameters for the reqif_export tool.
type ExportInput struct {
	Handle   string   `json:"handle" jsonschema:"baseline handle from reqif_parse"`
	Subtypes []string `json:"subtypes,omitempty" jsonschema:"subtype tags the record must all carry"`
	Status   string   `json:"status,omitempty" jsonschema:"lifecycle status filter"`
	Format   string   `json:"format,omitempty" jsonschema:"export format, only json is supported (default json)"`
}

// ExportOutput carries the serialized subset.
type ExportOutput struct {
	Data  string     `json:"data,omitempty"`
	Count int        `json:"count,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`
}

// EvaluateInput defines parameters for the reqif_evaluate tool. The
// requirement is given either inline or as a handle+uid pair referencing a
// stored baseline.
type EvaluateInput struct {
	Requirement *model.Requirement `json:"requirement,omitempty" jsonschema:"canonical requirement record (inline form)"`
	Handle      string             `json:"handle,omitempty" jsonschema:"baseline handle from reqif_parse (stored form)"`
	UID         string             `json:"uid,omitempty" jsonschema:"requirement uid within the baseline (stored form)"`
	Facts       model.Facts        `json:"facts" jsonschema:"agent-supplied facts payload"`
	BundlePath  string             `json:"bundle_path,omitempty" jsonschema:"policy bundle directory (default: server config)"`
	Context     map[string]any     `json:"context,omitempty" jsonschema:"extra evaluation context"`
	SARIFPath   string             `json:"sarif_path,omitempty" jsonschema:"output path for the SARIF report (default under evidence store)"`
}

// EvaluateOutput carries the decision and every artifact it produced. A
// decision is never suppressed by a downstream logging failure; those
// surface in LogError/VerificationError alongside it.
type EvaluateOutput struct {
	EvaluationID      string          `json:"evaluation_id,omitempty"`
	Decision          *model.Decision `json:"decision,omitempty"`
	BundleHash        string          `json:"bundle_hash,omitempty"`
	BundleRevision    string          `json:"bundle_revision,omitempty"`
	SARIFPath         string          `json:"sarif_path,omitempty"`
	VerificationID    string          `json:"verification_id,omitempty"`
	LogError          *ErrorInfo      `json:"log_error,omitempty"`
	SARIFError        *ErrorInfo      `json:"sarif_error,omitempty"`
	VerificationError *ErrorInfo      `json:"verification_error,omitempty"`
	Error             *ErrorInfo      `json:"error,omitempty"`
}

// WriteVerificationInput defines parameters for the reqif_write_verification tool.
type WriteVerificationInput struct {
	Event   map[string]any `json:"event" jsonschema:"verification event object"`
	LogPath string         `json:"log_path,omitempty" jsonschema:"override verification log path"`
}

// WriteVerificationOutput returns the event id.
type WriteVerificationOutput struct {
	EventID string     `json:"event_id,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ResetInput is empty.
type ResetInput struct{}

// ResetOutput confirms the reset.
type ResetOutput struct {
	Cleared bool `json:"cleared"`
}

// --- Handlers ---

func (s *Server) handleParse(ctx context.Context, req *mcpsdk.CallToolRequest, input ParseInput) (*mcpsdk.CallToolResult, ParseOutput, error) {
	var xml []byte
	switch {
	case input.XML != "" && input.XMLBase64 != "":
		return fail[ParseOutput](model.NewInputError("xml and xml_b64 are mutually exclusive"))
	case input.XML != "":
		xml = []byte(input.XML)
	case input.XMLBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(input.XMLBase64)
		if err != nil {
			return fail[ParseOutput](model.NewInputError("xml_b64 is not valid base64: %v", err))
		}
		xml = decoded
	default:
		return fail[ParseOutput](model.NewInputError("one of xml or xml_b64 is required"))
	}

	doc, err := reqif.Parse(xml)
	if err != nil {
		return fail[ParseOutput](err)
	}

	baselineID := input.BaselineID
	if baselineID == "" {
		baselineID = s.cfg.BaselineID
	}
	baselineVersion := input.BaselineVersion
	if baselineVersion == "" {
		baselineVersion = s.cfg.BaselineVersion
	}

	records, err := normalize.Normalize(doc, baselineID, baselineVersion)
	if err != nil {
		return fail[ParseOutput](err)
	}

	handle := store.NewHandle()
	s.store.Put(handle, records)

	s.log.Info("baseline stored",
		zap.String("handle", handle),
		zap.Int("records", len(records)),
		zap.String("baseline_id", baselineID))

	return nil, ParseOutput{Handle: handle, Count: len(records)}, nil
}

func (s *Server) handleValidate(ctx context.Context, req *mcpsdk.CallToolRequest, input ValidateInput) (*mcpsdk.CallToolResult, ValidateOutput, error) {
	records, err := s.store.Get(input.Handle)
	if err != nil {
		return fail[ValidateOutput](err)
	}

	mode := integrity.Mode(input.Mode)
	if input.Mode == "" {
		mode = integrity.ModeBasic
	}

	maps, err := integrity.FromRequirements(records)
	if err != nil {
		return fail[ValidateOutput](err)
	}
	report, err := integrity.Check(maps, mode)
	if err != nil {
		return fail[ValidateOutput](err)
	}

	return nil, ValidateOutput{Report: report}, nil
}

func (s *Server) handleQuery(ctx context.Context, req *mcpsdk.CallToolRequest, input QueryInput) (*mcpsdk.CallToolResult, QueryOutput, error) {
	page, err := s.store.Query(input.Handle, store.QueryParams{
		Subtypes: input.Subtypes,
		Status:   input.Status,
		Limit:    input.Limit,
		Offset:   input.Offset,
	})
	if err != nil {
		return fail[QueryOutput](err)
	}
	return nil, QueryOutput{Page: page}, nil
}

func (s *Server) handleExport(ctx context.Context, req *mcpsdk.CallToolRequest, input ExportInput) (*mcpsdk.CallToolResult, ExportOutput, error) {
	if input.Format != "" && input.Format != "json" {
		return fail[ExportOutput](model.NewInputError("unsupported export format %q", input.Format))
	}

	page, err := s.store.Query(input.Handle, store.QueryParams{
		Subtypes: input.Subtypes,
		Status:   input.Status,
	})
	if err != nil {
		return fail[ExportOutput](err)
	}

	data, err := json.MarshalIndent(page.Requirements, "", "  ")
	if err != nil {
		return fail[ExportOutput](&model.PersistenceError{Kind: model.PersistSerialize, Err: err})
	}

	return nil, ExportOutput{Data: string(data), Count: page.ReturnedCount}, nil
}

// resolveRequirement picks the inline requirement or looks up the handle+uid
// pair in the baseline store.
func (s *Server) resolveRequirement(input EvaluateInput) (model.Requirement, error) {
	if input.Requirement != nil {
		if input.Handle != "" || input.UID != "" {
			return model.Requirement{}, model.NewInputError("requirement and handle/uid are mutually exclusive")
		}
		return *input.Requirement, nil
	}
	if input.Handle == "" || input.UID == "" {
		return model.Requirement{}, model.NewInputError("either requirement or both handle and uid are required")
	}
	records, err := s.store.Get(input.Handle)
	if err != nil {
		return model.Requirement{}, err
	}
	for _, r := range records {
		if r.UID == input.UID {
			return r, nil
		}
	}
	return model.Requirement{}, &model.NotFoundError{Kind: "requirement", Key: input.UID}
}

func (s *Server) handleEvaluate(ctx context.Context, req *mcpsdk.CallToolRequest, input EvaluateInput) (*mcpsdk.CallToolResult, EvaluateOutput, error) {
	requirement, err := s.resolveRequirement(input)
	if err != nil {
		return fail[EvaluateOutput](err)
	}

	bundlePath := input.BundlePath
	if bundlePath == "" {
		bundlePath = s.cfg.BundlePath
	}
	if bundlePath == "" {
		return fail[EvaluateOutput](model.NewInputError("no bundle_path given and no bundle configured"))
	}

	decision, err := opa.Evaluate(ctx, requirement, input.Facts, opa.Options{
		BundlePath: bundlePath,
		Binary:     s.cfg.OPABinary,
		Timeout:    s.cfg.EvalTimeout,
		Context:    input.Context,
	})
	if err != nil {
		return fail[EvaluateOutput](err)
	}

	out := EvaluateOutput{Decision: decision}
	out.BundleHash, out.BundleRevision = s.provenanceFor(bundlePath)

	entry := decisionlog.NewEntry(requirement, input.Facts, input.Context, *decision)
	out.EvaluationID = entry.EvaluationID
	if err := s.decisions.Record(entry); err != nil {
		// The decision stands even when the log write fails; the caller
		// must see both.
		s.log.Error("decision log write failed", zap.Error(err))
		out.LogError = errorInfo(err)
	}

	sarifPath := input.SARIFPath
	if sarifPath == "" {
		sarifPath = filepath.Join(filepath.Dir(s.decisions.Path()), "..", "sarif",
			fmt.Sprintf("%s.sarif", entry.EvaluationID))
	}
	report := sarif.GenerateReport(requirement, *decision, input.Facts, entry.EvaluationID)
	if res, err := sarif.Validate(report, nil); err != nil {
		out.SARIFError = errorInfo(err)
	} else if !res.Valid {
		out.SARIFError = errorInfo(&model.SchemaViolationError{Subject: "sarif report", Issues: res.Errors})
	} else if abs, err := sarif.WriteFile(report, sarifPath); err != nil {
		out.SARIFError = errorInfo(err)
	} else {
		out.SARIFPath = abs
	}

	event := verify.NewEvent(requirement, *decision, input.Facts, out.SARIFPath)
	if id, err := s.verifications.Append(event); err != nil {
		s.log.Error("verification event write failed", zap.Error(err))
		out.VerificationError = errorInfo(err)
	} else {
		out.VerificationID = id
	}

	s.log.Info("requirement evaluated",
		zap.String("uid", requirement.UID),
		zap.String("evaluation_id", entry.EvaluationID),
		zap.String("status", string(decision.Status)),
		zap.Float64("score", decision.Score))

	return nil, out, nil
}

func (s *Server) handleWriteVerification(ctx context.Context, req *mcpsdk.CallToolRequest, input WriteVerificationInput) (*mcpsdk.CallToolResult, WriteVerificationOutput, error) {
	if input.Event == nil {
		return fail[WriteVerificationOutput](model.NewInputError("event is required"))
	}

	writer := s.verifications
	if input.LogPath != "" {
		writer = verify.NewWriter(input.LogPath)
	}

	id, err := writer.Append(verify.Event(input.Event))
	if err != nil {
		return fail[WriteVerificationOutput](err)
	}
	return nil, WriteVerificationOutput{EventID: id}, nil
}

func (s *Server) handleReset(ctx context.Context, req *mcpsdk.CallToolRequest, input ResetInput) (*mcpsdk.CallToolResult, ResetOutput, error) {
	s.store.Clear()
	return nil, ResetOutput{Cleared: true}, nil
}

// fail builds the typed error payload for any output shape carrying an
// *ErrorInfo field named Error.
func fail[T any](err error) (*mcpsdk.CallToolResult, T, error) {
	var out T
	setError(&out, errorInfo(err))
	return &mcpsdk.CallToolResult{IsError: true}, out, nil
}

// setError assigns the info into the output's Error field.
func setError(out any, info *ErrorInfo) {
	switch o := out.(type) {
	case *ParseOutput:
		o.Error = info
	case *ValidateOutput:
		o.Error = info
	case *QueryOutput:
		o.Error = info
	case *ExportOutput:
		o.Error = info
	case *EvaluateOutput:
		o.Error = info
	case *WriteVerificationOutput:
		o.Error = info
	}
}
