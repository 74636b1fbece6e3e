package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/trace2pass/trace2pass/internal/diagnose/diagnoser"
)

// AnalyzeReportArgs are the arguments for the analyze_report tool.
type AnalyzeReportArgs struct {
	RecordID string `json:"record_id" jsonschema:"ID of the collector record to look up"`
}

func (s *Server) handleAnalyzeReport(ctx context.Context,
	req *mcp.CallToolRequest, args AnalyzeReportArgs) (*mcp.CallToolResult, diagnoser.Verdict, error) {

	v, err := s.diag.AnalyzeReport(ctx, args.RecordID)
	if err != nil {
		return nil, diagnoser.Verdict{}, fmt.Errorf("analyze_report: %w", err)
	}

	return nil, v, nil
}

// UBDetectArgs are the arguments for the ub_detect tool.
type UBDetectArgs struct {
	RecordID string `json:"record_id,omitempty" jsonschema:"Optional collector record ID to persist the diagnosis against"`
}

func (s *Server) handleUBDetect(ctx context.Context,
	req *mcp.CallToolRequest, args UBDetectArgs) (*mcp.CallToolResult, diagnoser.Verdict, error) {

	v, err := s.diag.UBDetect(ctx, args.RecordID)
	if err != nil {
		return nil, diagnoser.Verdict{}, fmt.Errorf("ub_detect: %w", err)
	}

	return nil, v, nil
}

// VersionBisectArgs are the arguments for the version_bisect tool.
type VersionBisectArgs struct {
	RecordID string `json:"record_id,omitempty" jsonschema:"Optional collector record ID, echoed in the result; no diagnosis is persisted"`
}

func (s *Server) handleVersionBisect(ctx context.Context,
	req *mcp.CallToolRequest, args VersionBisectArgs) (*mcp.CallToolResult, diagnoser.Verdict, error) {

	v, err := s.diag.VersionBisect(ctx, args.RecordID)
	if err != nil {
		return nil, diagnoser.Verdict{}, fmt.Errorf("version_bisect: %w", err)
	}

	return nil, v, nil
}

// PassBisectArgs are the arguments for the pass_bisect tool.
type PassBisectArgs struct {
	RecordID string `json:"record_id,omitempty" jsonschema:"Optional collector record ID, echoed in the result; no diagnosis is persisted"`
	Version  string `json:"version" jsonschema:"Single compiler version to extract the pass pipeline from"`
}

func (s *Server) handlePassBisect(ctx context.Context,
	req *mcp.CallToolRequest, args PassBisectArgs) (*mcp.CallToolResult, diagnoser.Verdict, error) {

	v, err := s.diag.PassBisect(ctx, args.RecordID, args.Version)
	if err != nil {
		return nil, diagnoser.Verdict{}, fmt.Errorf("pass_bisect: %w", err)
	}

	return nil, v, nil
}

// FullPipelineArgs are the arguments for the full_pipeline tool.
type FullPipelineArgs struct {
	RecordID string `json:"record_id" jsonschema:"ID of the collector record to diagnose end to end"`
}

func (s *Server) handleFullPipeline(ctx context.Context,
	req *mcp.CallToolRequest, args FullPipelineArgs) (*mcp.CallToolResult, diagnoser.Verdict, error) {

	v, err := s.diag.FullPipeline(ctx, args.RecordID)
	if err != nil {
		return nil, diagnoser.Verdict{}, fmt.Errorf("full_pipeline: %w", err)
	}

	return nil, v, nil
}
