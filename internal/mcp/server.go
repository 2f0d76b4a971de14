// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the Growth Brain engine as tools for the bot layer: recording metrics,
// assigning experiment variants, tracking conversions, and reading reports.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/growth-brain/internal/core"
	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// Server wraps the engine services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	metrics     *core.MetricStore
	experiments *core.ExperimentEngine
	controller  *core.OptimizationController
	selector    *core.MessageSelector
}

// NewServer creates a new MCP server with the given engine dependencies.
// selector may be nil; the get_message tool then reports it as unavailable.
func NewServer(metrics *core.MetricStore, experiments *core.ExperimentEngine, controller *core.OptimizationController, selector *core.MessageSelector, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		metrics:     metrics,
		experiments: experiments,
		controller:  controller,
		selector:    selector,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "gbr", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type recordMetricInput struct {
	Name  string            `json:"name" jsonschema:"required,metric name (e.g. onboarding.completed, response.time)"`
	Kind  string            `json:"kind" jsonschema:"required,metric kind: counter, gauge, or histogram"`
	Value float64           `json:"value" jsonschema:"metric value (counters default to 1 when omitted)"`
	Tags  map[string]string `json:"tags,omitempty" jsonschema:"optional key/value tags attached to the event"`
}

type recordMetricOutput struct {
	Message string `json:"message"`
}

type trackOnboardingInput struct {
	UserID      string  `json:"user_id" jsonschema:"required,the user the event belongs to"`
	Event       string  `json:"event" jsonschema:"required,onboarding event: started, step, completed, or skipped"`
	Step        string  `json:"step,omitempty" jsonschema:"step name (required for the step event)"`
	DurationSec float64 `json:"duration_sec,omitempty" jsonschema:"time to complete in seconds (for the completed event)"`
}

type trackOnboardingOutput struct {
	Message string `json:"message"`
}

type trackButtonInput struct {
	Button string `json:"button" jsonschema:"required,button identifier (e.g. scan_flights)"`
	Event  string `json:"event" jsonschema:"required,button event: impression or click"`
}

type trackButtonOutput struct {
	Message string `json:"message"`
}

type assignVariantInput struct {
	UserID       string `json:"user_id" jsonschema:"required,the user to assign"`
	ExperimentID string `json:"experiment_id" jsonschema:"required,the experiment to assign into"`
}

type assignVariantOutput struct {
	Variant string `json:"variant"`
}

type trackConversionInput struct {
	UserID       string   `json:"user_id" jsonschema:"required,the user the observation belongs to"`
	ExperimentID string   `json:"experiment_id" jsonschema:"required,the experiment to record against"`
	Converted    *bool    `json:"converted,omitempty" jsonschema:"binary conversion outcome (use this or value)"`
	Value        *float64 `json:"value,omitempty" jsonschema:"continuous metric observation (use this or converted)"`
}

type trackConversionOutput struct {
	// Tracked reports whether the observation was recorded. Tracking is a
	// silent no-op for unknown experiments, stopped experiments, and
	// unassigned users, so false is not an error.
	Tracked bool   `json:"tracked"`
	Message string `json:"message"`
}

type getReportInput struct {
	Hours int `json:"hours,omitempty" jsonschema:"aggregation window in hours (default 24)"`
}

type reportOutput struct {
	Generated       string            `json:"generated"`
	WindowHours     float64           `json:"window_hours"`
	HealthScore     float64           `json:"health_score"`
	Onboarding      onboardingOutput  `json:"onboarding"`
	Buttons         buttonsOutput     `json:"buttons"`
	Performance     performanceOutput `json:"performance"`
	Recommendations []string          `json:"recommendations"`
	OpenAlerts      int               `json:"open_alerts"`
}

type onboardingOutput struct {
	Started        int     `json:"started"`
	Completed      int     `json:"completed"`
	Skipped        int     `json:"skipped"`
	CompletionRate float64 `json:"completion_rate"`
	AvgDurationSec float64 `json:"avg_duration_sec"`
}

type buttonsOutput struct {
	CTR              float64        `json:"ctr"`
	TotalClicks      int            `json:"total_clicks"`
	TotalImpressions int            `json:"total_impressions"`
	Top              []buttonOutput `json:"top"`
}

type buttonOutput struct {
	Button string `json:"button"`
	Clicks int    `json:"clicks"`
}

type performanceOutput struct {
	AvgResponseMS float64 `json:"avg_response_ms"`
	P95ResponseMS float64 `json:"p95_response_ms"`
	ErrorRate     float64 `json:"error_rate"`
	ErrorCount    int     `json:"error_count"`
}

type getOptimizationReportInput struct {
	Run bool `json:"run,omitempty" jsonschema:"run a fresh analyze-and-optimize pass before reporting (default: report the current backlog)"`
}

type optimizationReportOutput struct {
	Generated       string         `json:"generated"`
	Identified      int            `json:"identified"`
	Completed       int            `json:"completed"`
	PendingImpact   int            `json:"pending_impact"`
	RecentCompleted []string       `json:"recent_completed,omitempty"`
	NextActions     []actionOutput `json:"next_actions"`
}

type actionOutput struct {
	ID       string `json:"id"`
	Area     string `json:"area"`
	Priority string `json:"priority"`
	Title    string `json:"title"`
	Impact   int    `json:"impact"`
	Effort   int    `json:"effort"`
	Status   string `json:"status"`
}

type getMessageInput struct {
	UserID  string `json:"user_id" jsonschema:"required,the user the message is for"`
	Kind    string `json:"kind" jsonschema:"required,message kind: quick_actions, premium_upsell, or share"`
	Context string `json:"context,omitempty" jsonschema:"surface context for quick_actions (e.g. after_scan)"`
}

type getMessageOutput struct {
	Text string `json:"text"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "record_metric",
		Description: "Record a raw metric event. Kinds: counter, gauge, histogram.",
	}, s.handleRecordMetric)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "track_onboarding",
		Description: "Track an onboarding funnel event for a user: started, step, completed, or skipped.",
	}, s.handleTrackOnboarding)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "track_button",
		Description: "Track a button impression or click.",
	}, s.handleTrackButton)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "assign_variant",
		Description: "Assign a user to an experiment variant. Assignment is sticky: repeated calls return the same variant.",
	}, s.handleAssignVariant)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "track_conversion",
		Description: "Record a conversion or metric observation for a user's assigned variant. Silently ignored when the experiment is not running or the user is unassigned.",
	}, s.handleTrackConversion)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_report",
		Description: "Get the aggregated metrics report over a window: onboarding funnel, button CTR, performance, health score, and recommendations.",
	}, s.handleGetReport)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_optimization_report",
		Description: "Get the optimization backlog report, optionally running a fresh analyze-and-optimize pass first.",
	}, s.handleGetOptimizationReport)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_message",
		Description: "Get the experiment-selected message text for a user: quick_actions, premium_upsell, or share.",
	}, s.handleGetMessage)
}

// --- Tool handlers ---

func (s *Server) handleRecordMetric(_ context.Context, _ *gomcp.CallToolRequest, input recordMetricInput) (*gomcp.CallToolResult, recordMetricOutput, error) {
	if input.Name == "" {
		return errorResult("name is required"), recordMetricOutput{}, nil
	}

	kind, err := models.ParseMetricKind(input.Kind)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing kind: %s", err)), recordMetricOutput{}, nil
	}

	value := input.Value
	if kind == models.KindCounter && value == 0 {
		value = 1
	}

	s.metrics.Record(input.Name, kind, value, input.Tags)

	out := recordMetricOutput{
		Message: fmt.Sprintf("recorded %s %s=%g", kind, input.Name, value),
	}
	return nil, out, nil
}

func (s *Server) handleTrackOnboarding(_ context.Context, _ *gomcp.CallToolRequest, input trackOnboardingInput) (*gomcp.CallToolResult, trackOnboardingOutput, error) {
	if input.UserID == "" {
		return errorResult("user_id is required"), trackOnboardingOutput{}, nil
	}

	switch input.Event {
	case "started":
		s.metrics.TrackOnboardingStarted(input.UserID)
	case "step":
		if input.Step == "" {
			return errorResult("step is required for the step event"), trackOnboardingOutput{}, nil
		}
		s.metrics.TrackOnboardingStep(input.UserID, input.Step)
	case "completed":
		duration := time.Duration(input.DurationSec * float64(time.Second))
		s.metrics.TrackOnboardingCompleted(input.UserID, duration)
	case "skipped":
		s.metrics.TrackOnboardingSkipped(input.UserID)
	default:
		return errorResult(fmt.Sprintf("invalid event %q: must be one of started, step, completed, skipped", input.Event)), trackOnboardingOutput{}, nil
	}

	out := trackOnboardingOutput{
		Message: fmt.Sprintf("tracked onboarding %s for %s", input.Event, input.UserID),
	}
	return nil, out, nil
}

func (s *Server) handleTrackButton(_ context.Context, _ *gomcp.CallToolRequest, input trackButtonInput) (*gomcp.CallToolResult, trackButtonOutput, error) {
	if input.Button == "" {
		return errorResult("button is required"), trackButtonOutput{}, nil
	}

	switch input.Event {
	case "impression":
		s.metrics.TrackButtonImpression(input.Button)
	case "click":
		s.metrics.TrackButtonClick(input.Button)
	default:
		return errorResult(fmt.Sprintf("invalid event %q: must be impression or click", input.Event)), trackButtonOutput{}, nil
	}

	out := trackButtonOutput{
		Message: fmt.Sprintf("tracked %s for %s", input.Event, input.Button),
	}
	return nil, out, nil
}

func (s *Server) handleAssignVariant(_ context.Context, _ *gomcp.CallToolRequest, input assignVariantInput) (*gomcp.CallToolResult, assignVariantOutput, error) {
	if input.UserID == "" {
		return errorResult("user_id is required"), assignVariantOutput{}, nil
	}
	if input.ExperimentID == "" {
		return errorResult("experiment_id is required"), assignVariantOutput{}, nil
	}

	variant, err := s.experiments.AssignVariant(input.UserID, input.ExperimentID)
	if err != nil {
		return errorResult(fmt.Sprintf("assigning variant: %s", err)), assignVariantOutput{}, nil
	}

	return nil, assignVariantOutput{Variant: variant}, nil
}

func (s *Server) handleTrackConversion(_ context.Context, _ *gomcp.CallToolRequest, input trackConversionInput) (*gomcp.CallToolResult, trackConversionOutput, error) {
	if input.UserID == "" {
		return errorResult("user_id is required"), trackConversionOutput{}, nil
	}
	if input.ExperimentID == "" {
		return errorResult("experiment_id is required"), trackConversionOutput{}, nil
	}
	if input.Converted == nil && input.Value == nil {
		return errorResult("one of converted or value is required"), trackConversionOutput{}, nil
	}

	before, assigned := s.experiments.AssignedVariant(input.UserID, input.ExperimentID)
	var n int
	if assigned {
		n = s.experiments.SampleCount(input.ExperimentID, before)
	}

	if input.Value != nil {
		s.experiments.TrackMetric(input.UserID, input.ExperimentID, *input.Value)
	} else {
		s.experiments.TrackConversion(input.UserID, input.ExperimentID, *input.Converted)
	}

	// Tracking never errors; detect whether the observation landed by
	// comparing sample counts.
	tracked := assigned && s.experiments.SampleCount(input.ExperimentID, before) > n

	out := trackConversionOutput{Tracked: tracked}
	if tracked {
		out.Message = fmt.Sprintf("recorded observation for %s in %s", input.UserID, input.ExperimentID)
	} else {
		out.Message = "observation ignored (experiment not running or user unassigned)"
	}
	return nil, out, nil
}

func (s *Server) handleGetReport(_ context.Context, _ *gomcp.CallToolRequest, input getReportInput) (*gomcp.CallToolResult, reportOutput, error) {
	hours := input.Hours
	if hours <= 0 {
		hours = 24
	}

	report := s.metrics.GenerateReport(time.Duration(hours) * time.Hour)

	out := reportOutput{
		Generated:   report.Generated.Format(time.RFC3339),
		WindowHours: report.WindowHours,
		HealthScore: report.HealthScore,
		Onboarding: onboardingOutput{
			Started:        report.Onboarding.Started,
			Completed:      report.Onboarding.Completed,
			Skipped:        report.Onboarding.Skipped,
			CompletionRate: report.Onboarding.CompletionRate,
			AvgDurationSec: report.Onboarding.AvgDurationSec,
		},
		Buttons: buttonsOutput{
			CTR:              report.Buttons.CTR,
			TotalClicks:      report.Buttons.TotalClicks,
			TotalImpressions: report.Buttons.TotalImpressions,
		},
		Performance: performanceOutput{
			AvgResponseMS: report.Performance.AvgResponseMS,
			P95ResponseMS: report.Performance.P95ResponseMS,
			ErrorRate:     report.Performance.ErrorRate,
			ErrorCount:    report.Performance.ErrorCount,
		},
		Recommendations: report.Recommendations,
		OpenAlerts:      len(s.metrics.Alerts(true)),
	}
	for _, b := range report.Buttons.Top {
		out.Buttons.Top = append(out.Buttons.Top, buttonOutput{Button: b.Button, Clicks: b.Clicks})
	}

	return nil, out, nil
}

func (s *Server) handleGetOptimizationReport(_ context.Context, _ *gomcp.CallToolRequest, input getOptimizationReportInput) (*gomcp.CallToolResult, optimizationReportOutput, error) {
	var out optimizationReportOutput

	if input.Run {
		report, err := s.controller.AnalyzeAndOptimize()
		if err != nil {
			return errorResult(fmt.Sprintf("running optimization pass: %s", err)), optimizationReportOutput{}, nil
		}
		out.Generated = report.Generated.Format(time.RFC3339)
		out.Identified = report.Identified
		out.Completed = report.Completed
		out.PendingImpact = report.PendingImpact
		out.RecentCompleted = report.RecentCompleted
		for _, a := range report.NextActions {
			out.NextActions = append(out.NextActions, actionToOutput(a))
		}
		return nil, out, nil
	}

	out.Generated = time.Now().UTC().Format(time.RFC3339)
	for _, a := range s.controller.Backlog() {
		out.PendingImpact += a.Impact
		out.NextActions = append(out.NextActions, actionToOutput(a))
	}
	return nil, out, nil
}

func (s *Server) handleGetMessage(_ context.Context, _ *gomcp.CallToolRequest, input getMessageInput) (*gomcp.CallToolResult, getMessageOutput, error) {
	if s.selector == nil {
		return errorResult("message selector not available"), getMessageOutput{}, nil
	}
	if input.UserID == "" {
		return errorResult("user_id is required"), getMessageOutput{}, nil
	}

	var text string
	switch input.Kind {
	case "quick_actions":
		text = s.selector.QuickActionsForContext(input.UserID, input.Context)
	case "premium_upsell":
		text = s.selector.PremiumUpsellMessage(input.UserID)
	case "share":
		text = s.selector.ShareMessage(input.UserID)
	default:
		return errorResult(fmt.Sprintf("invalid kind %q: must be one of quick_actions, premium_upsell, share", input.Kind)), getMessageOutput{}, nil
	}

	return nil, getMessageOutput{Text: text}, nil
}

// --- Helpers ---

func actionToOutput(a *models.OptimizationAction) actionOutput {
	return actionOutput{
		ID:       a.ID,
		Area:     a.Area,
		Priority: string(a.Priority),
		Title:    a.Title,
		Impact:   a.Impact,
		Effort:   a.Effort,
		Status:   string(a.Status),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
