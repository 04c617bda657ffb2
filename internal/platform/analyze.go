package platform

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// PerformanceReport summarises a workflow's recent executions.
type PerformanceReport struct {
	WorkflowID             string   `json:"workflow_id"`
	AnalysisPeriodHours    int      `json:"analysis_period_hours"`
	TotalExecutions        int      `json:"total_executions"`
	SuccessfulExecutions   int      `json:"successful_executions"`
	FailedExecutions       int      `json:"failed_executions"`
	SuccessRatePercent     float64  `json:"success_rate_percent"`
	AverageDurationSeconds float64  `json:"average_duration_seconds"`
	ErrorCount             int      `json:"error_count"`
	SampleErrors           []string `json:"sample_errors"`
}

const maxSampleErrors = 5

// Analyze computes a report over executions that started within the last
// hours before now. hours <= 0 keeps every execution.
func Analyze(execs []Execution, workflowID string, hours int, now time.Time) PerformanceReport {
	r := PerformanceReport{
		WorkflowID:          workflowID,
		AnalysisPeriodHours: hours,
		SampleErrors:        []string{},
	}
	var cutoff time.Time
	if hours > 0 {
		cutoff = now.Add(-time.Duration(hours) * time.Hour)
	}

	var total time.Duration
	var timed int
	for _, e := range execs {
		if !cutoff.IsZero() && e.StartedAt != nil && e.StartedAt.Before(cutoff) {
			continue
		}
		r.TotalExecutions++
		if succeeded(e) {
			r.SuccessfulExecutions++
		}
		if e.StartedAt != nil && e.StoppedAt != nil {
			total += e.StoppedAt.Sub(*e.StartedAt)
			timed++
		}
		if msg := errorMessage(e.Data); msg != "" {
			r.ErrorCount++
			if len(r.SampleErrors) < maxSampleErrors {
				r.SampleErrors = append(r.SampleErrors, msg)
			}
		}
	}
	r.FailedExecutions = r.TotalExecutions - r.SuccessfulExecutions
	if r.TotalExecutions > 0 {
		r.SuccessRatePercent = round2(float64(r.SuccessfulExecutions) / float64(r.TotalExecutions) * 100)
	}
	if timed > 0 {
		r.AverageDurationSeconds = round2(total.Seconds() / float64(timed))
	}
	return r
}

func succeeded(e Execution) bool {
	if e.Status != "" {
		return e.Status == "success"
	}
	return e.Finished
}

// errorMessage digs data.resultData.error out of an execution payload.
func errorMessage(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var payload struct {
		ResultData struct {
			Error json.RawMessage `json:"error"`
		} `json:"resultData"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.ResultData.Error) == 0 {
		return ""
	}
	raw := payload.ResultData.Error
	if string(raw) == "null" {
		return ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SuggestionsMarkdown wraps the model's advice in the report header.
func (r PerformanceReport) SuggestionsMarkdown(body string, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Workflow Optimization Suggestions\n\n")
	fmt.Fprintf(&b, "**Workflow ID:** %s  \n", r.WorkflowID)
	fmt.Fprintf(&b, "**Analysis Period:** Last %d hours  \n", r.AnalysisPeriodHours)
	fmt.Fprintf(&b, "**Success Rate:** %g%%  \n", r.SuccessRatePercent)
	fmt.Fprintf(&b, "**Avg Duration:** %gs\n\n---\n\n", r.AverageDurationSeconds)
	b.WriteString(strings.TrimSpace(body))
	fmt.Fprintf(&b, "\n\n---\n\n*Generated by AI Analysis on %s*\n", now.Format("2006-01-02 15:04:05"))
	return b.String()
}
