package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/alertflow/internal/alert"
	"github.com/linnemanlabs/alertflow/internal/incident"
)

const (
	// ResponseTokens bounds the classifier's output per call.
	ResponseTokens = 4096

	// DefaultClassifierTimeout bounds a single classifier call.
	DefaultClassifierTimeout = 120 * time.Second
)

// Engine builds prompts, applies the classifier timeout, and degrades
// classifier failures into usable fallback assessments. Assessment
// methods never fail the caller; a broken classifier yields a degraded
// Assessment, not an error.
type Engine struct {
	classifier Classifier
	timeout    time.Duration
	metrics    *Metrics
	logger     log.Logger
}

// NewEngine creates a triage engine. A non-positive timeout falls back
// to DefaultClassifierTimeout; nil metrics and logger are allowed.
func NewEngine(classifier Classifier, timeout time.Duration, metrics *Metrics, logger log.Logger) *Engine {
	if timeout <= 0 {
		timeout = DefaultClassifierTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		classifier: classifier,
		timeout:    timeout,
		metrics:    metrics,
		logger:     logger,
	}
}

// AssessAlert classifies a normalized alert. On classifier failure the
// returned assessment carries the alert's own severity and never flags
// incident creation.
func (e *Engine) AssessAlert(ctx context.Context, al *alert.Alert) *Assessment {
	raw, err := e.complete(ctx, "assess_alert", &Prompt{
		System:    assessmentSystemPrompt,
		User:      buildAlertPrompt(al),
		MaxTokens: ResponseTokens,
	})
	if err != nil {
		e.logger.Error(ctx, err, "alert assessment failed", "alert_id", al.ID)
		return &Assessment{Severity: string(al.Severity)}
	}
	return ParseAssessment(raw, string(al.Severity))
}

// AnalyzeLogs classifies raw incident log text.
func (e *Engine) AnalyzeLogs(ctx context.Context, logs, severityHint string) *Assessment {
	raw, err := e.complete(ctx, "analyze_logs", &Prompt{
		System:    analysisSystemPrompt,
		User:      buildLogsPrompt(logs),
		MaxTokens: ResponseTokens,
	})
	if err != nil {
		e.logger.Error(ctx, err, "log analysis failed")
		return &Assessment{Severity: orDefault(severityHint)}
	}
	return ParseAssessment(raw, severityHint)
}

// StreamLogs analyzes incident log text with a streaming classifier
// call, invoking emit for every delta. It returns the full accumulated
// text; on error the accumulation up to the failure point is still
// returned so callers can persist a partial transcript.
func (e *Engine) StreamLogs(ctx context.Context, logs string, emit func(delta string) error) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	text, err := e.classifier.Stream(ctx, &Prompt{
		System:    streamSystemPrompt,
		User:      buildLogsPrompt(logs),
		MaxTokens: ResponseTokens,
	}, emit)
	e.metrics.ObserveClassifier("stream", err, time.Since(start))
	return text, err
}

// AnswerQuestion answers a free-text question given incident context.
// Unlike the assessment methods this returns the classifier error, since
// command and query callers deliver their own failure message.
func (e *Engine) AnswerQuestion(ctx context.Context, contextText, question string) (string, error) {
	return e.complete(ctx, "answer_question", &Prompt{
		System:    questionSystemPrompt,
		User:      buildQuestionPrompt(contextText, question),
		MaxTokens: ResponseTokens,
	})
}

func (e *Engine) complete(ctx context.Context, kind string, p *Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	out, err := e.classifier.Complete(ctx, p)
	e.metrics.ObserveClassifier(kind, err, time.Since(start))
	return out, err
}

const assessmentSystemPrompt = `You are AlertFlow, an incident triage AI for an engineering team.
You receive a monitoring alert and must assess it.

Respond with ONLY a JSON object, no prose, in this exact shape:
{
  "summary": "one or two sentences describing what is happening",
  "severity": "low|medium|high|critical",
  "root_causes": ["most likely cause first"],
  "immediate_actions": ["most urgent action first"],
  "recommendations": ["longer-term follow-ups"],
  "create_incident": true or false,
  "reasoning": "one sentence on why this does or does not warrant an incident"
}

Set create_incident true only when the alert indicates real user or
system impact that needs coordinated response.`

const analysisSystemPrompt = `You are AlertFlow, an incident triage AI. You receive raw incident logs
and must analyze them.

Respond with ONLY a JSON object, no prose, in this exact shape:
{
  "summary": "what is happening, in plain language",
  "severity": "low|medium|high|critical",
  "root_causes": ["most likely cause first"],
  "immediate_actions": ["most urgent action first"],
  "recommendations": ["longer-term follow-ups"],
  "create_incident": true or false,
  "reasoning": "one sentence of justification"
}`

const streamSystemPrompt = `You are AlertFlow, an incident triage AI replying inside a Slack incident
thread. Analyze the reported logs and messages: say what is happening,
the likely root cause, and the next steps. Be concise and operational;
engineers read this mid-incident.`

const questionSystemPrompt = `You are AlertFlow, an incident triage AI. Answer the engineer's question
using the incident context provided. Be concise and operational. If the
context does not contain the answer, say so rather than guessing.`

// buildAlertPrompt summarizes a normalized alert for assessment.
func buildAlertPrompt(al *alert.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert received from %s:\nTitle: %s\nSeverity: %s\n", al.Source, al.Title, al.Severity)
	if al.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", al.Description)
	}
	if len(al.RawData) > 0 {
		fmt.Fprintf(&b, "\nRaw payload:\n%s\n", al.RawData)
	}
	b.WriteString("\nAssess this alert.")
	return b.String()
}

func buildLogsPrompt(logs string) string {
	return fmt.Sprintf("Incident logs:\n\n%s\n\nAnalyze these logs.", logs)
}

func buildQuestionPrompt(contextText, question string) string {
	if contextText == "" {
		return fmt.Sprintf("Question: %s", question)
	}
	return fmt.Sprintf("Incident context:\n\n%s\n\nQuestion: %s", contextText, question)
}

// BuildIncidentContext renders an incident and its recent queries into
// prompt context for Q&A.
func BuildIncidentContext(inc *incident.Incident, history []incident.Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incident %s\nTitle: %s\nSeverity: %s\nStatus: %s\n", inc.ID, inc.Title, inc.Severity, inc.Status)
	if inc.AISummary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", inc.AISummary)
	}
	if inc.RawLogs != "" {
		fmt.Fprintf(&b, "\nLogs:\n%s\n", inc.RawLogs)
	}
	if len(history) > 0 {
		b.WriteString("\nPrevious questions:\n")
		for _, q := range history {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", q.Query, q.Response)
		}
	}
	return b.String()
}

// BuildRecentIncidentContext renders a recent-incident window into
// prompt context for slash commands.
func BuildRecentIncidentContext(incs []incident.Incident) string {
	if len(incs) == 0 {
		return "No recent incidents on record."
	}
	var b strings.Builder
	b.WriteString("Recent incidents, most recent first:\n")
	for _, inc := range incs {
		fmt.Fprintf(&b, "- [%s/%s] %s", inc.Severity, inc.Status, inc.Title)
		if inc.AISummary != "" {
			fmt.Fprintf(&b, ": %s", firstLine(inc.AISummary))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
