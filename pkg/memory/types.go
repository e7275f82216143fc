// Package memory implements the per-session context and memory
// store: bounded findings/artifacts, a two-tier fact memory (hot
// fact-sheet, cold semantic archive), and a rolling conversation with
// a context compressor.
package memory

import "time"

// Category is a Memory Entry's classification, used both to rank
// eviction priority and to group facts for the model.
type Category string

const (
	CategoryCorrection      Category = "correction"
	CategoryBlocker         Category = "blocker"
	CategoryDecision        Category = "decision"
	CategoryFinding         Category = "finding"
	CategoryFileContent     Category = "file_content"
	CategoryArchitecture    Category = "architecture"
	CategoryToolResult      Category = "tool_result"
	CategoryEnvironment     Category = "environment"
	CategoryUserPreference  Category = "user_preference"
	CategoryProjectRule     Category = "project_rule"
)

// evictionPriority lists categories from most-protected to
// first-to-drop, matching "corrections first retained, environment
// first dropped."
var evictionPriority = []Category{
	CategoryCorrection,
	CategoryBlocker,
	CategoryUserPreference,
	CategoryProjectRule,
	CategoryDecision,
	CategoryArchitecture,
	CategoryFinding,
	CategoryToolResult,
	CategoryFileContent,
	CategoryEnvironment,
}

func categoryRank(c Category) int {
	for i, cat := range evictionPriority {
		if cat == c {
			return i
		}
	}
	return len(evictionPriority)
}

// Fact is one hot-memory entry: a structured, token-bounded unit of
// durable session knowledge.
type Fact struct {
	ID           int64
	Category     Category
	Content      string
	Confidence   float64
	Source       string
	Iteration    int
	Supersedes   int64
	UpdatedAt    time.Time
	Confirmations int
}

// ColdEntry is an archived full tool output, retrievable by key or by
// semantic similarity.
type ColdEntry struct {
	Key       string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Severity ranks a Finding's importance.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// SuggestedAction is the recommended follow-up for a Finding.
type SuggestedAction string

const (
	ActionFix         SuggestedAction = "fix"
	ActionInvestigate SuggestedAction = "investigate"
	ActionOptimize    SuggestedAction = "optimize"
	ActionDocument    SuggestedAction = "document"
	ActionMonitor     SuggestedAction = "monitor"
	ActionAlert       SuggestedAction = "alert"
)

// FindingContext locates a Finding in the artifact it concerns.
type FindingContext struct {
	File      string
	Line      int
	Endpoint  string
	Timestamp time.Time
}

// Finding is a structured quality observation produced by an agent,
// stored separately from the synthesis context so it can be
// summarized compactly for the orchestrator.
type Finding struct {
	ID              int64
	Category        string
	Severity        Severity
	Title           string
	Description     string
	Context         *FindingContext
	Actionable      bool
	SuggestedAction SuggestedAction
}

// Artifact is a tool output smaller than ArtifactSizeThresholdBytes,
// kept by Store.RecordToolOutput apart from the rolling conversation.
// Outputs at or over the threshold are not kept as Artifacts;
// RecordToolOutput archives them to cold memory instead.
type Artifact struct {
	ID        int64
	ToolName  string
	Content   string
	SizeBytes int
	CreatedAt time.Time
}

const ArtifactSizeThresholdBytes = 500

// Message is one turn of the rolling conversation.
type Message struct {
	Role    string
	Content string
}

// FindingsSummary is the compact, token-bounded view of Findings
// injected into orchestrator context.
type FindingsSummary struct {
	CountBySeverity map[Severity]int
	Top             []Finding
}
