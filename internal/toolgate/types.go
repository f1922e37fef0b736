// Package toolgate implements the Tool Fallback & Meta-Reasoning Gate
// (spec §4.4): before-execution argument validation and advisory
// injection, after-execution failure classification, and the bounded
// failure ring that feeds PACE.
package toolgate

// ErrorKind is one of the fixed classification outcomes (spec §3
// FailureRecord).
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindTimeout    ErrorKind = "timeout"
	KindNotFound   ErrorKind = "not_found"
	KindPermission ErrorKind = "permission"
	KindSyntax     ErrorKind = "syntax"
	KindNetwork    ErrorKind = "network"
	KindResource   ErrorKind = "resource"
	KindDependency ErrorKind = "dependency"
	KindExecution  ErrorKind = "execution"
)

// anyKey is the advice-table fallback wildcard for either side (spec §4.4:
// "falling back to (tool_name, any) then (any, error_kind)").
const anyKey = "*"

// FailureRecord is one entry in the bounded failure ring (spec §3).
type FailureRecord struct {
	ToolName       string    `json:"tool_name"`
	ErrorKind      ErrorKind `json:"error_kind"`
	MessagePreview string    `json:"message_preview"`
	Turn           int       `json:"turn"`
}

// AliasTable maps a tool's argument aliases to their canonical name,
// e.g. {"language": "runtime"} for a code execution tool.
type AliasTable map[string]string

// ArgSchema is the static per-tool argument contract validated before
// execution (spec §4.4 "Validate tool_args against a static schema").
type ArgSchema struct {
	Required []string          `json:"required"`
	Defaults map[string]string `json:"defaults"`
	Aliases  AliasTable        `json:"aliases"`
}

// SchemaTable is the full static tool_name -> ArgSchema table.
type SchemaTable map[string]ArgSchema

// AdviceTable is the static (tool_name, error_kind) -> advice lookup,
// keyed "tool_name|error_kind" with anyKey wildcards on either side.
type AdviceTable map[string]string

// Advice looks up the advice string for a tool/kind pair, falling back
// to (tool_name, any) then (any, error_kind) per spec §4.4.
func (t AdviceTable) Advice(toolName string, kind ErrorKind) (string, bool) {
	if v, ok := t[toolName+"|"+string(kind)]; ok {
		return v, true
	}
	if v, ok := t[toolName+"|"+anyKey]; ok {
		return v, true
	}
	if v, ok := t[anyKey+"|"+string(kind)]; ok {
		return v, true
	}
	return "", false
}

// PreCheckResult is what the before-execution gate returns.
type PreCheckResult struct {
	Args     map[string]interface{}
	Blocked  bool
	Reason   ErrorKind
	Warnings []string
}

// PostCheckResult is what the after-execution logger returns.
type PostCheckResult struct {
	Kind                 ErrorKind
	ConsecutiveFailures  int
	GlobalThresholdHit   bool
}
