package findings

// InlineSource is the alternative to ProjectPath on a ScanRequest: a single
// in-memory source file to scan, identified by a conventional file type
// (e.g. "java", "py") rather than a path.
type InlineSource struct {
	Content  string `json:"content"`
	FileType string `json:"file_type"`
}

// Options tunes a single scan run. The zero value is not valid; use
// DefaultOptions and override individual fields.
type Options struct {
	AIEnabled       bool                `json:"ai_enabled"`
	MaxBytesPerFile int64               `json:"max_bytes_per_file"`
	RuleFilter      map[string]bool     `json:"-"`
	RuleFilterAll   bool                `json:"-"`
	SeverityFloor   Severity            `json:"severity_floor"`
	LanguageFilter  map[Language]bool   `json:"-"`
	LanguageAll     bool                `json:"-"`
}

// DefaultOptions matches spec §3's documented defaults.
func DefaultOptions() Options {
	return Options{
		AIEnabled:       true,
		MaxBytesPerFile: 1 << 20,
		RuleFilterAll:   true,
		SeverityFloor:   SeverityLow,
		LanguageAll:     true,
	}
}

// AllowsRule reports whether ruleID passes the rule_filter.
func (o Options) AllowsRule(ruleID string) bool {
	if o.RuleFilterAll || len(o.RuleFilter) == 0 {
		return true
	}
	return o.RuleFilter[ruleID]
}

// AllowsLanguage reports whether lang passes the language_filter.
func (o Options) AllowsLanguage(lang Language) bool {
	if o.LanguageAll || len(o.LanguageFilter) == 0 {
		return true
	}
	return o.LanguageFilter[lang]
}

// MeetsSeverityFloor reports whether sev is at or above the configured floor.
func (o Options) MeetsSeverityFloor(sev Severity) bool {
	floor := o.SeverityFloor
	if floor == "" {
		floor = SeverityLow
	}
	return sev.Rank() >= floor.Rank()
}

// ScanRequest is the top-level invocation input (spec §6). Exactly one of
// ProjectPath or InlineSource must be set.
type ScanRequest struct {
	CorrelationID string        `json:"correlation_id,omitempty"`
	TenantID      string        `json:"tenant_id,omitempty"`
	ProjectPath   string        `json:"project_path,omitempty"`
	InlineSource  *InlineSource `json:"inline_source,omitempty"`
	Options       Options       `json:"options"`
}

// Validate checks the "exactly one of project_path or inline_source" rule
// from spec §6. A failure here is the INPUT_INVALID error class.
func (r ScanRequest) Validate() error {
	hasPath := r.ProjectPath != ""
	hasInline := r.InlineSource != nil && r.InlineSource.Content != ""
	if hasPath == hasInline {
		return errInputInvalid{}
	}
	if hasInline && r.InlineSource.FileType == "" {
		return errInputInvalid{}
	}
	return nil
}

type errInputInvalid struct{}

func (errInputInvalid) Error() string {
	return "INPUT_INVALID: exactly one of project_path or inline_source is required"
}
