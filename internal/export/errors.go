package export

import (
	"fmt"
	"sort"
	"strings"
)

// Severity ranks a validation finding. Danger aborts the export;
// warnings travel alongside a successful result.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Action tells the host UI how to navigate the user to the offending
// records.
type Action struct {
	Text  string
	Model string
	IDs   []int
}

// Error is one validation finding.
type Error struct {
	Code     string
	Message  string
	Severity Severity
	Action   *Action
}

// ErrorMap collects findings keyed by code.
type ErrorMap map[string]Error

// Add stores e under its code.
func (m ErrorMap) Add(e Error) {
	m[e.Code] = e
}

// Merge copies every entry of other into m.
func (m ErrorMap) Merge(other ErrorMap) {
	for code, e := range other {
		m[code] = e
	}
}

// HasDanger reports whether any finding is blocking.
func (m ErrorMap) HasDanger() bool {
	for _, e := range m {
		if e.Severity == SeverityDanger {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking subset.
func (m ErrorMap) Warnings() ErrorMap {
	out := make(ErrorMap)
	for code, e := range m {
		if e.Severity == SeverityWarning {
			out[code] = e
		}
	}
	return out
}

// Codes returns the finding codes in sorted order.
func (m ErrorMap) Codes() []string {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ExportFailed is returned when any danger finding fired. It carries
// the full map, warnings included, so the caller can render both.
type ExportFailed struct {
	Errors ErrorMap
}

func (e *ExportFailed) Error() string {
	return fmt.Sprintf("export failed: %s", strings.Join(e.Errors.Codes(), ", "))
}
