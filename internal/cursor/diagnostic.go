package cursor

import "fmt"

// Severity orders diagnostics the way libclang does.
type Severity int

const (
	Ignored Severity = iota
	Note
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Ignored:
		return "ignored"
	case Note:
		return "note"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// FixIt is a suggested replacement of Range with Value.
type FixIt struct {
	Range Extent
	Value string
}

// Diagnostic is a parse problem reported by the provider. Diagnostics are data:
// they never stop extraction.
type Diagnostic struct {
	Severity Severity
	File     string
	Location Position
	Spelling string
	Ranges   []Extent
	FixIts   []FixIt
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Location.Line, d.Location.Column, d.Severity, d.Spelling)
}
