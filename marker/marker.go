// Package marker parses the ::set-* line protocol printed by user scripts.
//
// A marker is a whole output line of one of these forms, optionally wrapped
// in one pair of double quotes:
//
//	::set-variable name=KEY::VALUE
//	::set-output name=N[,type=T][,label=L][,path=P][,reportType=R]::VALUE
//	::set-gate-value name=N[,title=T]::VALUE
//	::set-remark TEXT
//
// Each parser returns the scratch record the marker persists as. Records
// are the contract between the streaming pipeline and the aggregator.
package marker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind identifies a marker grammar.
type Kind int

const (
	KindVariable Kind = iota + 1
	KindOutput
	KindGate
	KindRemark
)

// String returns the directive name for the kind.
func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "set-variable"
	case KindOutput:
		return "set-output"
	case KindGate:
		return "set-gate-value"
	case KindRemark:
		return "set-remark"
	default:
		return "unknown"
	}
}

const (
	variablePrefix = "::set-variable"
	outputPrefix   = "::set-output"
	gatePrefix     = "::set-gate-value"
	remarkPrefix   = "::set-remark"

	separator = "::"

	// DefaultOutputType is used when set-output carries no type field.
	DefaultOutputType = "string"

	// RemarkKey is the context key a remark is stored under.
	RemarkKey = "BK_CI_BUILD_REMARK"

	// VariableKeyPrefix namespaces set-variable keys in the context file.
	VariableKeyPrefix = "variables."
)

// Marker is one recognised marker line.
type Marker struct {
	Kind Kind

	Name       string
	Type       string
	Label      string
	Path       string
	ReportType string
	Title      string

	Value string
}

// Record returns the persisted scratch form of the marker.
func (m Marker) Record() string {
	switch m.Kind {
	case KindVariable:
		return VariableKeyPrefix + m.Name + "=" + m.Value
	case KindOutput:
		return strings.Join([]string{m.Name, m.Type, m.Label, m.Path, m.ReportType}, ",") + "=" + m.Value
	case KindGate:
		rec := m.Name + "=" + m.Value
		if strings.TrimSpace(m.Title) != "" {
			rec += "," + m.Name + "=" + m.Title
		}
		return rec
	case KindRemark:
		return RemarkKey + "=" + m.Value
	default:
		return ""
	}
}

// Parse recognises any marker grammar. A line matches at most one.
func Parse(line string) (Marker, bool) {
	for _, p := range []func(string) (Marker, bool){
		parseVariable, parseOutput, parseGate, parseRemark,
	} {
		if m, ok := p(line); ok {
			return m, true
		}
	}
	return Marker{}, false
}

// ParseVariable returns the record for a set-variable line.
func ParseVariable(line string) (string, bool) {
	return record(parseVariable(line))
}

// ParseOutput returns the record for a set-output line.
func ParseOutput(line string) (string, bool) {
	return record(parseOutput(line))
}

// ParseGate returns the record for a set-gate-value line.
func ParseGate(line string) (string, bool) {
	return record(parseGate(line))
}

// ParseRemark returns the record for a set-remark line.
func ParseRemark(line string) (string, bool) {
	return record(parseRemark(line))
}

func record(m Marker, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	return m.Record(), true
}

func parseVariable(line string) (Marker, bool) {
	body, ok := directive(line, variablePrefix)
	if !ok || !strings.HasPrefix(body, "name=") {
		return Marker{}, false
	}
	key, value, ok := strings.Cut(strings.TrimPrefix(body, "name="), separator)
	if !ok || key == "" {
		return Marker{}, false
	}
	return Marker{Kind: KindVariable, Name: key, Value: value}, true
}

func parseOutput(line string) (Marker, bool) {
	body, ok := directive(line, outputPrefix)
	if !ok {
		return Marker{}, false
	}
	left, value, ok := strings.Cut(body, separator)
	if !ok {
		return Marker{}, false
	}
	f := scanFields(left)
	typ := f["type"]
	if typ == "" {
		typ = DefaultOutputType
	}
	return Marker{
		Kind:       KindOutput,
		Name:       f["name"],
		Type:       typ,
		Label:      f["label"],
		Path:       f["path"],
		ReportType: f["reportType"],
		Value:      value,
	}, true
}

func parseGate(line string) (Marker, bool) {
	body, ok := directive(line, gatePrefix)
	if !ok {
		return Marker{}, false
	}
	left, value, ok := strings.Cut(body, separator)
	if !ok {
		return Marker{}, false
	}
	f := scanFields(left)
	if f["name"] == "" {
		return Marker{}, false
	}
	return Marker{Kind: KindGate, Name: f["name"], Title: f["title"], Value: value}, true
}

func parseRemark(line string) (Marker, bool) {
	body, ok := directive(line, remarkPrefix)
	if !ok {
		return Marker{}, false
	}
	return Marker{Kind: KindRemark, Value: body}, true
}

// directive strips one pair of surrounding quotes and the directive
// prefix, which must be followed by exactly one whitespace character.
// The returned body is the text after that whitespace.
func directive(line, prefix string) (string, bool) {
	if len(line) >= 2 && line[0] == '"' && line[len(line)-1] == '"' {
		line = line[1 : len(line)-1]
	}
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return "", false
	}
	r, size := utf8.DecodeRuneInString(rest)
	if size == 0 || !unicode.IsSpace(r) {
		return "", false
	}
	return rest[size:], true
}

// fieldPattern matches key=value pairs. The key must start the text or
// follow a non-letter, so "type=" inside "reportType=" is not a type field.
var fieldPattern = regexp.MustCompile(`(?:^|[^A-Za-z])(name|type|label|path|reportType|title)=([^,:=\s]*)`)

// scanFields extracts known fields in one pass. The first occurrence of
// each key wins.
func scanFields(s string) map[string]string {
	fields := make(map[string]string, 6)
	for _, m := range fieldPattern.FindAllStringSubmatch(s, -1) {
		if _, seen := fields[m[1]]; !seen {
			fields[m[1]] = m[2]
		}
	}
	return fields
}
