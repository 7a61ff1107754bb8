// Package render formats CLI output.
//
// Format selection:
//   - --format always wins; invalid formats are errors
//   - otherwise a terminal gets table and anything else gets json
//
// --no-color affects table output only.
package render

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/scriptrun/cli/tui"
	"github.com/pithecene-io/scriptrun/types"
)

// Format is an output format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses s. Blank returns "" so the caller can pick a default.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer writes values in one format.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer reads --format and --no-color from c and writes to stdout.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatJSON
		if isTTY(os.Stdout) {
			format = FormatTable
		}
	}
	return &Renderer{format: format, noColor: c.Bool("no-color"), out: os.Stdout}, nil
}

// NewRendererWithWriter creates a renderer over out (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

// Format returns the selected format.
func (r *Renderer) Format() Format { return r.format }

// Render writes data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatYAML:
		return r.renderYAML(data)
	case FormatTable:
		if result, ok := data.(*types.StepResult); ok {
			return r.renderResult(result)
		}
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI shows result in the interactive inspect view.
func (r *Renderer) RenderTUI(result *types.StepResult) error {
	return tui.Run(result)
}

func (r *Renderer) renderJSON(data any) error {
	b, err := sonic.ConfigStd.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.out, string(b))
	return err
}

// renderYAML goes through JSON so keys match the json tags.
func (r *Renderer) renderYAML(data any) error {
	b, err := sonic.Marshal(data)
	if err != nil {
		return err
	}
	var generic any
	if err := sonic.Unmarshal(b, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func (r *Renderer) paint(attr color.Attribute, s string) string {
	if r.noColor {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

func (r *Renderer) statusColor(s types.StepStatus) color.Attribute {
	switch s {
	case types.StepStatusSuccess:
		return color.FgGreen
	case types.StepStatusFailure:
		return color.FgYellow
	default:
		return color.FgRed
	}
}

func (r *Renderer) renderResult(res *types.StepResult) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "build_id:\t%s\n", res.BuildID)
	if res.TaskID != "" {
		fmt.Fprintf(w, "task_id:\t%s\n", res.TaskID)
	}
	if res.Shell != "" {
		fmt.Fprintf(w, "shell:\t%s\n", res.Shell)
	}
	fmt.Fprintf(w, "status:\t%s\n", r.paint(r.statusColor(res.Status), string(res.Status)))
	fmt.Fprintf(w, "exit_code:\t%d\n", res.ExitCode)
	if res.ErrorType != types.ErrorTypeNone {
		fmt.Fprintf(w, "error:\t%s %d\n", res.ErrorType, res.ErrorCode)
	}
	fmt.Fprintf(w, "duration:\t%s\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "drained:\t%t\n", res.Drained)
	if res.StoragePath != "" {
		fmt.Fprintf(w, "storage_path:\t%s\n", res.StoragePath)
	}
	// Only the first message line fits the table.
	msg, _, _ := strings.Cut(res.Message, "\n")
	fmt.Fprintf(w, "message:\t%s\n", msg)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(res.Data) == 0 {
		return nil
	}
	fmt.Fprintln(r.out)
	w = tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tVALUE")
	names := make([]string, 0, len(res.Data))
	for name := range res.Data {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		o := res.Data[name]
		value := o.Value
		if len(o.Matches) > 0 {
			value = fmt.Sprintf("%s (%d files)", value, len(o.Matches))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, o.Type, value)
	}
	return w.Flush()
}

func (r *Renderer) renderTable(data any) error {
	v := reflect.Indirect(reflect.ValueOf(data))
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	switch v.Kind() {
	case reflect.Slice:
		if v.Len() == 0 {
			fmt.Fprintln(r.out, "(no results)")
			return nil
		}
		elem := reflect.Indirect(v.Index(0))
		if elem.Kind() != reflect.Struct {
			for i := range v.Len() {
				fmt.Fprintln(w, formatValue(v.Index(i)))
			}
			break
		}
		headers := make([]string, elem.NumField())
		for i := range headers {
			headers[i] = strings.ToUpper(fieldName(elem.Type().Field(i)))
		}
		fmt.Fprintln(w, strings.Join(headers, "\t"))
		for i := range v.Len() {
			row := reflect.Indirect(v.Index(i))
			cells := make([]string, row.NumField())
			for j := range cells {
				cells[j] = formatValue(row.Field(j))
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
	case reflect.Struct:
		for i := range v.NumField() {
			fmt.Fprintf(w, "%s:\t%s\n", fieldName(v.Type().Field(i)), formatValue(v.Field(i)))
		}
	case reflect.Map:
		keys := make([]string, 0, v.Len())
		vals := make(map[string]reflect.Value, v.Len())
		for it := v.MapRange(); it.Next(); {
			k := fmt.Sprint(it.Key().Interface())
			keys = append(keys, k)
			vals[k] = it.Value()
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s:\t%s\n", k, formatValue(vals[k]))
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}
	return w.Flush()
}

func fieldName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return strings.ToLower(f.Name)
}

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if t, ok := v.Interface().(time.Time); ok {
			return t.Format(time.RFC3339)
		}
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
