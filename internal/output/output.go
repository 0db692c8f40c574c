package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format represents output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatTable
	}
}

// Printer handles formatted output
type Printer struct {
	format  Format
	writer  io.Writer
	noColor bool
}

// NewPrinter creates a new printer
func NewPrinter(format Format) *Printer {
	return &Printer{
		format:  format,
		writer:  os.Stdout,
		noColor: os.Getenv("NO_COLOR") != "",
	}
}

// SetWriter sets the output writer. Writers other than stdout never get
// color codes.
func (p *Printer) SetWriter(w io.Writer) {
	p.writer = w
	if w != os.Stdout {
		p.noColor = true
	}
}

// Print outputs data in the configured format. Table format falls back to
// indented JSON for values that have no dedicated table layout.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatYAML:
		return p.printYAML(data)
	default:
		return p.printJSON(data)
	}
}

func (p *Printer) printJSON(data any) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (p *Printer) printYAML(data any) error {
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(data)
}

// Color codes
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

// Colorize adds color to text
func (p *Printer) Colorize(color, text string) string {
	if p.noColor {
		return text
	}
	return color + text + Reset
}

// TableWriter creates a tabwriter for aligned output
func (p *Printer) TableWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
}

// StatsRow is the cache statistics snapshot reported by the daemon.
type StatsRow struct {
	Hits         int64   `json:"hits" yaml:"hits"`
	Misses       int64   `json:"misses" yaml:"misses"`
	HitRate      float64 `json:"hitRate" yaml:"hitRate"`
	Availability string  `json:"backendAvailability" yaml:"backendAvailability"`
}

// PrintStats prints a statistics snapshot.
func (p *Printer) PrintStats(s StatsRow) error {
	if p.format != FormatTable {
		return p.Print(s)
	}

	w := p.TableWriter()
	fmt.Fprintln(w, p.Colorize(Bold, "HITS\tMISSES\tHIT RATE\tBACKEND"))
	fmt.Fprintf(w, "%d\t%d\t%.1f%%\t%s\n",
		s.Hits, s.Misses, s.HitRate*100, p.Colorize(availabilityColor(s.Availability), s.Availability))
	return w.Flush()
}

func availabilityColor(a string) string {
	switch a {
	case "connected":
		return Green
	case "connecting":
		return Yellow
	default:
		return Red
	}
}

// PrintResult prints the JSON object returned by an admin action. Table
// format lists its fields as aligned key/value pairs, sorted by key.
func (p *Printer) PrintResult(result map[string]any) error {
	if p.format != FormatTable {
		return p.Print(result)
	}

	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := p.TableWriter()
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", p.Colorize(Gray, k+":"), formatValue(result[k]))
	}
	return w.Flush()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case bool:
		if val {
			return "yes"
		}
		return "no"
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		if len(parts) == 0 {
			return "-"
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// Success prints a success message
func (p *Printer) Success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.writer, p.Colorize(Green, "✓ ")+msg)
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.writer, p.Colorize(Yellow, "⚠ ")+msg)
}
