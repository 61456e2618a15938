package record

import (
	"fmt"
	"strings"

	"github.com/relvacode/iso8601"

	"github.com/sweeney/field-logger/internal/clock"
)

// Parsed is a line read back from a log file.
type Parsed struct {
	Timestamp clock.Calendar
	Values    []string
}

// ParseLine splits a line produced by Format back into its timestamp and
// raw field values. The trailing newline is optional.
func ParseLine(line string) (Parsed, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Parsed{}, fmt.Errorf("record: empty line")
	}
	if err := Line(line + "\n").Validate(); err != nil {
		return Parsed{}, err
	}

	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = p[1 : len(p)-1]
	}

	t, err := iso8601.ParseString(parts[0])
	if err != nil {
		return Parsed{}, fmt.Errorf("record: timestamp %q: %w", parts[0], err)
	}
	return Parsed{
		Timestamp: clock.FromTime(t.UTC()),
		Values:    parts[1:],
	}, nil
}
