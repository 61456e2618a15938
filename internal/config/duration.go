package config

import (
	"fmt"
	"time"

	"github.com/sosodev/duration"
)

// Duration is a time.Duration that decodes from Go syntax ("5s", "2m")
// or ISO 8601 ("PT5S").
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	s := string(b)
	if v, err := time.ParseDuration(s); err == nil {
		*d = Duration(v)
		return nil
	}
	parsed, err := duration.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: use Go syntax (5s) or ISO 8601 (PT5S)", s)
	}
	*d = Duration(parsed.ToTimeDuration())
	return nil
}
