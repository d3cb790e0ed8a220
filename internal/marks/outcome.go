// Package marks classifies mark primitives into outcomes.
package marks

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Outcome is the classification of one row's mark.
type Outcome int

const (
	// Unknown means no mark was found or no confident signal was present.
	Unknown Outcome = iota
	Correct
	Incorrect
	Partial
)

var outcomeNames = map[Outcome]string{
	Unknown:   "unknown",
	Correct:   "correct",
	Incorrect: "incorrect",
	Partial:   "partial",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ParseOutcome accepts the names produced by String, case-insensitively.
func ParseOutcome(s string) (Outcome, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for o, name := range outcomeNames {
		if name == want {
			return o, nil
		}
	}
	return Unknown, fmt.Errorf("unknown outcome %q", s)
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// MarshalText lets Outcome decode from TOML and similar formats.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(text []byte) error {
	v, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
