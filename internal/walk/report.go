package walk

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Outcome classifies how a walkthrough ended
type Outcome string

const (
	OutcomePassed      Outcome = "passed"
	OutcomeFailed      Outcome = "failed"
	OutcomeUnreachable Outcome = "unreachable"
)

// StepResult records one request of the walkthrough.
type StepResult struct {
	Number     int           `json:"number" yaml:"number"`
	Name       string        `json:"name" yaml:"name"`
	Method     string        `json:"method" yaml:"method"`
	Path       string        `json:"path" yaml:"path"`
	StatusCode int           `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Duration   time.Duration `json:"-" yaml:"-"`
	Elapsed    string        `json:"elapsed" yaml:"elapsed"`
	Value      string        `json:"value,omitempty" yaml:"value,omitempty"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report summarizes a walkthrough run.
type Report struct {
	SessionID  string       `json:"sessionId" yaml:"sessionId"`
	Endpoint   string       `json:"endpoint" yaml:"endpoint"`
	Outcome    Outcome      `json:"outcome" yaml:"outcome"`
	StartedAt  time.Time    `json:"startedAt" yaml:"startedAt"`
	Elapsed    string       `json:"elapsed" yaml:"elapsed"`
	Steps      []StepResult `json:"steps" yaml:"steps"`
	Screenshot *Artifact    `json:"screenshot,omitempty" yaml:"screenshot,omitempty"`
	CleanedUp  bool         `json:"cleanedUp" yaml:"cleanedUp"`
	Error      string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// Step returns the first recorded step with the given name
func (r *Report) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

func (r *Report) add(s StepResult) {
	s.Elapsed = s.Duration.Round(time.Millisecond).String()
	r.Steps = append(r.Steps, s)
}

// Encode writes the report as json or yaml
func (r *Report) Encode(w io.Writer, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}
