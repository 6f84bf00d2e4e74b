package resilience

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Decision is the operator's resolution for a blocked ZIP.
type Decision string

const (
	// DecisionRetry re-attempts the ZIP after backoff.
	DecisionRetry Decision = "retry"
	// DecisionSkip abandons the ZIP and continues the run.
	DecisionSkip Decision = "skip"
	// DecisionAbort stops the entire run after a final flush.
	DecisionAbort Decision = "abort"
)

// DecisionProvider chooses what to do when a ZIP comes back blocked and the
// retry budget is not yet exhausted.
type DecisionProvider interface {
	Resolve(zipCode string, attempt int, issues []string) Decision
}

// StaticProvider always returns the same decision. The non-interactive
// default skips blocked ZIPs so unattended runs keep moving.
type StaticProvider struct {
	Decision Decision
}

func (p StaticProvider) Resolve(string, int, []string) Decision {
	if p.Decision == "" {
		return DecisionSkip
	}
	return p.Decision
}

// PromptProvider asks the operator on the terminal. Unrecognized or empty
// input falls back to skip, so a stray newline never aborts a long crawl.
type PromptProvider struct {
	In  io.Reader
	Out io.Writer
}

func (p PromptProvider) Resolve(zipCode string, attempt int, issues []string) Decision {
	fmt.Fprintf(p.Out, "zip %s blocked on attempt %d: %s\n", zipCode, attempt, strings.Join(issues, "; "))
	fmt.Fprint(p.Out, "[r]etry / [s]kip / [a]bort? ")

	scanner := bufio.NewScanner(p.In)
	if !scanner.Scan() {
		zap.L().Warn("prompt input closed, skipping zip", zap.String("zip", zipCode))
		return DecisionSkip
	}
	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "r", "retry":
		return DecisionRetry
	case "a", "abort":
		return DecisionAbort
	case "s", "skip", "":
		return DecisionSkip
	default:
		return DecisionSkip
	}
}
