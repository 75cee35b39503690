package approval

import (
	"context"
	"fmt"
	"strings"
)

// DefaultRejectReason is the reason attached by AutoReject when none
// is supplied.
const DefaultRejectReason = "Rejected by user"

// PromptFunc asks the human a question and returns their raw answer.
// Injected so the CLI layer owns terminal I/O.
type PromptFunc func(question string) (string, error)

// Interactive returns a handler that prompts a human through prompt.
// Answers: y approves, n rejects, m approves with the plan unchanged
// (plan editing is not implemented; modify is approve-only for now).
func Interactive(prompt PromptFunc) Handler {
	return func(_ context.Context, req *Request) (Decision, error) {
		question := fmt.Sprintf("%s\nApprove this plan? [y/n/m]: ", req.Summary)

		answer, err := prompt(question)
		if err != nil {
			return Decision{}, fmt.Errorf("prompting for approval: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return Decision{Approved: true, Reason: "Approved by user"}, nil
		case "m", "modify":
			return Decision{Approved: true, Reason: "Approved with modifications"}, nil
		default:
			return Decision{Approved: false, Reason: DefaultRejectReason}, nil
		}
	}
}

// AutoApprove returns a handler that approves everything. For
// unattended runs and tests.
func AutoApprove() Handler {
	return func(_ context.Context, _ *Request) (Decision, error) {
		return Decision{Approved: true, Reason: "Auto-approved by policy"}, nil
	}
}

// AutoReject returns a handler that rejects everything with the given
// reason, or DefaultRejectReason if empty.
func AutoReject(reason string) Handler {
	if reason == "" {
		reason = DefaultRejectReason
	}
	return func(_ context.Context, _ *Request) (Decision, error) {
		return Decision{Approved: false, Reason: reason}, nil
	}
}
