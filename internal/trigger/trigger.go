// Package trigger decides whether a workflow event should run the
// integration tests.
package trigger

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/go-github/v68/github"
)

// Decision is the outcome for one event.
type Decision struct {
	Run    bool
	Reason string
}

// Decide parses a webhook payload. Push events run only in the canonical
// repository; pull requests and every other event run.
func Decide(eventName string, payload []byte, canonical string) (Decision, error) {
	if eventName != "push" {
		return Decision{Run: true, Reason: fmt.Sprintf("%s events always run", eventName)}, nil
	}

	event, err := github.ParseWebHook(eventName, payload)
	if err != nil {
		return Decision{}, fmt.Errorf("parse %s payload: %w", eventName, err)
	}
	push, ok := event.(*github.PushEvent)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected payload type %T for push", event)
	}

	repo := push.GetRepo().GetFullName()
	if strings.EqualFold(repo, canonical) {
		return Decision{Run: true, Reason: fmt.Sprintf("push to %s", repo)}, nil
	}
	return Decision{Reason: fmt.Sprintf("push to %s, not %s", repo, canonical)}, nil
}

// FromEnv reads GITHUB_EVENT_NAME and GITHUB_EVENT_PATH. Outside of a
// workflow (no event name) the tests run.
func FromEnv(canonical string) (Decision, error) {
	name := os.Getenv("GITHUB_EVENT_NAME")
	if name == "" {
		return Decision{Run: true, Reason: "not running in a workflow"}, nil
	}
	path := os.Getenv("GITHUB_EVENT_PATH")
	if path == "" {
		return Decision{}, fmt.Errorf("GITHUB_EVENT_PATH is not set for event %s", name)
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return Decision{}, fmt.Errorf("read event payload: %w", err)
	}
	return Decide(name, payload, canonical)
}
