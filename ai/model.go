// Package ai wraps chat-completion and vision models behind a gateway that
// never fails: every operation degrades to a deterministic fallback.
package ai

import (
	"context"
	"strconv"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Model is the remote capability the gateway depends on.
type Model interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	DescribeImage(ctx context.Context, mimeType string, data []byte, prompt string) (string, error)
	SupportsVision() bool
	Name() string
}

var visionMarkers = []string{"gpt-4o", "gpt-4.1", "gpt-5", "vision", "claude-3", "claude-sonnet-4", "claude-opus-4", "gemini", "llava"}

// VisionCapable reports whether modelName can describe images. A non-empty
// override ("true", "false", "1", "0") wins over the name heuristic.
func VisionCapable(modelName, override string) bool {
	if override != "" {
		if v, err := strconv.ParseBool(override); err == nil {
			return v
		}
	}
	name := strings.ToLower(modelName)
	for _, m := range visionMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}
