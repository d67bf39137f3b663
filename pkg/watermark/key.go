package watermark

import (
	"strings"
)

// DefaultNamespace prefixes every watermark key.
const DefaultNamespace = "drata"

// Key identifies the watermark of one trigger instance.
type Key struct {
	// Namespace prefixes the key. Defaults to DefaultNamespace.
	Namespace string

	// WorkflowID is the workflow the trigger belongs to.
	WorkflowID string

	// NodeID is the trigger node within the workflow.
	NodeID string
}

// String generates a deterministic key string.
// Format: drata:trigger:<workflow>:<node>:last_poll_time
//
// Empty segments render as "default", and ":" inside a segment is replaced
// with "_" so keys of different instances cannot collide.
func (k Key) String() string {
	namespace := k.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return strings.Join([]string{
		segment(namespace),
		"trigger",
		segment(k.WorkflowID),
		segment(k.NodeID),
		"last_poll_time",
	}, ":")
}

func segment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "default"
	}
	return strings.ReplaceAll(s, ":", "_")
}
