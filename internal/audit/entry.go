package audit

import (
	"fmt"
	"time"
)

// Status classifies the observed request outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ResourceType classifies what kind of resource an action touched.
type ResourceType string

const (
	ResourceTask       ResourceType = "task"
	ResourceUser       ResourceType = "user"
	ResourceRole       ResourceType = "role"
	ResourcePermission ResourceType = "permission"
	ResourceAudit      ResourceType = "audit"
	ResourceReport     ResourceType = "report"
	ResourceSystem     ResourceType = "system"
	ResourceOther      ResourceType = "other"
)

// Entry is one immutable record of an observed request outcome. UserName is a
// denormalized snapshot so the trail survives user deletion; UserID is empty
// for anonymous attempts.
type Entry struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id,omitempty"`
	UserName     string            `json:"user_name"`
	Action       string            `json:"action"`
	Resource     string            `json:"resource"`
	ResourceType ResourceType      `json:"resource_type"`
	Status       Status            `json:"status"`
	Changes      map[string]string `json:"changes,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// DiffChanges renders the fields that differ between a pre-update snapshot
// and the submitted values as "old → new" pairs. Only keys present in the
// snapshot are considered.
func DiffChanges(snapshot, submitted map[string]any) map[string]string {
	if len(snapshot) == 0 || len(submitted) == 0 {
		return nil
	}
	changes := make(map[string]string)
	for key, newVal := range submitted {
		oldVal, ok := snapshot[key]
		if !ok {
			continue
		}
		oldStr := stringify(oldVal)
		newStr := stringify(newVal)
		if oldStr != newStr {
			changes[key] = oldStr + " → " + newStr
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
