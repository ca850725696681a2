package activity

import (
	"strings"
	"time"
)

const (
	VerbTokenResolved    = "token.resolved"
	VerbTokenSkipped     = "token.skipped"
	VerbTokenUnsupported = "token.unsupported"
	VerbFileLoaded       = "file.loaded"
)

// TokenEventInput describes a token occurrence touched during a pass.
type TokenEventInput struct {
	RunID      string
	Channel    string
	File       string
	Path       string
	Kind       string
	Token      string
	Pass       int
	Value      any
	Reason     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// FileEventInput describes a document read by the pipeline.
type FileEventInput struct {
	RunID      string
	Channel    string
	File       string
	Depth      int
	Cached     bool
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildTokenResolvedEvent records a substitution.
func BuildTokenResolvedEvent(input TokenEventInput) Event {
	return buildTokenEvent(VerbTokenResolved, input)
}

// BuildTokenSkippedEvent records a token deferred to a later pass.
func BuildTokenSkippedEvent(input TokenEventInput) Event {
	return buildTokenEvent(VerbTokenSkipped, input)
}

// BuildTokenUnsupportedEvent records a token left in place because its kind
// cannot be resolved.
func BuildTokenUnsupportedEvent(input TokenEventInput) Event {
	return buildTokenEvent(VerbTokenUnsupported, input)
}

// BuildFileLoadedEvent records a document read from disk or cache.
func BuildFileLoadedEvent(input FileEventInput) Event {
	metadata := cloneMap(input.Metadata)
	metadata = ensureMetadata(metadata)
	metadata["depth"] = input.Depth
	if input.Cached {
		metadata["cached"] = true
	}

	return Event{
		Verb:       VerbFileLoaded,
		RunID:      strings.TrimSpace(input.RunID),
		ObjectType: "file",
		ObjectID:   strings.TrimSpace(input.File),
		Channel:    strings.TrimSpace(input.Channel),
		File:       strings.TrimSpace(input.File),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func buildTokenEvent(verb string, input TokenEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Reason != "" {
		metadata = ensureMetadata(metadata)
		metadata["reason"] = input.Reason
	}

	objectID := strings.TrimSpace(input.Path)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Token)
	}
	if objectID == "" {
		objectID = "token"
	}

	return Event{
		Verb:       verb,
		RunID:      strings.TrimSpace(input.RunID),
		ObjectType: "token",
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		File:       strings.TrimSpace(input.File),
		Kind:       strings.TrimSpace(input.Kind),
		Token:      input.Token,
		Pass:       input.Pass,
		Value:      input.Value,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
