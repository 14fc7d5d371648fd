package feed

import (
	"fmt"
)

// FetchError reports a failed retrieval of a source document. It is terminal
// for the load that produced it.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MalformedFeedError reports a payload that cannot produce a Feed.
type MalformedFeedError struct {
	Reason   string
	Warnings Warnings
}

func (e *MalformedFeedError) Error() string {
	if len(e.Warnings) > 0 {
		return fmt.Sprintf("malformed feed: %s (%d warnings)", e.Reason, len(e.Warnings))
	}
	return "malformed feed: " + e.Reason
}

type WarningKind string

const (
	WarningItemValidation    WarningKind = "item_validation"
	WarningUnknownCategory   WarningKind = "unknown_category"
	WarningDuplicateCategory WarningKind = "duplicate_category"
	WarningInvalidCategory   WarningKind = "invalid_category"
)

// Warning describes an input element dropped during normalization.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Index  int         `json:"index"`
	Title  string      `json:"title,omitempty"`
	Reason string      `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s at index %d: %s", w.Kind, w.Index, w.Reason)
}

type Warnings []Warning

func (ws Warnings) Count(kind WarningKind) int {
	n := 0
	for _, w := range ws {
		if w.Kind == kind {
			n++
		}
	}
	return n
}
