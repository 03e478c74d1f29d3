package docsplit

import (
	"fmt"
)

// Kind classifies a split failure.
type Kind string

const (
	KindStructureNotFound   Kind = "structure_not_found"
	KindPageNumberNotFound  Kind = "page_number_not_found"
	KindStructureParse      Kind = "structure_parse"
	KindSectionNotLocatable Kind = "section_not_locatable"
	KindEmptyRange          Kind = "empty_range"
	KindUnreadable          Kind = "unreadable_document"
)

// Category groups kinds into the outcomes a client can act on differently.
func (k Kind) Category() string {
	switch k {
	case KindStructureNotFound, KindSectionNotLocatable:
		return "structure_unrecognized"
	case KindStructureParse:
		return "parsing_service_failure"
	case KindUnreadable:
		return "document_unreadable"
	default:
		return "page_math_failure"
	}
}

// Stage names the pipeline step that failed.
type Stage string

const (
	StageOpen           Stage = "open"
	StageOffsetEstimate Stage = "offset_estimate"
	StageTOCExtract     Stage = "toc_extract"
	StageStructureParse Stage = "structure_parse"
	StageOffsetCorrect  Stage = "offset_correct"
	StageSplit          Stage = "split"
)

// Error is the single typed failure returned by the split pipeline.
type Error struct {
	Kind  Kind
	Stage Stage
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg = string(e.Stage) + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of stage or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrStructureNotFound   = &Error{Kind: KindStructureNotFound}
	ErrPageNumberNotFound  = &Error{Kind: KindPageNumberNotFound}
	ErrStructureParse      = &Error{Kind: KindStructureParse}
	ErrSectionNotLocatable = &Error{Kind: KindSectionNotLocatable}
	ErrEmptyRange          = &Error{Kind: KindEmptyRange}
	ErrUnreadable          = &Error{Kind: KindUnreadable}
)

func newError(kind Kind, stage Stage, err error, format string, args ...any) *Error {
	return &Error{
		Kind:  kind,
		Stage: stage,
		Msg:   fmt.Sprintf(format, args...),
		Err:   err,
	}
}

// Warning is a non-fatal condition surfaced alongside a successful split.
type Warning struct {
	Kind    string `json:"kind"`
	Section int    `json:"section"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

const (
	WarnEmptyRange        = "empty_range"
	WarnRangeOverlap      = "range_overlap"
	WarnFilenameCollision = "filename_collision"
)
