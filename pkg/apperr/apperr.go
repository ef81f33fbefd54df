package apperr

import (
	"errors"
	"fmt"
)

const (
	MetaReason   = "reason"
	MetaStage    = "stage"
	MetaField    = "field"
	MetaAction   = "action"
	MetaSelector = "selector"
	MetaURL      = "url"
	MetaIndex    = "index"

	StagePreparation = "preparation"
	StageBrowser     = "browser"
	StagePerception  = "perception"
	StagePlanning    = "planning"
	StageSafety      = "safety"
	StageExecution   = "execution"
	StageSettle      = "settle"
	StageNavigation  = "navigation"
	StageInteraction = "interaction"

	CodeInternal        = "internal"
	CodeInvalidArgument = "invalid_argument"
	CodeBusy            = "busy"
	CodeBrowserNotReady = "browser_not_ready"
	CodeActionFailed    = "action_failed"

	// Plan and execution failures. All of them end the current run.
	CodeTransport      = "transport"
	CodeUpstream       = "upstream"
	CodeMalformedPlan  = "malformed_plan"
	CodeInvalidPlan    = "invalid_plan"
	CodeTargetNotFound = "target_not_found"
)

type Error struct {
	Op       string
	Code     string
	Err      error
	Metadata map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(op, code string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &Error{
		Op:       op,
		Code:     code,
		Err:      err,
		Metadata: metadata,
	}
}

func WrapErrorWithReason(op, code, reason string) error {
	return Wrap(op, code, errors.New(reason), map[string]any{
		MetaReason: reason,
	})
}

func InvalidReqError(op, field string, err error) error {
	return Wrap(op, CodeInvalidArgument, err, map[string]any{
		MetaField:  field,
		MetaReason: "invalid_request",
	})
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}

		if e.Code == code {
			return true
		}

		err = e.Err
	}

	return false
}

// CodeOf returns the innermost code in err's chain, or "" when there is none.
func CodeOf(err error) string {
	code := ""

	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}

		code = e.Code
		err = e.Err
	}

	return code
}
