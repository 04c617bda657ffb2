package workflow

import (
	stderrors "errors"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeDuplicateName      = "WORKFLOW_DUPLICATE_NAME"
	ErrCodeDanglingEdge       = "WORKFLOW_DANGLING_EDGE"
	ErrCodeInvalidOutputIndex = "WORKFLOW_INVALID_OUTPUT_INDEX"
	ErrCodeNodeNotFound       = "WORKFLOW_NODE_NOT_FOUND"
	ErrCodeInvalidDocument    = "WORKFLOW_INVALID_DOCUMENT"
)

var (
	ErrDuplicateName = apperrors.New("workflow: duplicate node name", apperrors.CategoryConflict).
				WithTextCode(ErrCodeDuplicateName)
	ErrDanglingEdge = apperrors.New("workflow: edge endpoint is not a node of this graph", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeDanglingEdge)
	ErrInvalidOutputIndex = apperrors.New("workflow: output index must not be negative", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidOutputIndex)
	ErrNodeNotFound = apperrors.New("workflow: node not found", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeNodeNotFound)
	ErrInvalidDocument = apperrors.New("workflow: invalid document", apperrors.CategoryValidation).
				WithTextCode(ErrCodeInvalidDocument)
)

// newError clones a sentinel so callers can attach call-site metadata
// without mutating the shared value. The sentinel stays in the unwrap chain,
// so errors.Is(err, ErrDuplicateName) holds for the clone.
func newError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	err.Source = base
	if source != nil {
		err.Source = stderrors.Join(source, base)
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code of a workflow error, or "" for foreign errors.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsDuplicateName reports a name collision in strict mode.
func IsDuplicateName(err error) bool { return ErrorCode(err) == ErrCodeDuplicateName }

// IsDanglingEdge reports an edge to a node the builder does not know.
func IsDanglingEdge(err error) bool { return ErrorCode(err) == ErrCodeDanglingEdge }

// IsInvalidDocument reports a document or blueprint that failed to load.
func IsInvalidDocument(err error) bool { return ErrorCode(err) == ErrCodeInvalidDocument }
