package merge

import "errors"

var (
	// ErrAmbiguousMatch is returned when a target row is matched by more
	// than one source row and the clause list cannot make the duplicates
	// harmless. Detected after classification, before any file is written.
	ErrAmbiguousMatch = errors.New("ambiguous merge: target row matched by multiple source rows")

	// ErrSchemaDrift is returned when the target schema changed between
	// analysis and the start of the operation. Detected before any scan.
	ErrSchemaDrift = errors.New("target schema changed since merge was analyzed")

	// ErrResolution is returned when a guard or output expression cannot
	// be resolved against the joined row schema. Detected at plan build,
	// before execution.
	ErrResolution = errors.New("merge expression resolution failed")

	// ErrInvalidClause is returned when a clause list carries an action
	// kind its category does not allow.
	ErrInvalidClause = errors.New("invalid merge clause")

	// ErrNoClauses is returned when the merge has nothing to do.
	ErrNoClauses = errors.New("merge requires at least one clause")
)
