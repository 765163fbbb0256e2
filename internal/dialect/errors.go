package dialect

import "fmt"

// ParseError is a malformed directive argument, scoped to one artifact.
type ParseError struct {
	Artifact string
	Line     int
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dialect: %s:%d: %s", e.Artifact, e.Line, e.Reason)
}

// UnresolvedFileIDError is a location stamp naming a file id that no
// earlier file directive declared.
type UnresolvedFileIDError struct {
	Artifact string
	Line     int
	ID       uint64
}

func (e *UnresolvedFileIDError) Error() string {
	return fmt.Sprintf("dialect: %s:%d: file id %d used before declaration", e.Artifact, e.Line, e.ID)
}
