package contexts

import "fmt"

// ExpectedShape is the entry shape every declaration line must follow.
const ExpectedShape = "description, path"

// MalformedInputError is returned when a context declaration does not have the
// expected shape. It is raised before any source is fetched.
type MalformedInputError struct {
	// Source names the declaration file, or "entries" for in-memory input.
	Source string
	// Line is the 1-based line (delimited files) or entry position; zero when not applicable.
	Line     int
	Expected string
	Got      string
	Reason   string
}

func (e *MalformedInputError) Error() string {
	loc := e.Source
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Source, e.Line)
	}
	if e.Got != "" {
		return fmt.Sprintf("malformed context declaration at %s: %s: expected %q, got %q", loc, e.Reason, e.Expected, e.Got)
	}
	return fmt.Sprintf("malformed context declaration at %s: %s: expected %q", loc, e.Reason, e.Expected)
}
