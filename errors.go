package gdtf

import (
	"fmt"

	xgxerror "github.com/xgx-io/xgx-error"
)

// FatalError aborts a parse entirely: no partial Model is returned alongside
// it. Only these conditions construct one: a corrupt or unreadable ZIP, a
// missing description.xml member, malformed XML, a missing GDTF root
// element, or a GDTF root element without a FixtureType child.
type FatalError struct {
	err xgxerror.Error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err.Unwrap()
}

// Code classifies the fatal error (see xgxerror.Code): bad_request for a
// malformed container, not_found for a missing description.xml member or
// FixtureType element, invalid for malformed XML content, unprocessable for
// a root element other than GDTF.
func (e *FatalError) Code() xgxerror.Code {
	return e.err.CodeVal()
}

func fatalBadArchive(reason string, cause error) *FatalError {
	return &FatalError{
		err: xgxerror.BadRequest(reason).With("cause", cause).WithStack(),
	}
}

func fatalMissing(what, where string) *FatalError {
	return &FatalError{
		err: xgxerror.NotFound(what, where).WithStack(),
	}
}

func fatalInvalidXML(cause error) *FatalError {
	return &FatalError{
		err: xgxerror.Invalid("description.xml", fmt.Sprintf("%v", cause)).
			With("cause", cause).
			WithStack(),
	}
}

func fatalMissingRoot(tag string) *FatalError {
	return &FatalError{
		err: xgxerror.Unprocessable("root element", fmt.Sprintf("expected GDTF, found %q", tag)).
			WithStack(),
	}
}
