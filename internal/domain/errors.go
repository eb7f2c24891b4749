package domain

import "errors"

// Domain errors
var (
	ErrNotSignedIn        = errors.New("not signed in")
	ErrSignInFailed       = errors.New("sign in failed")
	ErrSaveNotFound       = errors.New("saved game does not exist")
	ErrWrongPreviousSave  = errors.New("wrong previous save")
	ErrSnapshotConflict   = errors.New("snapshot conflict")
	ErrNoSnapshotConflict = errors.New("no snapshot conflict to resolve")
	ErrGooglePlay         = errors.New("google play services error")
	ErrUnknown            = errors.New("unknown error")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnknownAction      = errors.New("invalid action")
)

// InvalidActionMessage is the bare failure for actions outside the catalogue
const InvalidActionMessage = "Invalid action"

// Store and host errors
var (
	ErrInternalError       = errors.New("internal server error")
	ErrScoreNotFound       = errors.New("no score recorded for this player")
	ErrAchievementNotFound = errors.New("achievement not found")
)

// ErrorFor maps a non-OK status code to its domain error. It returns nil for
// StatusOK.
func ErrorFor(code StatusCode) error {
	switch code {
	case StatusOK:
		return nil
	case StatusNotSignIn:
		return ErrNotSignedIn
	case StatusSignInFailed:
		return ErrSignInFailed
	case StatusLoadGameErrorNotExist:
		return ErrSaveNotFound
	case StatusSaveGameErrorWrongPrevious:
		return ErrWrongPreviousSave
	case StatusErrorSnapshotConflict:
		return ErrSnapshotConflict
	case StatusErrorHaveNotSnapshotConflict:
		return ErrNoSnapshotConflict
	case StatusGooglePlayError:
		return ErrGooglePlay
	default:
		return ErrUnknown
	}
}

// IsSessionError checks if an error is an authentication or session error
func IsSessionError(err error) bool {
	return errors.Is(err, ErrNotSignedIn) || errors.Is(err, ErrSignInFailed)
}

// IsConflictError checks if an error concerns snapshot conflicts
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSnapshotConflict) || errors.Is(err, ErrNoSnapshotConflict)
}
