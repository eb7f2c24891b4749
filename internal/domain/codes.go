package domain

import "fmt"

// ServiceName is the fixed bridge target every call is addressed to.
const ServiceName = "PlayGamesServices"

// StatusCode is the numeric status carried by every response.
type StatusCode int

// Canonical status codes. These follow the native plugin's numbering.
const (
	StatusOK                           StatusCode = -1
	StatusNotSignIn                    StatusCode = 0
	StatusSignInFailed                 StatusCode = 1
	StatusLoadGameErrorNotExist        StatusCode = 11
	StatusSaveGameErrorWrongPrevious   StatusCode = 20
	StatusErrorSnapshotConflict        StatusCode = 30
	StatusErrorHaveNotSnapshotConflict StatusCode = 31
	StatusGooglePlayError              StatusCode = 254
	StatusUnknownError                 StatusCode = 255
)

// String returns the symbolic name of the status code
func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "OK"
	case StatusNotSignIn:
		return "NOT_SIGN_IN"
	case StatusSignInFailed:
		return "SIGN_IN_FAILED"
	case StatusLoadGameErrorNotExist:
		return "LOAD_GAME_ERROR_NOT_EXIST"
	case StatusSaveGameErrorWrongPrevious:
		return "SAVE_GAME_ERROR_WRONG_PREVIOUS_SAVE"
	case StatusErrorSnapshotConflict:
		return "ERROR_SNAPSHOT_CONFLICT"
	case StatusErrorHaveNotSnapshotConflict:
		return "ERROR_HAVE_NOT_SNAPSHOT_CONFLICT"
	case StatusGooglePlayError:
		return "GOOGLE_PLAY_ERROR"
	case StatusUnknownError:
		return "UNKNOWN_ERROR"
	default:
		return fmt.Sprintf("STATUS(%d)", int(c))
	}
}

// OK reports whether the code is the success status
func (c StatusCode) OK() bool {
	return c == StatusOK
}

// Legacy status codes from the old script-side table. They collide with the
// canonical numbering (1 means SIGN_IN_FAILED canonically but
// LOAD_GAME_ERROR_NOT_EXIST here) and must only be read through FromLegacy.
//
// Deprecated: use the Status* constants.
const (
	LegacyLoadGameErrorFailed         = 0
	LegacyLoadGameErrorNotExist       = 1
	LegacyLoadGameErrorNotSigned      = 2
	LegacyErrorSnapshotConflict       = 3
	LegacySaveGameErrorWrongPreviouse = 4
)

// FromLegacy translates a code from the legacy table into the canonical one.
// The second return value is false for codes the legacy table never defined.
func FromLegacy(code int) (StatusCode, bool) {
	switch code {
	case LegacyLoadGameErrorFailed:
		return StatusUnknownError, true
	case LegacyLoadGameErrorNotExist:
		return StatusLoadGameErrorNotExist, true
	case LegacyLoadGameErrorNotSigned:
		return StatusNotSignIn, true
	case LegacyErrorSnapshotConflict:
		return StatusErrorSnapshotConflict, true
	case LegacySaveGameErrorWrongPreviouse:
		return StatusSaveGameErrorWrongPrevious, true
	default:
		return StatusUnknownError, false
	}
}

// ResolutionPolicy tells the save system how to settle a snapshot conflict
// without asking the player.
type ResolutionPolicy int

const (
	ResolutionPolicyManual               ResolutionPolicy = -1
	ResolutionPolicyLongestPlaytime      ResolutionPolicy = 1
	ResolutionPolicyLastKnownGood        ResolutionPolicy = 2
	ResolutionPolicyMostRecentlyModified ResolutionPolicy = 3
	ResolutionPolicyHighestProgress      ResolutionPolicy = 4
)

// Valid reports whether p is one of the known policies
func (p ResolutionPolicy) Valid() bool {
	switch p {
	case ResolutionPolicyManual,
		ResolutionPolicyLongestPlaytime,
		ResolutionPolicyLastKnownGood,
		ResolutionPolicyMostRecentlyModified,
		ResolutionPolicyHighestProgress:
		return true
	}
	return false
}

// Policy returns a pointer to p, for use in optional input fields.
func (p ResolutionPolicy) Policy() *ResolutionPolicy {
	return &p
}
