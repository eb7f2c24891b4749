package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playgames-bridge/internal/domain"
)

// FailureKind discriminates the shapes a failure payload can take
type FailureKind int

const (
	// FailureMessage is a bare string, usually an exception message
	FailureMessage FailureKind = iota + 1
	// FailureResponse is a structured response with status and message
	FailureResponse
	// FailureGooglePlay is a response carrying a googlePlayError detail
	FailureGooglePlay
)

func (k FailureKind) String() string {
	switch k {
	case FailureMessage:
		return "message"
	case FailureResponse:
		return "response"
	case FailureGooglePlay:
		return "google_play"
	default:
		return "unknown"
	}
}

// ErrNotStructured is returned by Failure.Decode for bare string failures
var ErrNotStructured = errors.New("failure payload is not a structured response")

// Failure is what a failure callback receives. Status is StatusUnknownError
// for bare string failures.
type Failure struct {
	Kind       FailureKind
	Status     domain.StatusCode
	Message    string
	GooglePlay *domain.GooglePlayError
	Payload    json.RawMessage
}

// ParseFailure classifies a raw failure payload
func ParseFailure(payload json.RawMessage) Failure {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Failure{Kind: FailureMessage, Status: domain.StatusUnknownError, Message: "UNKNOWN ERROR"}
	}

	switch trimmed[0] {
	case '"':
		var msg string
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			msg = string(trimmed)
		}
		return Failure{Kind: FailureMessage, Status: domain.StatusUnknownError, Message: msg, Payload: trimmed}

	case '{':
		var envelope struct {
			Status          *domain.StatusCode      `json:"status"`
			Message         string                  `json:"message"`
			GooglePlayError *domain.GooglePlayError `json:"googlePlayError"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			break
		}
		f := Failure{
			Kind:    FailureResponse,
			Status:  domain.StatusUnknownError,
			Message: envelope.Message,
			Payload: trimmed,
		}
		if envelope.Status != nil {
			f.Status = *envelope.Status
		}
		if envelope.GooglePlayError != nil {
			f.Kind = FailureGooglePlay
			f.GooglePlay = envelope.GooglePlayError
		}
		return f
	}

	return Failure{Kind: FailureMessage, Status: domain.StatusUnknownError, Message: string(trimmed), Payload: trimmed}
}

// MessageFailure builds the payload of a bare string failure
func MessageFailure(msg string) json.RawMessage {
	data, _ := json.Marshal(msg)
	return data
}

// Error implements error
func (f Failure) Error() string {
	if f.Kind == FailureMessage {
		return f.Message
	}
	if f.GooglePlay != nil {
		return fmt.Sprintf("%s: %s (code %d: %s)", f.Status, f.Message, f.GooglePlay.ErrorCode, f.GooglePlay.ErrorString)
	}
	if f.Message == "" {
		return f.Status.String()
	}
	return fmt.Sprintf("%s: %s", f.Status, f.Message)
}

// Is lets errors.Is match a failure against the domain errors. A bare
// "Invalid action" failure also matches ErrUnknownAction.
func (f Failure) Is(target error) bool {
	if target == nil {
		return false
	}
	if target == domain.ErrUnknownAction {
		return f.Kind == FailureMessage && f.Message == domain.InvalidActionMessage
	}
	return target == domain.ErrorFor(f.Status)
}

// Response returns the base pair of the failure
func (f Failure) Response() domain.Response {
	return domain.NewResponse(f.Status, f.Message)
}

// Decode unmarshals a structured failure into v
func (f Failure) Decode(v interface{}) error {
	if f.Kind == FailureMessage {
		return ErrNotStructured
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("decoding failure payload: %w", err)
	}
	return nil
}

// AuthFailed returns the sign-in failure detail, if this is one
func (f Failure) AuthFailed() (domain.AuthFailedResponse, bool) {
	var resp domain.AuthFailedResponse
	if f.Status != domain.StatusSignInFailed || f.Decode(&resp) != nil {
		return resp, false
	}
	return resp, true
}

// Conflict returns the conflicting snapshots, if this is a conflict failure
func (f Failure) Conflict() (domain.SnapshotConflictResponse, bool) {
	var resp domain.SnapshotConflictResponse
	if f.Status != domain.StatusErrorSnapshotConflict || f.Decode(&resp) != nil {
		return resp, false
	}
	return resp, true
}

// CurrentSave returns the save that is currently stored when saveGame was
// rejected for a wrong previous save time.
func (f Failure) CurrentSave() (domain.LoadGameResult, bool) {
	var resp domain.LoadGameResult
	if f.Status != domain.StatusSaveGameErrorWrongPrevious || f.Decode(&resp) != nil {
		return resp, false
	}
	return resp, true
}
