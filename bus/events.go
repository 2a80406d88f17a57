package bus

// Action is the edge reported by the chord listener.
type Action string

const (
	Press   Action = "press"
	Release Action = "release"
)

// Shortcut is the payload of ShortcutTriggered.
type Shortcut struct {
	Profile string
	Action  Action
}

// RawTranscriptionResult carries a transcriber.RawResult, which lives next
// to the backend Result type it wraps. ConfigChanged carries the reloaded
// *config.Config.

// Session is the payload of RecordingStopped, AudioDiscarded and
// TranscriptionComplete.
type Session struct {
	ID string
}

// SessionDone is the payload of TranscriptionFinished and StreamingFinished.
// A profile ignores it when SessionID is not its current session.
type SessionDone struct {
	Profile   string
	SessionID string
}

// Status is the payload of ProfileStateChange. An empty Text means the
// profile went back to idle.
type Status struct {
	Profile string
	Text    string
}

// Failure is the payload of TranscriptionError and InitializationFailed.
type Failure struct {
	Profile string
	Err     error
}

// Output is the payload of TranscriptionOutput, emitted after
// post-processing for every result a profile accepted.
type Output struct {
	Profile        string
	SessionID      string
	Raw            string
	Processed      string
	Language       string
	IsUtteranceEnd bool
}
