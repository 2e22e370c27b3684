package session

import "errors"

// ErrRecordingActive is returned by Run when another recording is in progress.
var ErrRecordingActive = errors.New("recording already in progress")
