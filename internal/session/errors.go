package session

import "errors"

var (
	ErrDeviceAccess  = errors.New("capture device unavailable")
	ErrUpload        = errors.New("upload failed")
	ErrResponseShape = errors.New("response carries no audio data")
	ErrPlayback      = errors.New("playback failed")
	ErrNoReply       = errors.New("no reply audio")
	ErrBusy          = errors.New("session is busy")
)
