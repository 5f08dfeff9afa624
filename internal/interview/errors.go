package interview

import "errors"

// ErrNoActiveSession is returned by EndSession when no session is active.
var ErrNoActiveSession = errors.New("no active session")

// ErrSessionActive is returned by StartSession while another session runs.
var ErrSessionActive = errors.New("a session is already active")
