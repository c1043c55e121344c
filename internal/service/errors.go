package service

import "fmt"

// ChannelJoinError is logged, never surfaced; membership for the room is
// retried on the next full directory reload.
type ChannelJoinError struct {
	RoomName string
	Err      error
}

func (e *ChannelJoinError) Error() string {
	return fmt.Sprintf("failed to join room %s: %s", e.RoomName, e.Err.Error())
}

func (e *ChannelJoinError) Unwrap() error {
	return e.Err
}
