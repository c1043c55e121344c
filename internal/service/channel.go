package service

import (
	"context"

	"github.com/jobjar-oss/jobjar/messaging-bridge/internal/channel"
)

// Channel is the slice of the realtime client the sync layer depends on.
// *channel.Client satisfies it; tests substitute a fake.
type Channel interface {
	Connect(ctx context.Context) error
	Disconnect()
	Connected() bool
	Emit(event string, payload interface{}) error
	On(event string, h channel.Handler) func()
	Once(event string, h channel.Handler) func()
}
