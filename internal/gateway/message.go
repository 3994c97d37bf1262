package gateway

import (
	"context"

	"github.com/mobdhq/mobd/internal/timer"
)

// Dispatcher forwards domain actions to whatever mutates timer state. The
// gateway never mutates records itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, timerID string, action timer.Action) error
}

// wsMessage is the envelope for everything pushed to an observer socket.
type wsMessage struct {
	Type  string           `json:"type"`
	Token string           `json:"token,omitempty"`
	State timer.PublicView `json:"state"`
}

const (
	messageTypeToken = "token"
	messageTypeTick  = "tick"
)
