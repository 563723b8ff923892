// Package delivery defines the delivery channel capability and its
// built-in implementations (console, webhook, websocket).
package delivery

import (
	"context"
	"time"

	"github.com/timecapsule/timecapsule/internal/core"
)

// Payload is the channel-agnostic delivery envelope
type Payload struct {
	UserID      core.UserID   `json:"user_id"`
	Message     string        `json:"message"`
	Kind        core.ItemKind `json:"item_kind"`
	ItemID      core.ItemID   `json:"item_id"`
	DeliveredAt time.Time     `json:"delivered_at"`
}

// Channel is a pluggable delivery sink. The scheduler issues exactly one
// Deliver call per channel per due occurrence; a channel may retry
// internally but must report the final outcome rather than panic.
// Implementations must honor ctx so a slow sink cannot stall the sweep.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, p Payload) error
}
