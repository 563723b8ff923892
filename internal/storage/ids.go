package storage

import (
	"github.com/google/uuid"

	"github.com/timecapsule/timecapsule/internal/core"
)

func newNudgeID() core.ItemID {
	return core.ItemID("nudge_" + uuid.New().String())
}
