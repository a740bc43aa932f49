// Package build holds bridge identity reported by the health operation.
package build

import (
	"time"

	"github.com/google/uuid"
)

// Version is the bridge build identifier, overridable at link time:
//
//	go build -ldflags "-X github.com/rcliao/memu-bridge/internal/build.Version=..."
var Version = "dev"

var (
	// InstanceID distinguishes daemon restarts from one another.
	InstanceID = uuid.NewString()

	// StartedAt is when this process came up.
	StartedAt = time.Now().UTC()
)
