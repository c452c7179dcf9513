// Package service defines the lifecycle contract shared by all
// long-running services of the monitor.
package service

import (
	"context"
	"sync"
)

// Service is a long-running component started once at boot. Start must
// not block; the service runs until serviceStopCtx is cancelled and
// releases serviceStopWG when fully shut down.
type Service interface {
	Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error
}
