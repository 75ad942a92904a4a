// Package worker runs the background parts of the service.
package worker

import (
	"github.com/spec-kit/jobcard-service/internal/service"
)

// StartEventListeners subscribes the listener set to its dispatcher.
func StartEventListeners(listeners *service.EventListeners) {
	if listeners == nil {
		return
	}
	listeners.RegisterHandlers()
}
