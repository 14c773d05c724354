package door

import (
	"context"
	"time"
)

// Monitor periodically samples the controller state and feeds it to a
// sink. Event-driven observers catch transitions; the monitor gives
// slow consumers (health topics, dashboards) a steady heartbeat even
// when nothing changes.
type Monitor struct {
	controller *Controller
	interval   time.Duration
	sink       func(Status)
	logger     Logger
}

// NewMonitor creates a monitor polling at the given interval.
func NewMonitor(controller *Controller, interval time.Duration, sink func(Status), logger Logger) *Monitor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Monitor{
		controller: controller,
		interval:   interval,
		sink:       sink,
		logger:     logger,
	}
}

// Run polls until the context is cancelled. Blocking; run in a
// goroutine.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Debug("door monitor started", "interval", m.interval.String())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("door monitor stopped")
			return
		case <-ticker.C:
			m.sink(m.controller.Status())
		}
	}
}
