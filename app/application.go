package app

import (
	"github.com/sweater-ventures/dispatch/config"
)

// Application wires the core together: the store, the bounded order queue,
// the event bus, and the metrics registry. The assignment engine is
// started separately via StartEngine.
type Application struct {
	Config  config.AppConfig
	Store   *Store
	Queue   *OrderQueue
	Events  *EventBus
	Metrics *Metrics

	stopEngine func()
}

func NewApp(cfg *config.AppConfig) *Application {
	metrics := NewMetrics()
	return &Application{
		Config:     *cfg,
		Store:      NewStore(metrics),
		Queue:      NewOrderQueue(cfg.OrderQueueSize, metrics),
		Events:     NewEventBus(cfg.EventBufferSize),
		Metrics:    metrics,
		stopEngine: func() {},
	}
}

func (d *Application) SetStopEngine(fn func()) {
	d.stopEngine = fn
}

// Close stops the engine, which drains the queue and closes the event bus.
func (d *Application) Close() {
	d.stopEngine()
}
