package testutil

import (
	"github.com/sweater-ventures/dispatch/app"
	"github.com/sweater-ventures/dispatch/config"
	"github.com/sweater-ventures/dispatch/geo"
)

// Berlin is the default test coordinate.
var Berlin = geo.Point{Lat: 52.52, Lng: 13.405}

// CourierOpt is a functional option for building test courier params.
type CourierOpt func(*app.CreateCourierParams)

// NewCourierParams returns create-courier input with sensible defaults.
func NewCourierParams(opts ...CourierOpt) app.CreateCourierParams {
	p := app.CreateCourierParams{
		Name:     "test-courier",
		Location: Berlin,
		Capacity: 5,
		Rating:   4.5,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// OrderOpt is a functional option for building test order params.
type OrderOpt func(*app.CreateOrderParams)

// NewOrderParams returns create-order input with sensible defaults.
func NewOrderParams(opts ...OrderOpt) app.CreateOrderParams {
	p := app.CreateOrderParams{
		Pickup:   geo.Point{Lat: 52.51, Lng: 13.39},
		Dropoff:  geo.Point{Lat: 52.54, Lng: 13.42},
		Priority: app.PriorityNormal,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// AppOpt is a functional option for building test Applications.
type AppOpt func(*config.AppConfig)

// NewTestApp creates an app.Application with small buffers suitable for
// tests. The engine is not started; call app.StartEngine when a test
// needs it.
func NewTestApp(opts ...AppOpt) *app.Application {
	cfg := config.AppConfig{
		HTTPPort:        3000,
		OrderQueueSize:  64,
		EventBufferSize: 64,
		MaxAttempts:     20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return app.NewApp(&cfg)
}
