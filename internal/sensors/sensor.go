// Package sensors contains the physical sensor drivers feeding the
// estimation core: the load-cell mass sampler and the optical drop
// detector.
package sensors

import (
	"time"

	"github.com/Owen1B/fusionflow/internal/types"
)

// Sensor is an interface that provides standard methods for the various
// sensor backends
type Sensor interface {
	StartSensor() error
	SensorName() string
}

// MassSink receives raw load-cell samples. Implemented by the core.
type MassSink interface {
	SubmitMassSample(types.MassSample)
}

// EdgeSink receives drop-edge events. Implemented by the core.
type EdgeSink interface {
	OnDropEdge(time.Time)
}
