// Package dripsensor receives drop-edge events from the optical drop
// detector bridge over TCP.
//
// The bridge writes one line per detected edge ("D\n", optionally followed
// by the bridge's own millisecond counter, which is ignored). The edge is
// timestamped at receipt; debounce happens in the core's ring.
package dripsensor

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Owen1B/fusionflow/internal/log"
	"github.com/Owen1B/fusionflow/internal/sensors"
	"github.com/Owen1B/fusionflow/internal/types"
	"go.uber.org/zap"
)

// Station holds our drop detector connection along with its config
type Station struct {
	ctx     context.Context
	wg      *sync.WaitGroup
	config  types.DeviceConfig
	netConn net.Conn
	sink    sensors.EdgeSink
	logger  *zap.SugaredLogger
}

// NewStation creates a drop detector station from the device configuration.
func NewStation(ctx context.Context, wg *sync.WaitGroup, cfg types.DeviceConfig, sink sensors.EdgeSink, logger *zap.SugaredLogger) sensors.Sensor {
	if cfg.Hostname == "" || cfg.Port == "" {
		logger.Fatalf("drip sensor station [%s] must define a hostname and port", cfg.Name)
	}
	return &Station{
		ctx:    ctx,
		wg:     wg,
		config: cfg,
		sink:   sink,
		logger: logger,
	}
}

func (s *Station) SensorName() string {
	return s.config.Name
}

// StartSensor connects to the detector bridge and launches the edge
// streaming goroutine.
func (s *Station) StartSensor() error {
	log.Infof("Starting drip sensor station [%v]...", s.config.Name)

	s.connect()

	s.wg.Add(1)
	go s.streamEdges()

	return nil
}

// connect dials the detector bridge, retrying with exponential backoff.
func (s *Station) connect() {
	addr := fmt.Sprintf("%v:%v", s.config.Hostname, s.config.Port)

	delay := time.Second
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
		if err == nil {
			log.Infof("Connected to drip sensor [%v] at %v", s.config.Name, addr)
			s.netConn = conn
			return
		}

		log.Errorf("could not connect to drip sensor %v at %v: %v; retrying in %v",
			s.config.Name, addr, err, delay)
		time.Sleep(delay)
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

func (s *Station) streamEdges() {
	defer s.wg.Done()

	if s.netConn == nil {
		return
	}
	scanner := bufio.NewScanner(s.netConn)

	for {
		select {
		case <-s.ctx.Done():
			log.Info("cancellation request received, closing drip sensor station")
			s.netConn.Close()
			return
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					log.Errorf("drip sensor %v read error: %v; reconnecting", s.config.Name, err)
				}
				s.netConn.Close()
				time.Sleep(2 * time.Second)
				s.connect()
				if s.netConn == nil {
					return
				}
				scanner = bufio.NewScanner(s.netConn)
				continue
			}

			// Every received line is one edge, regardless of payload.
			s.sink.OnDropEdge(time.Now())
		}
	}
}
