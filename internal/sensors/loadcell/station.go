// Package loadcell reads gross bag weight from an HX711 bridge.
//
// The bridge firmware streams one reading per line as an ASCII float in
// grams (e.g. "487.25\n"), either over a serial port or over TCP. Lines
// that fail to parse are skipped; the core substitutes its last filtered
// value for missing samples, so a dropped line is never fatal.
package loadcell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Owen1B/fusionflow/internal/log"
	"github.com/Owen1B/fusionflow/internal/sensors"
	"github.com/Owen1B/fusionflow/internal/types"
	serial "github.com/tarm/goserial"
	"go.uber.org/zap"
)

// Station holds our load cell connection along with its config
type Station struct {
	ctx    context.Context
	wg     *sync.WaitGroup
	config types.DeviceConfig
	rwc    io.ReadWriteCloser
	sink   sensors.MassSink
	logger *zap.SugaredLogger
}

// NewStation creates a load-cell station from the device configuration.
// Either a serial device or a hostname+port must be configured.
func NewStation(ctx context.Context, wg *sync.WaitGroup, cfg types.DeviceConfig, sink sensors.MassSink, logger *zap.SugaredLogger) sensors.Sensor {
	if cfg.SerialDevice == "" && (cfg.Hostname == "" || cfg.Port == "") {
		logger.Fatalf("load cell station [%s] must define a serial device or a hostname and port", cfg.Name)
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

// StartSensor opens the bridge connection and launches the sampling
// goroutine.
func (s *Station) StartSensor() error {
	log.Infof("Starting load cell station [%v]...", s.config.Name)

	s.connect()

	s.wg.Add(1)
	go s.streamReadings()

	return nil
}

// connect opens the serial port or dials the TCP bridge, retrying with
// backoff until it succeeds or the context is cancelled.
func (s *Station) connect() {
	delay := time.Second
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		rwc, err := s.open()
		if err == nil {
			log.Infof("Connected to load cell [%v]", s.config.Name)
			s.rwc = rwc
			return
		}

		log.Errorf("could not connect to load cell %v: %v; retrying in %v", s.config.Name, err, delay)
		time.Sleep(delay)
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

func (s *Station) open() (io.ReadWriteCloser, error) {
	if s.config.SerialDevice != "" {
		baud := s.config.Baud
		if baud == 0 {
			baud = 115200
		}
		return serial.OpenPort(&serial.Config{Name: s.config.SerialDevice, Baud: baud})
	}
	return net.DialTimeout("tcp", fmt.Sprintf("%v:%v", s.config.Hostname, s.config.Port), 10*time.Second)
}

func (s *Station) streamReadings() {
	defer s.wg.Done()

	if s.rwc == nil {
		return
	}
	scanner := bufio.NewScanner(s.rwc)

	for {
		select {
		case <-s.ctx.Done():
			log.Info("cancellation request received, closing load cell station")
			s.rwc.Close()
			return
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					log.Errorf("load cell %v read error: %v; reconnecting", s.config.Name, err)
				}
				s.rwc.Close()
				time.Sleep(2 * time.Second)
				s.connect()
				if s.rwc == nil {
					return
				}
				scanner = bufio.NewScanner(s.rwc)
				continue
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			grams, err := strconv.ParseFloat(line, 32)
			if err != nil {
				log.Debugf("load cell %v: unparseable line %q", s.config.Name, line)
				continue
			}

			s.sink.SubmitMassSample(types.MassSample{
				Grams:     float32(grams),
				Timestamp: time.Now(),
			})
		}
	}
}
