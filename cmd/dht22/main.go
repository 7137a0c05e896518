// Command dht22 reads a DHT22 sensor on a GPIO character device, prints each
// reading and optionally publishes it to MQTT.
package main

import (
	"flag"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/dht22-sensor/internal/dht"
	"github.com/sweeney/dht22-sensor/internal/gpio"
	"github.com/sweeney/dht22-sensor/internal/logging"
	"github.com/sweeney/dht22-sensor/internal/logic"
	"github.com/sweeney/dht22-sensor/internal/mqtt"
	"github.com/sweeney/dht22-sensor/internal/status"
)

type options struct {
	chip       string
	pin        int
	line       string
	label      string
	count      int
	interval   time.Duration
	attempts   int
	ackTimeout time.Duration
	keepGoing  bool
	broker     string
	heartbeat  time.Duration
}

func main() {
	var o options
	flag.StringVar(&o.chip, "chip", gpio.DefaultChip, "GPIO chip device")
	flag.IntVar(&o.pin, "pin", 2, "Line offset of the sensor data pin")
	flag.StringVar(&o.line, "line", "", "Find the data pin by line name instead of -chip/-pin")
	flag.StringVar(&o.label, "label", gpio.DefaultLabel, "Consumer label for the line")
	flag.IntVar(&o.count, "count", 0, "Number of readings to take (0 to run until interrupted)")
	flag.DurationVar(&o.interval, "interval", logic.DefaultMinInterval, "Minimum time between readings")
	flag.IntVar(&o.attempts, "attempts", dht.DefaultMaxAttempts, "Exchanges per reading before giving up")
	flag.DurationVar(&o.ackTimeout, "ack-timeout", dht.DefaultAckTimeout, "Time to wait for the sensor to respond")
	flag.BoolVar(&o.keepGoing, "keep-going", false, "Log failed readings and continue instead of exiting")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (empty to disable)")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	loglevel := flag.Int("loglevel", int(logrus.InfoLevel), "The loglevel to use. Valid values are from 0 to 6. Higher values output more information")

	flag.Parse()

	log := logging.New(*loglevel, os.Stderr)
	if err := run(o, log); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(o options, log *logrus.Entry) error {
	if o.line != "" {
		chip, pin, err := gpio.FindLine(o.line)
		if err != nil {
			return fmt.Errorf("find line: %w", err)
		}
		o.chip, o.pin = chip, pin
	}

	cfg := dht.Config{
		MaxAttempts: o.attempts,
		AckTimeout:  o.ackTimeout,
		MinInterval: o.interval,
		Label:       o.label,
		Logger:      logging.For(log, "dht"),
	}
	if o.keepGoing {
		cfg.ErrorBackoff = logic.DefaultErrorBackoff
		cfg.MaxInterval = logic.DefaultMaxInterval
	}
	dev, err := dht.Open(o.chip, o.pin, cfg)
	if err != nil {
		return fmt.Errorf("open sensor: %w", err)
	}
	defer dev.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Chip:        o.chip,
		Pin:         o.pin,
		IntervalMs:  o.interval.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		MaxAttempts: o.attempts,
		Broker:      o.broker,
	})

	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if o.broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Config{
			Broker:       o.broker,
			Pin:          o.pin,
			Logger:       logging.For(log, "mqtt"),
			OnConnect:    func() { tracker.SetMQTTConnected(true) },
			OnDisconnect: func(error) { tracker.SetMQTTConnected(false) },
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p

		// Publish startup event with full status snapshot
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.WithError(err).Warn("failed to publish startup event")
		}
	}

	log.WithFields(logrus.Fields{
		"sensor":   dev.String(),
		"interval": o.interval,
		"attempts": o.attempts,
		"broker":   o.broker,
	}).Info("started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	loop := loopConfig{count: o.count, keepGoing: o.keepGoing, heartbeat: o.heartbeat}
	return runLoop(dev.Readings(), os.Stdout, publisher, mqttStatus, tracker, log, loop, time.Now, sigCh)
}

type loopConfig struct {
	count     int // stop after this many readings; 0 runs until signalled
	keepGoing bool
	heartbeat time.Duration
}

// runLoop prints every reading to out and publishes it. A failed poll ends
// the loop with an error unless keepGoing is set. Signals are checked between
// polls, since a poll cannot be interrupted.
func runLoop(readings iter.Seq2[dht.Reading, error], out io.Writer, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, log *logrus.Entry, cfg loopConfig, now func() time.Time, sig <-chan os.Signal) error {
	tally := logic.NewTally(now())
	taken := 0

	shutdown := func(reason string) {
		event := mqtt.SystemEvent{
			Timestamp: now(),
			Event:     "SHUTDOWN",
			Reason:    reason,
			Retained:  true,
		}
		if tracker != nil {
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", reason)
		}
		if err := publisher.PublishSystem(event); err != nil {
			log.WithError(err).Warn("failed to publish shutdown event")
		}
	}

	for r, err := range readings {
		t := now()
		code := tally.Record(t, err)
		if tracker != nil {
			tracker.Record(t, r, err, tally)
		}

		if err != nil {
			if !cfg.keepGoing {
				shutdown(string(code))
				return fmt.Errorf("poll sensor: %w", err)
			}
			log.WithError(err).WithField("consecutive", tally.ConsecutiveFailures()).Warn("poll failed")
		} else {
			fmt.Fprintln(out, r)
			log.WithFields(logrus.Fields{"humidity": r.Humidity, "temperature": r.Temperature}).Debug("reading")
			if err := publisher.Publish(mqtt.ReadingEvent{Timestamp: t, Reading: r}); err != nil {
				// Don't stop on publish failure
				log.WithError(err).Warn("publish error")
			}
			taken++
		}

		if hb := tally.CheckHeartbeat(t, cfg.heartbeat); hb != nil {
			log.WithFields(logrus.Fields{
				"uptime":   hb.Uptime,
				"readings": hb.Counts.Readings,
				"failures": hb.Counts.Failures(),
			}).Info("heartbeat")

			hbEvent := mqtt.SystemEvent{
				Timestamp: hb.Timestamp,
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.WithError(err).Warn("heartbeat publish error")
			}
		}

		if cfg.count > 0 && taken >= cfg.count {
			shutdown("COMPLETE")
			return nil
		}

		select {
		case s := <-sig:
			log.WithField("signal", s).Info("shutting down")
			shutdown(signalName(s))
			return nil
		default:
		}
	}
	return nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
