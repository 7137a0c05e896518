// Command gpio-event-mon prints every edge seen on one GPIO line, with the
// kernel timestamp in nanoseconds. It runs until interrupted.
//
//	gpio-event-mon /dev/gpiochip0 17
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/dht22-sensor/internal/errcode"
	"github.com/sweeney/dht22-sensor/internal/gpio"
	"github.com/sweeney/dht22-sensor/internal/logging"
)

// pollTimeout bounds each wait so that signals are noticed promptly.
const pollTimeout = 200 * time.Millisecond

type edgeSource interface {
	ConfigureInput(edge gpio.Edge) error
	WaitForEdge(timeout time.Duration) (gpio.EdgeEvent, error)
	Close() error
}

type opener func(chip string, pin int) (edgeSource, error)

func main() {
	log := logging.New(int(logrus.InfoLevel), os.Stderr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	open := func(chip string, pin int) (edgeSource, error) {
		if info, err := gpio.DescribeLine(chip, pin); err == nil {
			log.WithFields(logrus.Fields{
				"name":     info.Name,
				"consumer": info.Consumer,
				"used":     info.Used,
			}).Info("line info")
		}
		return gpio.Open(chip, pin, "gpio-event-mon", gpio.WithLogger(logging.For(log, "gpio")))
	}
	os.Exit(run(os.Args, os.Stdout, os.Stderr, open, sigCh))
}

func run(args []string, stdout, stderr io.Writer, open opener, stop <-chan os.Signal) int {
	if len(args) != 3 {
		fmt.Fprintf(stderr, "usage: %s /dev/gpiochipX GPIOPIN\n", args[0])
		return 2
	}
	chip := args[1]
	pin, err := strconv.Atoi(args[2])
	if err != nil || pin < 0 {
		fmt.Fprintf(stderr, "invalid pin %q\n", args[2])
		return 2
	}

	line, err := open(chip, pin)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}
	defer line.Close()
	if err := line.ConfigureInput(gpio.BothEdges); err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Listening on chip %s pin %d\n", chip, pin)
	for {
		select {
		case <-stop:
			return 0
		default:
		}

		ev, err := line.WaitForEdge(pollTimeout)
		if errors.Is(err, errcode.Timeout) {
			continue
		}
		if err != nil {
			fmt.Fprintf(stderr, "fatal: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, formatEvent(ev))
	}
}

func formatEvent(ev gpio.EdgeEvent) string {
	kind := "unknown     "
	switch ev.Edge {
	case gpio.RisingEdge:
		kind = "rising  edge"
	case gpio.FallingEdge:
		kind = "falling edge"
	}
	return fmt.Sprintf("GPIO event %s @ %d", kind, ev.Time.Nanoseconds())
}
