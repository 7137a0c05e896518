package dht

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

var _ physic.SenseEnv = (*Device)(nil)

// Sense implements physic.SenseEnv. Pressure is not measured.
func (d *Device) Sense(env *physic.Env) error {
	d.mu.Lock()
	running := d.stop != nil
	d.mu.Unlock()
	if running {
		return errors.New("dht: Sense called while SenseContinuous is running")
	}
	r, err := d.Poll()
	if err != nil {
		return err
	}
	*env = r.Env()
	return nil
}

// SenseContinuous implements physic.SenseEnv. Failed polls are logged and
// skipped. Calling it again restarts sensing at the new interval.
func (d *Device) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("dht: invalid interval %v", interval)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halt()

	c := make(chan physic.Env)
	d.stop = make(chan struct{})
	d.wg.Add(1)
	go d.senseContinuous(interval, c, d.stop)
	return c, nil
}

func (d *Device) senseContinuous(interval time.Duration, c chan<- physic.Env, stop <-chan struct{}) {
	defer d.wg.Done()
	defer close(c)
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		r, err := d.Poll()
		if err != nil {
			d.log.WithError(err).Warn("continuous read failed")
		} else {
			select {
			case c <- r.Env():
			case <-stop:
				return
			}
		}
		select {
		case <-stop:
			return
		case <-t.C:
		}
	}
}

// Precision implements physic.SenseEnv.
func (d *Device) Precision(env *physic.Env) {
	env.Temperature = 100 * physic.MilliCelsius
	env.Pressure = 0
	env.Humidity = physic.PercentRH / 10
}

// Halt stops continuous sensing, waiting for an in-flight read to finish.
func (d *Device) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halt()
	return nil
}

func (d *Device) halt() {
	if d.stop == nil {
		return
	}
	close(d.stop)
	d.wg.Wait()
	d.stop = nil
}

func (d *Device) String() string {
	return d.name
}
