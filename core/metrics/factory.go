package metrics

import (
	"errors"

	"github.com/kilianp07/evpolicy/core/factory"
)

var sinkRegistry = factory.NewRegistry[PeriodSink]()

// RegisterPeriodSink adds a sink factory identified by name.
func RegisterPeriodSink(name string, f factory.Factory[PeriodSink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkTypes lists the registered sink names.
func SinkTypes() []string { return sinkRegistry.Types() }

// NewPeriodSink creates a PeriodSink from the provided configuration.
func NewPeriodSink(cfgs []factory.ModuleConfig) (PeriodSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	if len(cfgs) == 1 {
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]PeriodSink, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			// Release the sinks built so far, e.g. connected MQTT clients.
			return nil, errors.Join(err, NewMultiSink(sinks[:i]...).Close())
		}
		sinks[i] = s
	}
	return NewMultiSink(sinks...), nil
}

func init() {
	_ = RegisterPeriodSink("nop", func(map[string]any) (PeriodSink, error) {
		return NopSink{}, nil
	})
}
