// Package metrics exports balancer state to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/charlie0129/tpbal/pkg/powerinfo"
)

// Recorder receives observations from the balancer.
type Recorder interface {
	ObserveSnapshot(s *powerinfo.Snapshot)
	ObserveDecision(d powerinfo.Decision)
	ObserveIOError(op string)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveSnapshot(*powerinfo.Snapshot) {}
func (Nop) ObserveDecision(powerinfo.Decision)  {}
func (Nop) ObserveIOError(string)               {}

var _ Recorder = &Prom{}

// Prom records balancer state in prometheus collectors.
type Prom struct {
	percentage *prometheus.GaugeVec
	capacity   *prometheus.GaugeVec
	idle       *prometheus.GaugeVec
	ac         prometheus.Gauge
	decisions  *prometheus.CounterVec
	ioErrors   *prometheus.CounterVec
}

// NewProm registers the balancer collectors on reg. If reg is nil the
// default registerer is used. Already registered collectors are reused.
func NewProm(reg prometheus.Registerer) (*Prom, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prom{
		percentage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tpbal_battery_percentage",
			Help: "Remaining capacity relative to last full capacity, NaN when unknown",
		}, []string{"battery"}),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tpbal_battery_capacity",
			Help: "Raw capacity figures reported by smapi, NaN when unknown",
		}, []string{"battery", "kind"}),
		idle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tpbal_battery_idle",
			Help: "1 if the battery reports idle",
		}, []string{"battery"}),
		ac: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tpbal_ac_connected",
			Help: "1 if AC is connected, 0 if not, NaN when unknown",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tpbal_decisions_total",
			Help: "Switch decisions by action and target",
		}, []string{"action", "target"}),
		ioErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tpbal_io_errors_total",
			Help: "Failed smapi attribute accesses",
		}, []string{"op"}),
	}

	var err error
	if p.percentage, err = register(reg, p.percentage); err != nil {
		return nil, err
	}
	if p.capacity, err = register(reg, p.capacity); err != nil {
		return nil, err
	}
	if p.idle, err = register(reg, p.idle); err != nil {
		return nil, err
	}
	if p.ac, err = register(reg, p.ac); err != nil {
		return nil, err
	}
	if p.decisions, err = register(reg, p.decisions); err != nil {
		return nil, err
	}
	if p.ioErrors, err = register(reg, p.ioErrors); err != nil {
		return nil, err
	}

	return p, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (p *Prom) ObserveSnapshot(s *powerinfo.Snapshot) {
	if s == nil {
		return
	}
	p.ac.Set(optBool(s.ACConnected))
	for _, id := range powerinfo.BatteryIDs {
		r := s.Battery(id)
		p.percentage.WithLabelValues(id.String()).Set(optFloat(r.Percentage))
		p.capacity.WithLabelValues(id.String(), "remaining").Set(optInt(r.RemainingCapacity))
		p.capacity.WithLabelValues(id.String(), "last_full").Set(optInt(r.LastFullCapacity))
		idle := 0.0
		if r.IsIdle() {
			idle = 1
		}
		p.idle.WithLabelValues(id.String()).Set(idle)
	}
}

func (p *Prom) ObserveDecision(d powerinfo.Decision) {
	target := ""
	if d.Command.Action == powerinfo.ActionForce {
		target = d.Command.Target.String()
	}
	p.decisions.WithLabelValues(d.Command.Action.String(), target).Inc()
}

func (p *Prom) ObserveIOError(op string) {
	p.ioErrors.WithLabelValues(op).Inc()
}
