package prom

import "github.com/prometheus/client_golang/prometheus"

// opts carries the naming shared by every collector of one adapter.
type opts struct {
	ns, sub string
	labels  prometheus.Labels
}

func (o opts) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: o.ns, Subsystem: o.sub, Name: name, Help: help, ConstLabels: o.labels}
}

func (o opts) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: o.ns, Subsystem: o.sub, Name: name, Help: help, ConstLabels: o.labels}
}

func registerer(reg prometheus.Registerer) prometheus.Registerer {
	if reg == nil {
		return prometheus.DefaultRegisterer
	}
	return reg
}
