// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package statscollector publishes batching and reconciliation statistics
// to Prometheus.
package statscollector

import (
	"sync"

	"github.com/ligato/cn-infra/infra"
	prometheusplugin "github.com/ligato/cn-infra/rpc/prometheus"
	"github.com/ligato/cn-infra/servicelabel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// path where the statistics are exposed
	prometheusStatsPath = "/stats"

	nodeLabel   = "node"
	classLabel  = "class"
	reasonLabel = "reason"
	stateLabel  = "state"

	batchesCommittedMetric = "batchesCommitted"
	batchesFailedMetric    = "batchesFailed"
	batchOperationsMetric  = "batchOperations"
	conflictRetriesMetric  = "conflictRetries"
	queueDepthMetric       = "queueDepth"
	interfacesMetric       = "interfaces"
	boundServicesMetric    = "boundServices"
)

// Plugin collects statistics of the resource queues and of the interface
// reconciler and publishes them to Prometheus.
type Plugin struct {
	Deps

	sync.Mutex
	counterVecs map[string]*prometheus.CounterVec
	gaugeVecs   map[string]*prometheus.GaugeVec
	knownStates map[string]struct{}
}

// Deps groups the dependencies of the Plugin.
type Deps struct {
	infra.PluginDeps

	ServiceLabel servicelabel.ReaderAPI

	// Prometheus plugin used to stream statistics
	Prometheus prometheusplugin.API
}

// nameAndHelp defines the type for Prometheus metric metadata
type nameAndHelp struct {
	name   string
	help   string
	labels []string
}

// Init creates the registry and all metric vectors.
func (p *Plugin) Init() error {
	p.counterVecs = make(map[string]*prometheus.CounterVec)
	p.gaugeVecs = make(map[string]*prometheus.GaugeVec)
	p.knownStates = make(map[string]struct{})

	if p.Prometheus == nil {
		p.Log.Warn("Prometheus plugin not available, statistics will not be exposed")
		return nil
	}
	err := p.Prometheus.NewRegistry(prometheusStatsPath,
		promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError, ErrorLog: p.Log})
	if err != nil {
		p.Log.Errorf("failed to create Prometheus registry for path '%s', error %s", prometheusStatsPath, err)
		return err
	}

	constLabels := prometheus.Labels{}
	if p.ServiceLabel != nil {
		constLabels[nodeLabel] = p.ServiceLabel.GetAgentLabel()
	}

	for _, nh := range []nameAndHelp{
		{batchesCommittedMetric, "Number of committed batches", []string{classLabel}},
		{batchesFailedMetric, "Number of batches that were not applied", []string{classLabel, reasonLabel}},
		{batchOperationsMetric, "Number of committed operations", []string{classLabel}},
		{conflictRetriesMetric, "Number of batch commits retried due to a conflict", []string{classLabel}},
	} {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        nh.name,
			Help:        nh.help,
			ConstLabels: constLabels,
		}, nh.labels)
		if err := p.Prometheus.Register(prometheusStatsPath, vec); err != nil {
			p.Log.Errorf("failed to register metric '%s', error %s", nh.name, err)
			return err
		}
		p.counterVecs[nh.name] = vec
	}

	for _, nh := range []nameAndHelp{
		{queueDepthMetric, "Number of operations waiting in the resource queue", []string{classLabel}},
		{interfacesMetric, "Number of interfaces in the given reconciler state", []string{stateLabel}},
		{boundServicesMetric, "Number of services bound to interfaces", nil},
	} {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        nh.name,
			Help:        nh.help,
			ConstLabels: constLabels,
		}, nh.labels)
		if err := p.Prometheus.Register(prometheusStatsPath, vec); err != nil {
			p.Log.Errorf("failed to register metric '%s', error %s", nh.name, err)
			return err
		}
		p.gaugeVecs[nh.name] = vec
	}
	return nil
}

// Close is NOOP.
func (p *Plugin) Close() error {
	return nil
}

// BatchCommitted records a successfully committed batch.
func (p *Plugin) BatchCommitted(class string, operations int, attempts int) {
	p.addCounter(batchesCommittedMetric, 1, class)
	p.addCounter(batchOperationsMetric, float64(operations), class)
	if attempts > 1 {
		p.Log.Debugf("Batch of %s committed after %d attempts", class, attempts)
	}
}

// BatchFailed records a batch that was not applied.
func (p *Plugin) BatchFailed(class string, reason string) {
	p.addCounter(batchesFailedMetric, 1, class, reason)
}

// ConflictRetried records one retry of a conflicting batch.
func (p *Plugin) ConflictRetried(class string) {
	p.addCounter(conflictRetriesMetric, 1, class)
}

// QueueDepth updates the number of operations waiting in a queue.
func (p *Plugin) QueueDepth(class string, depth int) {
	p.setGauge(queueDepthMetric, float64(depth), class)
}

// InterfaceStates updates the number of interfaces per reconciler state.
// States missing in <counts> that were reported before are reset to zero.
func (p *Plugin) InterfaceStates(counts map[string]int) {
	p.Lock()
	defer p.Unlock()
	for state := range p.knownStates {
		if _, reported := counts[state]; !reported {
			p.setGaugeLocked(interfacesMetric, 0, state)
		}
	}
	for state, count := range counts {
		p.knownStates[state] = struct{}{}
		p.setGaugeLocked(interfacesMetric, float64(count), state)
	}
}

// BoundServices updates the number of services bound to all interfaces.
func (p *Plugin) BoundServices(count int) {
	p.setGauge(boundServicesMetric, float64(count))
}

func (p *Plugin) addCounter(metric string, value float64, labels ...string) {
	p.Lock()
	defer p.Unlock()
	vec, exists := p.counterVecs[metric]
	if !exists {
		return
	}
	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		p.Log.Error(err)
		return
	}
	counter.Add(value)
}

func (p *Plugin) setGauge(metric string, value float64, labels ...string) {
	p.Lock()
	defer p.Unlock()
	p.setGaugeLocked(metric, value, labels...)
}

func (p *Plugin) setGaugeLocked(metric string, value float64, labels ...string) {
	vec, exists := p.gaugeVecs[metric]
	if !exists {
		return
	}
	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		p.Log.Error(err)
		return
	}
	gauge.Set(value)
}
