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

package statscollector

import (
	"errors"
	"testing"

	"github.com/ligato/cn-infra/logging"
	"github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/contiv/ifmgr/mock/servicelabel"
)

// plugin logger shared by the tests of the package
var testLog = logging.ForPlugin("statscollector-test")

// mockPrometheus registers collectors into a single local registry.
type mockPrometheus struct {
	statsPath        string
	registry         *prometheus.Registry
	newRegistryError error
	registerError    error
}

func (mp *mockPrometheus) NewRegistry(path string, opts promhttp.HandlerOpts) error {
	mp.statsPath = path
	mp.registry = prometheus.NewRegistry()
	return mp.newRegistryError
}

func (mp *mockPrometheus) Register(registryPath string, collector prometheus.Collector) error {
	if mp.registerError != nil {
		return mp.registerError
	}
	return mp.registry.Register(collector)
}

func (mp *mockPrometheus) Unregister(registryPath string, collector prometheus.Collector) bool {
	return mp.registry.Unregister(collector)
}

func (mp *mockPrometheus) RegisterGaugeFunc(registryPath string, namespace string, subsystem string,
	name string, help string, labels prometheus.Labels, valueFunc func() float64) error {
	return nil
}

// metricValue returns value of the metric with the given label value.
func (mp *mockPrometheus) metricValue(name string, labelValue string) (float64, bool) {
	families, err := mp.registry.Gather()
	gomega.Expect(err).To(gomega.BeNil())
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelValue != "" && !hasLabelValue(metric, labelValue) {
				continue
			}
			if family.GetType() == dto.MetricType_COUNTER {
				return metric.GetCounter().GetValue(), true
			}
			return metric.GetGauge().GetValue(), true
		}
	}
	return 0, false
}

func hasLabelValue(metric *dto.Metric, value string) bool {
	for _, label := range metric.GetLabel() {
		if label.GetValue() == value {
			return true
		}
	}
	return false
}

func newTestPlugin(prom *mockPrometheus) *Plugin {
	return NewPlugin(UseDeps(func(deps *Deps) {
		deps.Log = testLog
		deps.ServiceLabel = servicelabel.NewMockServiceLabel("node1")
		deps.Prometheus = prom
	}))
}

func TestInitErrors(t *testing.T) {
	gomega.RegisterTestingT(t)

	prom := &mockPrometheus{newRegistryError: errors.New("registry error")}
	gomega.Expect(newTestPlugin(prom).Init()).To(gomega.MatchError("registry error"))

	prom = &mockPrometheus{registerError: errors.New("register error")}
	gomega.Expect(newTestPlugin(prom).Init()).To(gomega.MatchError("register error"))
}

func TestBatchStatistics(t *testing.T) {
	gomega.RegisterTestingT(t)

	prom := &mockPrometheus{}
	p := newTestPlugin(prom)
	gomega.Expect(p.Init()).To(gomega.Succeed())
	gomega.Expect(prom.statsPath).To(gomega.Equal("/stats"))
	gomega.Expect(p.counterVecs).To(gomega.HaveLen(4))
	gomega.Expect(p.gaugeVecs).To(gomega.HaveLen(3))

	p.BatchCommitted("records", 3, 1)
	p.BatchCommitted("records", 2, 2)
	p.ConflictRetried("records")
	p.BatchFailed("counters", FailureConflict)
	p.QueueDepth("counters", 7)
	p.BoundServices(4)

	value, found := prom.metricValue(batchesCommittedMetric, "records")
	gomega.Expect(found).To(gomega.BeTrue())
	gomega.Expect(value).To(gomega.Equal(2.0))
	value, _ = prom.metricValue(batchOperationsMetric, "records")
	gomega.Expect(value).To(gomega.Equal(5.0))
	value, _ = prom.metricValue(conflictRetriesMetric, "records")
	gomega.Expect(value).To(gomega.Equal(1.0))
	value, _ = prom.metricValue(batchesFailedMetric, FailureConflict)
	gomega.Expect(value).To(gomega.Equal(1.0))
	value, _ = prom.metricValue(queueDepthMetric, "counters")
	gomega.Expect(value).To(gomega.Equal(7.0))
	value, _ = prom.metricValue(boundServicesMetric, "")
	gomega.Expect(value).To(gomega.Equal(4.0))
}

func TestInterfaceStates(t *testing.T) {
	gomega.RegisterTestingT(t)

	prom := &mockPrometheus{}
	p := newTestPlugin(prom)
	gomega.Expect(p.Init()).To(gomega.Succeed())

	p.InterfaceStates(map[string]int{"BOUND": 2, "PENDING": 1})
	value, _ := prom.metricValue(interfacesMetric, "PENDING")
	gomega.Expect(value).To(gomega.Equal(1.0))

	// state no longer reported is reset
	p.InterfaceStates(map[string]int{"BOUND": 3})
	value, _ = prom.metricValue(interfacesMetric, "PENDING")
	gomega.Expect(value).To(gomega.Equal(0.0))
	value, _ = prom.metricValue(interfacesMetric, "BOUND")
	gomega.Expect(value).To(gomega.Equal(3.0))
}

func TestWithoutPrometheus(t *testing.T) {
	gomega.RegisterTestingT(t)

	p := NewPlugin(UseDeps(func(deps *Deps) {
		deps.Log = testLog
		deps.Prometheus = nil
	}))
	gomega.Expect(p.Init()).To(gomega.Succeed())
	p.BatchCommitted("records", 1, 1)
	p.InterfaceStates(map[string]int{"BOUND": 1})
}
