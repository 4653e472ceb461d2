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

package main

import (
	"github.com/ligato/cn-infra/agent"
	"github.com/ligato/cn-infra/health/probe"
	"github.com/ligato/cn-infra/logging"
	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/ligato/cn-infra/rpc/rest"
	"github.com/ligato/cn-infra/servicelabel"
	"github.com/namsral/flag"

	"github.com/contiv/ifmgr/plugins/controller"
	"github.com/contiv/ifmgr/plugins/flowsync"
	"github.com/contiv/ifmgr/plugins/idalloc"
	"github.com/contiv/ifmgr/plugins/ifmgr"
	"github.com/contiv/ifmgr/plugins/ifmgr/api"
	"github.com/contiv/ifmgr/plugins/kvstore/memstore"
	"github.com/contiv/ifmgr/plugins/statscollector"
)

// MicroserviceLabel is the label of the interface manager agent.
const MicroserviceLabel = "ifmgr-agent"

var topologyFile string

func init() {
	flag.StringVar(&topologyFile, "topology", "",
		"YAML file with device ports, interfaces and service bindings announced at start")
}

// IfMgrAgent manages service bindings of switch interfaces.
type IfMgrAgent struct {
	ServiceLabel servicelabel.ReaderAPI
	HTTP         *rest.Plugin
	HealthProbe  *probe.Plugin
	Stats        *statscollector.Plugin
	IDAlloc      *idalloc.IDAllocator
	Controller   *controller.Controller
	FlowSync     *flowsync.FlowSync
	IfMgr        *ifmgr.Manager

	ports *staticPorts
	log   logging.Logger
}

func (a *IfMgrAgent) String() string {
	return MicroserviceLabel
}

// Init is called at startup phase. Method added in order to implement Plugin interface.
func (a *IfMgrAgent) Init() error {
	return nil
}

// AfterInit announces the interfaces and service bindings of the topology file.
func (a *IfMgrAgent) AfterInit() error {
	if topologyFile == "" {
		a.log.Info("No topology file given, waiting for REST requests")
		return nil
	}
	topo, err := loadTopology(topologyFile)
	if err != nil {
		return err
	}
	a.ports.Set(topo.Ports)
	go func() {
		if err := topo.announce(a.IfMgr, a.log); err != nil {
			a.log.Errorf("Failed to apply topology %s: %v", topologyFile, err)
			return
		}
		a.log.Infof("Topology %s applied", topologyFile)
	}()
	return nil
}

// Close is called at cleanup phase. Method added in order to implement Plugin interface.
func (a *IfMgrAgent) Close() error {
	return nil
}

func main() {
	servicelabel.DefaultPlugin.MicroserviceLabel = MicroserviceLabel

	log := logrus.NewLogger(MicroserviceLabel)
	store := memstore.NewStore(logrus.NewLogger("memstore"))
	ports := newStaticPorts()
	programmer := &loggingProgrammer{log: logrus.NewLogger("programmer")}

	idAlloc := idalloc.NewPlugin(idalloc.UseDeps(func(deps *idalloc.Deps) {
		deps.ServiceLabel = &servicelabel.DefaultPlugin
		deps.Store = store
	}))
	ctrl := controller.NewPlugin(controller.UseDeps(func(deps *controller.Deps) {
		deps.Store = store
	}))
	flowSync := flowsync.NewPlugin(flowsync.UseDeps(func(deps *flowsync.Deps) {
		deps.Store = store
		deps.Programmer = programmer
	}))
	ifMgr := ifmgr.NewPlugin(ifmgr.UseDeps(func(deps *ifmgr.Deps) {
		deps.Store = store
		deps.Queue = ctrl
		deps.Ports = ports
		deps.IDAlloc = idAlloc
		deps.DeviceListeners = []api.DeviceStatusListener{flowSync}
	}))

	ifMgrAgent := &IfMgrAgent{
		ServiceLabel: &servicelabel.DefaultPlugin,
		HTTP:         &rest.DefaultPlugin,
		HealthProbe:  &probe.DefaultPlugin,
		Stats:        &statscollector.DefaultPlugin,
		IDAlloc:      idAlloc,
		Controller:   ctrl,
		FlowSync:     flowSync,
		IfMgr:        ifMgr,
		ports:        ports,
		log:          log,
	}

	a := agent.NewAgent(agent.AllPlugins(ifMgrAgent))
	if err := a.Run(); err != nil {
		logrus.DefaultLogger().Fatal(err)
	}
}
