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

package ifmgr

import (
	"github.com/ligato/cn-infra/infra"
	"github.com/ligato/cn-infra/rpc/rest"
	"github.com/pkg/errors"

	controller "github.com/contiv/ifmgr/plugins/controller/api"
	"github.com/contiv/ifmgr/plugins/idalloc"
	"github.com/contiv/ifmgr/plugins/ifmgr/api"
	"github.com/contiv/ifmgr/plugins/ifmgr/model"
	"github.com/contiv/ifmgr/plugins/ifmgr/reconciler"
	kvstore "github.com/contiv/ifmgr/plugins/kvstore/api"
	"github.com/contiv/ifmgr/plugins/statscollector"
)

// Manager plugin implements api.InterfaceManager on top of the reconciler.
type Manager struct {
	Deps

	config     *Config
	reconciler *reconciler.Reconciler
}

// Deps lists dependencies of the Manager plugin.
type Deps struct {
	infra.PluginDeps

	Store        kvstore.Store
	Queue        controller.ResourceQueue
	Ports        api.PortLookup
	IDAlloc      idalloc.API
	Stats        statscollector.API // optional
	HTTPHandlers rest.HTTPHandlers  // optional

	// DeviceListeners are notified about device reachability before
	// the interfaces of the device are reconciled.
	DeviceListeners []api.DeviceStatusListener
}

// Config extends the reconciler configuration with plugin options.
type Config struct {
	reconciler.Config

	// ResyncOnStart repairs the derived values in the store once all
	// plugins are initialized.
	ResyncOnStart bool `json:"resync-on-start"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{Config: *reconciler.DefaultConfig()}
}

// Init creates the reconciler and restores its state from the store.
func (m *Manager) Init() error {
	if m.Store == nil || m.Queue == nil || m.Ports == nil || m.IDAlloc == nil {
		return errors.New("ifmgr requires store, resource queue, port lookup and ID allocator")
	}
	if m.config == nil {
		m.config = DefaultConfig()
		if err := m.loadConfig(m.config); err != nil {
			m.Log.Error(err)
		}
	}
	if err := m.config.Validate(); err != nil {
		return controller.NewConfigError(err)
	}
	m.Log.Infof("Interface manager configuration: %+v", *m.config)

	if err := m.IDAlloc.InitPool(reconciler.PortTagPool, m.config.PortTagPool.PoolRange()); err != nil {
		return errors.Wrap(err, "failed to init port tag pool")
	}
	if err := m.IDAlloc.InitPool(reconciler.GroupIDPool, m.config.GroupIDPool.PoolRange()); err != nil {
		return errors.Wrap(err, "failed to init group ID pool")
	}

	m.reconciler = reconciler.NewReconciler(reconciler.Deps{
		Log:     m.Log.NewLogger("reconciler"),
		Config:  &m.config.Config,
		Queue:   m.Queue,
		Store:   m.Store,
		Ports:   m.Ports,
		IDAlloc: m.IDAlloc,
		Stats:   m.Stats,
	})
	if err := m.reconciler.Restore(); err != nil {
		return err
	}
	m.registerHandlers()
	return nil
}

// AfterInit starts the resync if configured.
func (m *Manager) AfterInit() error {
	if !m.config.ResyncOnStart {
		return nil
	}
	completion := m.reconciler.Resync()
	go func() {
		if err := completion.Wait(); err != nil {
			m.Log.Errorf("Resync failed: %v", err)
			return
		}
		m.Log.Info("Resync done")
	}()
	return nil
}

// Close stops the reconciler.
func (m *Manager) Close() error {
	if m.reconciler == nil {
		return nil
	}
	return m.reconciler.Close()
}

// BindService binds the service to the interface in the given direction.
func (m *Manager) BindService(ifName string, dir model.Direction, svc *model.BoundService) *controller.Completion {
	return m.reconciler.BindService(ifName, dir, svc)
}

// UnbindService removes the service with the given priority from the interface.
func (m *Manager) UnbindService(ifName string, dir model.Direction, priority uint32) *controller.Completion {
	return m.reconciler.UnbindService(ifName, dir, priority)
}

// OnInterfaceAdded announces a new interface.
func (m *Manager) OnInterfaceAdded(record *model.Interface) *controller.Completion {
	return m.reconciler.OnInterfaceAdded(record)
}

// OnInterfaceUpdated announces a change of an interface.
func (m *Manager) OnInterfaceUpdated(record *model.Interface) *controller.Completion {
	return m.reconciler.OnInterfaceUpdated(record)
}

// OnInterfaceRemoved announces removal of an interface.
func (m *Manager) OnInterfaceRemoved(record *model.Interface) *controller.Completion {
	return m.reconciler.OnInterfaceRemoved(record)
}

// OnDeviceStatus announces change of device reachability.
func (m *Manager) OnDeviceStatus(device string, reachable bool) *controller.Completion {
	for _, listener := range m.DeviceListeners {
		listener.OnDeviceStatus(device, reachable)
	}
	return m.reconciler.OnDeviceStatus(device, reachable)
}

// Resync re-renders all interfaces.
func (m *Manager) Resync() *controller.Completion {
	return m.reconciler.Resync()
}

// Dump returns the state of all known interfaces.
func (m *Manager) Dump() []*reconciler.InterfaceDump {
	return m.reconciler.Dump()
}

// loadConfig loads configuration file.
func (m *Manager) loadConfig(config *Config) error {
	if m.Cfg == nil {
		return nil
	}
	found, err := m.Cfg.LoadValue(config)
	if err != nil {
		return err
	} else if !found {
		m.Log.Debugf("%v config not found", m.PluginName)
		return nil
	}
	m.Log.Debugf("%v config found: %+v", m.PluginName, config)
	return nil
}
