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

// Package api defines the interfaces between the interface manager and its
// collaborators: the device/port layer consulted for port numbers, the rule
// programmer mirroring derived rules onto devices, and the asynchronous API
// exposed to callers.
package api

import (
	"github.com/pkg/errors"

	controller "github.com/contiv/ifmgr/plugins/controller/api"
	"github.com/contiv/ifmgr/plugins/ifmgr/model"
)

var (
	// ErrPortUnknown is returned by PortLookup when the interface is not
	// (yet) active on any device.
	ErrPortUnknown = errors.New("device port is not known")

	// ErrDeviceUnreachable is returned by RuleProgrammer when the device
	// cannot be reached.
	ErrDeviceUnreachable = errors.New("device is unreachable")
)

// PortInfo describes the device port backing an interface.
type PortInfo struct {
	Device     string
	PortNo     uint32
	OperStatus model.Interface_OperStatus
}

// PortLookup is implemented by the device/port layer.
type PortLookup interface {
	// LookupPort returns the current device port of the interface.
	// Returns ErrPortUnknown if the interface is not active on any device.
	LookupPort(ifName string) (PortInfo, error)
}

// RuleProgrammer installs rules and groups into device tables.
type RuleProgrammer interface {
	// InstallRule adds or replaces the rule (identified by table, priority
	// and match) on the device.
	InstallRule(device string, rule *model.Rule) error

	// RemoveRule removes the rule from the device.
	RemoveRule(device string, rule *model.Rule) error

	// InstallGroup adds or replaces the selection group on the device.
	InstallGroup(device string, group *model.TunnelGroup) error

	// RemoveGroup removes the selection group from the device.
	RemoveGroup(device string, group *model.TunnelGroup) error
}

// DeviceStatusListener is notified about changes of device reachability.
type DeviceStatusListener interface {
	OnDeviceStatus(device string, reachable bool)
}

// InterfaceManager is the API exposed to callers. Every method is asynchronous
// and returns a completion resolved once the resulting changes are committed
// into the store (or have failed).
//
// Completion errors:
//   - controller.ConfigError: request rejected, nothing was changed,
//   - controller.DeferredError: intent recorded, rules will be derived once
//     the interface is bound to a device port,
//   - controller.RetriesExhaustedError: commit kept conflicting, the request
//     may be repeated,
//   - controller.FatalError: the store failed.
type InterfaceManager interface {
	// BindService binds the service to the interface in the given direction.
	// A service already bound under the same name is replaced.
	BindService(ifName string, dir model.Direction, svc *model.BoundService) *controller.Completion

	// UnbindService removes the service with the given priority. Unbinding
	// a service that is not bound is a no-op.
	UnbindService(ifName string, dir model.Direction, priority uint32) *controller.Completion

	// OnInterfaceAdded announces a new interface.
	OnInterfaceAdded(record *model.Interface) *controller.Completion

	// OnInterfaceUpdated announces a change of an interface.
	OnInterfaceUpdated(record *model.Interface) *controller.Completion

	// OnInterfaceRemoved announces removal of an interface.
	OnInterfaceRemoved(record *model.Interface) *controller.Completion

	// OnDeviceStatus announces change of device reachability.
	OnDeviceStatus(device string, reachable bool) *controller.Completion

	// Resync re-renders all interfaces and repairs derived state that
	// diverged in the store.
	Resync() *controller.Completion
}
