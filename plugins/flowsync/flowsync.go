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

// Package flowsync mirrors the derived rules and tunnel groups from the store
// onto devices through the device layer's RuleProgrammer.
//
// Changes for a device that cannot be reached are remembered and replayed
// (against the current content of the store) once the device is reported
// reachable again.
package flowsync

import (
	"sort"
	"sync"

	"github.com/gogo/protobuf/proto"
	"github.com/ligato/cn-infra/infra"
	"github.com/pkg/errors"

	"github.com/contiv/ifmgr/plugins/ifmgr/api"
	"github.com/contiv/ifmgr/plugins/ifmgr/model"
	kvstore "github.com/contiv/ifmgr/plugins/kvstore/api"
)

// FlowSync plugin watches the store and programs devices.
type FlowSync struct {
	Deps

	sync.Mutex
	unreachable map[string]bool
	pending     map[string]map[string]proto.Message // device -> key -> last value known on the device
	cancels     []func()
}

// Deps lists dependencies of the FlowSync plugin.
type Deps struct {
	infra.PluginDeps

	Store      kvstore.Store
	Programmer api.RuleProgrammer
}

// Init registers the store watchers.
func (fs *FlowSync) Init() error {
	if fs.Store == nil || fs.Programmer == nil {
		return errors.New("flowsync requires store and rule programmer")
	}
	fs.unreachable = make(map[string]bool)
	fs.pending = make(map[string]map[string]proto.Message)
	for _, prefix := range []string{model.RuleKeyPrefix(), model.TunnelGroupKeyPrefix()} {
		fs.cancels = append(fs.cancels, fs.Store.Watch(prefix, fs.onChange))
	}
	return nil
}

// AfterInit programs everything that is already in the store.
func (fs *FlowSync) AfterInit() error {
	fs.Resync()
	return nil
}

// Close cancels the store watchers.
func (fs *FlowSync) Close() error {
	fs.Lock()
	defer fs.Unlock()
	for _, cancel := range fs.cancels {
		cancel()
	}
	fs.cancels = nil
	return nil
}

// Resync installs all rules and groups found in the store.
func (fs *FlowSync) Resync() {
	fs.Lock()
	defer fs.Unlock()

	values := fs.Store.List(model.TunnelGroupKeyPrefix())
	for key, value := range fs.Store.List(model.RuleKeyPrefix()) {
		values[key] = value
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fs.program(key, nil, values[key])
	}
	fs.Log.Infof("Resync programmed %d rules and groups", len(keys))
}

// OnDeviceStatus updates the reachability of a device. Once the device
// is reachable, changes missed meanwhile are replayed.
func (fs *FlowSync) OnDeviceStatus(device string, reachable bool) {
	fs.Lock()
	defer fs.Unlock()

	if !reachable {
		fs.unreachable[device] = true
		return
	}
	delete(fs.unreachable, device)
	missed := fs.pending[device]
	delete(fs.pending, device)

	keys := make([]string, 0, len(missed))
	for key := range missed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	// deletes first, the store may reuse table entries for other keys
	for _, key := range keys {
		if _, _, found := fs.Store.Get(key); !found {
			fs.program(key, missed[key], nil)
		}
	}
	for _, key := range keys {
		if value, _, found := fs.Store.Get(key); found {
			fs.program(key, missed[key], value)
		}
	}
	fs.Log.Infof("Device %s reachable, replayed %d changes", device, len(keys))
}

// onChange is called by the store after each committed change.
func (fs *FlowSync) onChange(ev kvstore.ChangeEvent) {
	fs.Lock()
	defer fs.Unlock()
	fs.program(ev.Key, ev.Prev, ev.Value)
}

// program changes the device content from <prev> to <value> (nil = absent).
func (fs *FlowSync) program(key string, prev, value proto.Message) {
	prevDevice, nextDevice := deviceOf(prev), deviceOf(value)

	// remove the previous value unless it is replaced in place
	if prev != nil && (value == nil || prevDevice != nextDevice || !sameEntry(prev, value)) {
		if err := fs.apply(prevDevice, key, prev, prev, false); err != nil {
			fs.Log.Warnf("Failed to remove %s from device %s: %v", key, prevDevice, err)
		}
	}
	if value != nil {
		known := prev
		if prevDevice != nextDevice {
			known = nil
		}
		if err := fs.apply(nextDevice, key, known, value, true); err != nil {
			fs.Log.Warnf("Failed to install %s on device %s: %v", key, nextDevice, err)
		}
	}
}

// apply installs or removes the value. For an unreachable device the change
// is only recorded; <known> is the value the device is left with.
func (fs *FlowSync) apply(device string, key string, known, value proto.Message, install bool) error {
	if fs.unreachable[device] {
		fs.remember(device, key, known)
		return nil
	}
	var err error
	switch v := value.(type) {
	case *model.Rule:
		if install {
			err = fs.Programmer.InstallRule(device, v)
		} else {
			err = fs.Programmer.RemoveRule(device, v)
		}
	case *model.TunnelGroup:
		if install {
			err = fs.Programmer.InstallGroup(device, v)
		} else {
			err = fs.Programmer.RemoveGroup(device, v)
		}
	default:
		return errors.Errorf("unexpected value type %T", value)
	}
	if errors.Cause(err) == api.ErrDeviceUnreachable {
		fs.Log.Warnf("Device %s is unreachable, deferring changes", device)
		fs.unreachable[device] = true
		fs.remember(device, key, known)
		return nil
	}
	return err
}

// remember records the key for a replay keeping the first value known
// on the device.
func (fs *FlowSync) remember(device, key string, known proto.Message) {
	if fs.pending[device] == nil {
		fs.pending[device] = make(map[string]proto.Message)
	}
	if _, recorded := fs.pending[device][key]; !recorded {
		fs.pending[device][key] = known
	}
}

func deviceOf(value proto.Message) string {
	switch v := value.(type) {
	case *model.Rule:
		return v.Device
	case *model.TunnelGroup:
		return v.Device
	}
	return ""
}

// sameEntry returns true if both values occupy the same device table entry.
func sameEntry(a, b proto.Message) bool {
	switch va := a.(type) {
	case *model.Rule:
		vb, isRule := b.(*model.Rule)
		return isRule && va.TableId == vb.TableId && va.Priority == vb.Priority &&
			proto.Equal(va.GetMatch(), vb.GetMatch())
	case *model.TunnelGroup:
		vb, isGroup := b.(*model.TunnelGroup)
		return isGroup && va.GroupId == vb.GroupId
	}
	return false
}
