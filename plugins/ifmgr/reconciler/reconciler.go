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

// Package reconciler implements the per-interface state machine that turns
// interface records and bound services into derived rules in the store.
//
// Every interface goes through the states ABSENT, PENDING (declared, port not
// known yet), BOUND (port known, port tag assigned, rules rendered) and
// TOMBSTONED (device unreachable, writes suppressed). Requests for the same
// interface are serialized by a keyed job queue; the derived rules are written
// through the Records resource queue of the controller and the per-interface
// state is reverted if the batch with the changes fails.
package reconciler

import (
	"context"
	"sort"
	"sync"

	"github.com/gogo/protobuf/proto"
	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"

	"github.com/contiv/ifmgr/pkg/keyedqueue"
	controller "github.com/contiv/ifmgr/plugins/controller/api"
	"github.com/contiv/ifmgr/plugins/idalloc"
	"github.com/contiv/ifmgr/plugins/ifmgr/api"
	"github.com/contiv/ifmgr/plugins/ifmgr/chain"
	"github.com/contiv/ifmgr/plugins/ifmgr/model"
	"github.com/contiv/ifmgr/plugins/ifmgr/tag"
	kvstore "github.com/contiv/ifmgr/plugins/kvstore/api"
	"github.com/contiv/ifmgr/plugins/statscollector"
)

// Reconciler implements api.InterfaceManager.
type Reconciler struct {
	Deps

	runner  *keyedqueue.Queue // jobs keyed by interface name
	control *keyedqueue.Queue // device status and resync jobs

	sync.Mutex
	entries     map[string]*entry
	unreachable map[string]bool // device name -> unreachable
}

// Deps lists dependencies of the Reconciler.
type Deps struct {
	Log     logging.Logger
	Config  *Config
	Queue   controller.ResourceQueue
	Store   kvstore.Store
	Ports   api.PortLookup
	IDAlloc idalloc.API
	Stats   statscollector.API // optional
}

// InterfaceDump describes the reconciler state of one interface.
type InterfaceDump struct {
	State    *model.InterfaceState   `json:"state"`
	Bindings []*model.ServiceBinding `json:"bindings,omitempty"`
	Counters map[string]uint64       `json:"counters,omitempty"`
}

// computeFunc changes the entry and returns operations to write.
// Returned DeferredError does not prevent the operations from being committed.
type computeFunc func(e *entry) ([]controller.Operation, error)

// maxAllocationRounds limits how many times a change is computed again
// after allocating identifiers of the interface.
const maxAllocationRounds = 2

// identifiers allocated for an interface.
type identifiers struct {
	portTag uint32
	groupID uint32
}

// idsRequired is returned when binding of the interface needs identifiers
// that are not allocated yet.
type idsRequired struct {
	group bool
}

func (e *idsRequired) Error() string {
	return "identifiers of the interface are not allocated"
}

// view is the part of the entry state other interfaces depend on.
type view struct {
	record *model.Interface
	state  model.InterfaceState_State
	port   api.PortInfo
}

// NewReconciler creates a new reconciler.
func NewReconciler(deps Deps) *Reconciler {
	if deps.Config == nil {
		deps.Config = DefaultConfig()
	}
	return &Reconciler{
		Deps:        deps,
		runner:      keyedqueue.NewQueue(),
		control:     keyedqueue.NewQueue(),
		entries:     make(map[string]*entry),
		unreachable: make(map[string]bool),
	}
}

// Restore loads persisted service bindings and the values rendered before
// a restart, so that the next change of every interface is computed against
// what is in the store. Must be called before any other method.
func (r *Reconciler) Restore() error {
	r.Lock()
	defer r.Unlock()

	type chainKey struct {
		ifName string
		dir    model.Direction
	}
	bindings := make(map[chainKey][]chain.Binding)
	for key, value := range r.Store.List(model.AllServiceBindingsKeyPrefix()) {
		binding, isBinding := value.(*model.ServiceBinding)
		if !isBinding || binding.Service == nil {
			r.Log.Warnf("Skipping invalid service binding %s", key)
			continue
		}
		ck := chainKey{ifName: binding.Interface, dir: binding.Direction}
		bindings[ck] = append(bindings[ck], chain.Binding{Service: binding.Service, Slot: binding.Slot})
	}
	for ck, chainBindings := range bindings {
		e := r.getEntry(ck.ifName)
		ch, err := chain.FromBindings(e.chainParams(r.Config, ck.dir), chainBindings)
		if err != nil {
			return errors.Wrapf(err, "failed to restore %s chain of interface %s",
				model.DirectionName(ck.dir), ck.ifName)
		}
		e.chains[ck.dir] = ch
	}
	for _, value := range r.Store.List(model.InterfaceStateKeyPrefix()) {
		if state, isState := value.(*model.InterfaceState); isState {
			r.getEntry(state.Name)
		}
	}
	for _, e := range r.entries {
		e.rendered = r.stored(e, nil)
	}
	r.Log.Infof("Restored %d interfaces (%d service bindings)", len(r.entries), len(bindings))
	r.reportStats()
	return nil
}

// Close stops the job queues. Running jobs are finished.
func (r *Reconciler) Close() error {
	r.control.Close()
	r.runner.Close()
	return nil
}

// BindService binds the service to the interface in the given direction.
// A service already bound under the same name is replaced. If the interface
// is not bound yet, the binding is recorded and DeferredError is returned.
func (r *Reconciler) BindService(ifName string, dir model.Direction, svc *model.BoundService) *controller.Completion {
	if err := validateBinding(ifName, dir, svc); err != nil {
		return controller.Completed(controller.NewConfigError(err))
	}
	svc = proto.Clone(svc).(*model.BoundService)
	svc.Direction = dir

	return r.submit(r.runner, ifName, func(ctx context.Context) error {
		return r.commit(ifName, func(e *entry) ([]controller.Operation, error) {
			e.count(counterBindRequests)
			ch := e.chains[dir]
			before := ch.Bindings()
			cs, err := ch.Replace(svc)
			if err != nil && err != chain.ErrNotReady {
				if isConfigError(err) {
					err = controller.NewConfigError(err)
				}
				return nil, err
			}
			ops := bindingOps(ifName, dir, before, ch.Bindings())
			if e.state != model.InterfaceState_BOUND {
				return ops, controller.NewDeferredError(errors.Errorf(
					"interface %s is %s, service %s will be rendered once it is bound",
					ifName, e.state, svc.Name))
			}
			e.applyChangeSet(cs)
			return append(ops, cs.Operations()...), nil
		})
	})
}

// UnbindService removes the service with the given priority from the interface.
// Unbinding a service that is not bound is a no-op.
func (r *Reconciler) UnbindService(ifName string, dir model.Direction, priority uint32) *controller.Completion {
	if ifName == "" {
		return controller.Completed(controller.NewConfigError(errors.New("missing interface name")))
	}
	if _, validDir := model.Direction_name[int32(dir)]; !validDir {
		return controller.Completed(controller.NewConfigError(errors.Errorf("invalid direction %d", dir)))
	}

	return r.submit(r.runner, ifName, func(ctx context.Context) error {
		return r.commit(ifName, func(e *entry) ([]controller.Operation, error) {
			ch := e.chains[dir]
			if _, bound := ch.LookupPriority(priority); !bound {
				return nil, nil
			}
			e.count(counterUnbindRequests)
			before := ch.Bindings()
			cs, err := ch.Remove(priority)
			if err != nil {
				return nil, err
			}
			ops := bindingOps(ifName, dir, before, ch.Bindings())
			if e.state == model.InterfaceState_BOUND {
				e.applyChangeSet(cs)
				ops = append(ops, cs.Operations()...)
			}
			return ops, nil
		})
	})
}

// OnInterfaceAdded starts reconciliation of a new interface.
func (r *Reconciler) OnInterfaceAdded(record *model.Interface) *controller.Completion {
	return r.setRecord(record)
}

// OnInterfaceUpdated reconciles the changed interface.
func (r *Reconciler) OnInterfaceUpdated(record *model.Interface) *controller.Completion {
	return r.setRecord(record)
}

// OnInterfaceRemoved removes all rules derived for the interface and releases
// its identifiers. Services bound to the interface stay recorded.
func (r *Reconciler) OnInterfaceRemoved(record *model.Interface) *controller.Completion {
	if record == nil || record.Name == "" {
		return controller.Completed(controller.NewConfigError(errors.New("missing interface name")))
	}
	name := record.Name
	return r.submit(r.runner, name, func(ctx context.Context) error {
		err := r.apply(name, func(e *entry) ([]controller.Operation, error) {
			e.record = nil
			return r.evaluate(e, false)
		})
		if err != nil {
			return err
		}
		// identifiers are released only once no rule refers to them
		for _, pool := range []string{PortTagPool, GroupIDPool} {
			if err := r.IDAlloc.ReleaseID(pool, name); err != nil {
				r.Log.Warnf("Failed to release %s of interface %s: %v", pool, name, err)
			}
		}
		return nil
	})
}

// OnDeviceStatus updates the reachability of a device. Interfaces of an
// unreachable device are tombstoned; once the device is reachable again,
// their rules are re-rendered against the content of the store.
func (r *Reconciler) OnDeviceStatus(device string, reachable bool) *controller.Completion {
	return r.submit(r.control, "device/"+device, func(ctx context.Context) error {
		r.Lock()
		if reachable {
			delete(r.unreachable, device)
		} else {
			r.unreachable[device] = true
		}
		var names []string
		for name, e := range r.entries {
			if e.device() == device || (reachable && e.state == model.InterfaceState_PENDING) {
				names = append(names, name)
			}
		}
		r.Unlock()

		r.Log.Infof("Device %s reachable=%t, reconciling %d interfaces", device, reachable, len(names))
		return r.fanOut(names, reachable)
	})
}

// Resync re-renders all interfaces and repairs the content of the store.
func (r *Reconciler) Resync() *controller.Completion {
	return r.submit(r.control, "resync", func(ctx context.Context) error {
		r.Lock()
		names := make([]string, 0, len(r.entries))
		for name := range r.entries {
			names = append(names, name)
		}
		r.Unlock()

		r.Log.Infof("Resync of %d interfaces", len(names))
		return r.fanOut(names, true)
	})
}

// Dump returns the state of all known interfaces ordered by name.
func (r *Reconciler) Dump() []*InterfaceDump {
	r.Lock()
	defer r.Unlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var dump []*InterfaceDump
	for _, name := range names {
		e := r.entries[name]
		d := &InterfaceDump{State: e.stateRecord()}
		for _, dir := range directions {
			for _, b := range e.chains[dir].Bindings() {
				d.Bindings = append(d.Bindings, serviceBinding(name, dir, b))
			}
		}
		if len(e.counters) > 0 {
			d.Counters = make(map[string]uint64, len(e.counters))
			for counter, value := range e.counters {
				d.Counters[counter] = value
			}
		}
		dump = append(dump, d)
	}
	return dump
}

// setRecord submits reconciliation of a new or changed interface record.
func (r *Reconciler) setRecord(record *model.Interface) *controller.Completion {
	if err := validateRecord(record); err != nil {
		return controller.Completed(controller.NewConfigError(err))
	}
	record = proto.Clone(record).(*model.Interface)
	return r.submit(r.runner, record.Name, func(ctx context.Context) error {
		return r.apply(record.Name, func(e *entry) ([]controller.Operation, error) {
			if e.record != nil && e.record.OperStatus != record.OperStatus {
				e.count(counterOperStatusChanges)
			}
			e.record = record
			return r.evaluate(e, false)
		})
	})
}

// apply commits the change of the interface and propagates it to the
// interfaces depending on it.
func (r *Reconciler) apply(name string, compute computeFunc) error {
	r.Lock()
	before := r.viewOf(name)
	r.Unlock()

	err := r.commit(name, compute)

	r.Lock()
	after := r.viewOf(name)
	var members []string
	if isTrunk(before) || isTrunk(after) {
		if before.state != after.state || before.port != after.port {
			members = r.vlanMembers(name)
		}
	}
	groups := make(map[string]struct{})
	for _, v := range []view{before, after} {
		if v.record != nil && v.record.Type == model.Interface_TUNNEL && v.record.Parent != "" {
			if err != nil || !sameView(before, after) {
				groups[v.record.Parent] = struct{}{}
			}
		}
	}
	r.Unlock()

	for group := range groups {
		r.refreshGroup(group)
	}
	if len(members) > 0 {
		r.Log.Debugf("Trunk %s changed, reconciling %d VLAN members", name, len(members))
		if fanOutErr := r.fanOut(members, false); fanOutErr != nil && err == nil {
			err = errors.Wrapf(fanOutErr, "failed to reconcile VLAN members of %s", name)
		}
	}
	return err
}

// commit computes the change of the interface under the lock, enqueues the
// resulting operations and waits for them to be committed. The entry is
// reverted to its previous state if the operations could not be committed.
// Identifiers missing for the interface are allocated with the reconciler
// unlocked and the change is then computed again.
func (r *Reconciler) commit(name string, compute computeFunc) error {
	var ids identifiers
	for round := 0; ; round++ {
		r.Lock()
		e := r.getEntry(name)
		snapshot := e.clone()
		e.assignIDs(ids)
		ops, err := compute(e)
		required, isRequired := errors.Cause(err).(*idsRequired)
		if !isRequired || round == maxAllocationRounds {
			return r.enqueueAndWait(name, e, snapshot, ops, err)
		}
		r.revert(name, snapshot)
		r.Unlock()

		if ids, err = r.allocateIDs(name, required.group); err != nil {
			return err
		}
	}
}

// enqueueAndWait enqueues the computed operations and waits for their commit.
// Called with the reconciler locked, returns with it unlocked.
func (r *Reconciler) enqueueAndWait(name string, e *entry, snapshot *entry, ops []controller.Operation, err error) error {
	if err != nil && !controller.IsDeferred(err) {
		r.revert(name, snapshot)
		r.Unlock()
		return err
	}
	completion := controller.Completed(nil)
	if len(ops) > 0 {
		var queueErr error
		completion, queueErr = r.Queue.Enqueue(ops...)
		if queueErr != nil {
			r.revert(name, snapshot)
			r.Unlock()
			return queueErr
		}
		r.Log.Debugf("Interface %s (%s): enqueued %d operations", name, e.state, len(ops))
	}
	r.Unlock()

	if commitErr := completion.Wait(); commitErr != nil {
		r.Log.Warnf("Changes of interface %s were not committed: %v", name, commitErr)
		r.Lock()
		r.revert(name, snapshot)
		r.Unlock()
		return commitErr
	}

	r.Lock()
	r.flushCounters(name)
	r.cleanup(name)
	r.reportStats()
	r.Unlock()
	return err
}

// evaluate updates the state of the entry and returns operations changing
// the rendered values into the desired ones. With <heal> the operations are
// computed against the actual content of the store.
func (r *Reconciler) evaluate(e *entry, heal bool) ([]controller.Operation, error) {
	prevState := e.state
	switch {
	case e.record == nil:
		e.state = model.InterfaceState_ABSENT
		e.port = api.PortInfo{}
		e.portTag, e.groupID = 0, 0

	case r.unreachable[e.device()]:
		e.state = model.InterfaceState_TOMBSTONED

	default:
		port, ready := r.resolvePort(e)
		if !ready {
			e.state = model.InterfaceState_PENDING
			e.port = api.PortInfo{}
			e.portTag, e.groupID = 0, 0
			break
		}
		if err := r.bindPort(e, port); err != nil {
			return nil, err
		}
		e.state = model.InterfaceState_BOUND
	}
	if e.state != prevState {
		e.count(counterStateTransitions)
		r.Log.Debugf("Interface %s: %s -> %s", e.name, prevState, e.state)
	}

	if err := e.syncChains(r.Config); err != nil {
		return nil, err
	}
	desired, err := r.desired(e)
	if err != nil {
		return nil, err
	}
	current := e.rendered
	if heal {
		current = r.stored(e, desired)
	}
	ops := diffOps(current, desired)
	e.rendered = desired
	return ops, nil
}

// resolvePort returns the device port of the interface and true if the
// interface can be bound.
func (r *Reconciler) resolvePort(e *entry) (api.PortInfo, bool) {
	switch e.record.Type {
	case model.Interface_LOGICAL_TUNNEL_GROUP:
		// groups have no port of their own
		return api.PortInfo{Device: e.record.Device, OperStatus: e.record.OperStatus}, true

	case model.Interface_VLAN_MEMBER:
		trunk, exists := r.entries[e.record.Parent]
		if !exists || !trunk.isType(model.Interface_VLAN_TRUNK) || trunk.state != model.InterfaceState_BOUND {
			return api.PortInfo{}, false
		}
		return trunk.port, true
	}

	port, err := r.Ports.LookupPort(e.name)
	if err != nil {
		if errors.Cause(err) != api.ErrPortUnknown {
			r.Log.Warnf("Failed to look up port of interface %s: %v", e.name, err)
		}
		return api.PortInfo{}, false
	}
	return port, true
}

// bindPort stores the port of the interface. Identifiers not assigned to
// the entry yet are reported with idsRequired.
func (r *Reconciler) bindPort(e *entry, port api.PortInfo) error {
	group := e.isType(model.Interface_LOGICAL_TUNNEL_GROUP)
	if e.portTag == 0 || (group && e.groupID == 0) {
		return &idsRequired{group: group}
	}
	e.port = port
	return nil
}

// allocateIDs allocates the port tag (and the group ID for a tunnel group)
// of the interface. Allocation commits into the store, must be called
// with the reconciler unlocked.
func (r *Reconciler) allocateIDs(name string, group bool) (ids identifiers, err error) {
	if ids.portTag, err = r.IDAlloc.GetOrAllocateID(PortTagPool, name); err != nil {
		return ids, errors.Wrapf(err, "failed to allocate port tag for interface %s", name)
	}
	if group {
		if ids.groupID, err = r.IDAlloc.GetOrAllocateID(GroupIDPool, name); err != nil {
			return ids, errors.Wrapf(err, "failed to allocate group ID for interface %s", name)
		}
	}
	return ids, nil
}

// stored returns the values in the store owned by the interface.
func (r *Reconciler) stored(e *entry, desired map[string]proto.Message) map[string]proto.Message {
	keys := map[string]struct{}{
		model.ClassifierRuleKey(e.name):   {},
		model.EgressOutputRuleKey(e.name): {},
		model.TunnelGroupKey(e.name):      {},
		model.InterfaceStateKey(e.name):   {},
	}
	for key := range e.rendered {
		keys[key] = struct{}{}
	}
	for key := range desired {
		keys[key] = struct{}{}
	}
	portTag := e.portTag
	if portTag == 0 {
		portTag = r.IDAlloc.GetID(PortTagPool, e.name)
	}
	if portTag != 0 {
		keys[model.SplitHorizonRuleKey(portTag)] = struct{}{}
	}

	values := make(map[string]proto.Message)
	for key := range keys {
		if value, _, found := r.Store.Get(key); found {
			values[key] = value
		}
	}
	if portTag != 0 {
		for _, dir := range directions {
			for key, value := range r.Store.List(model.ChainRuleKeyPrefix(dir, portTag)) {
				values[key] = value
			}
		}
	}
	return values
}

// fanOut reconciles the given interfaces concurrently and waits for all of them.
func (r *Reconciler) fanOut(names []string, heal bool) error {
	completions := make([]*controller.Completion, 0, len(names))
	for _, name := range names {
		completions = append(completions, r.submit(r.runner, name, r.reconcileJob(name, heal)))
	}
	return controller.JoinCompletions(completions...).Wait()
}

func (r *Reconciler) reconcileJob(name string, heal bool) keyedqueue.Job {
	return func(ctx context.Context) error {
		return r.apply(name, func(e *entry) ([]controller.Operation, error) {
			return r.evaluate(e, heal)
		})
	}
}

// refreshGroup re-renders the tunnel group asynchronously.
func (r *Reconciler) refreshGroup(group string) {
	completion := r.submit(r.runner, group, r.reconcileJob(group, false))
	go func() {
		if err := completion.Wait(); err != nil {
			r.Log.Warnf("Failed to refresh tunnel group %s: %v", group, err)
		}
	}()
}

// submit runs the job in the given queue and returns its completion.
func (r *Reconciler) submit(queue *keyedqueue.Queue, key string, job keyedqueue.Job) *controller.Completion {
	result := queue.Submit(key, job)
	completion := controller.NewCompletion()
	go func() {
		completion.Done(<-result)
	}()
	return completion
}

// getEntry returns the entry of the interface, created if needed.
// Requires the reconciler to be locked.
func (r *Reconciler) getEntry(name string) *entry {
	e, exists := r.entries[name]
	if !exists {
		e = newEntry(name, r.Config)
		for _, value := range r.Store.List(model.CounterKey(name, "")) {
			if counter, isCounter := value.(*model.Counter); isCounter {
				e.counters[counter.Name] = counter.Value
			}
		}
		r.entries[name] = e
	}
	return e
}

// revert restores the entry state from before a failed change.
func (r *Reconciler) revert(name string, snapshot *entry) {
	r.entries[name] = snapshot
	r.cleanup(name)
}

// cleanup forgets the entry if nothing is kept for the interface.
func (r *Reconciler) cleanup(name string) {
	if e, exists := r.entries[name]; exists && e.unused() {
		delete(r.entries, name)
	}
}

// flushCounters writes changed counters of the interface. Counters are not
// part of the interface change, their commit is not waited for.
func (r *Reconciler) flushCounters(name string) {
	e, exists := r.entries[name]
	if !exists || len(e.dirtyCounters) == 0 {
		return
	}
	values := make(controller.KeyValuePairs, len(e.dirtyCounters))
	for counter := range e.dirtyCounters {
		values[model.CounterKey(name, counter)] = &model.Counter{Name: counter, Value: e.counters[counter]}
	}
	completion, err := r.Queue.Enqueue(controller.PutAll(values)...)
	if err != nil {
		r.Log.Warnf("Failed to enqueue counters of interface %s: %v", name, err)
		return
	}
	e.dirtyCounters = make(map[string]struct{})
	go func() {
		if err := completion.Wait(); err != nil {
			r.Log.Warnf("Failed to write counters of interface %s: %v", name, err)
		}
	}()
}

// reportStats updates the reconciler statistics.
// Requires the reconciler to be locked.
func (r *Reconciler) reportStats() {
	if r.Stats == nil {
		return
	}
	counts := make(map[string]int, len(model.InterfaceState_State_name))
	for _, state := range model.InterfaceState_State_name {
		counts[state] = 0
	}
	var services int
	for _, e := range r.entries {
		counts[e.state.String()]++
		services += e.boundServices()
	}
	r.Stats.InterfaceStates(counts)
	r.Stats.BoundServices(services)
}

// viewOf returns the view of the interface.
// Requires the reconciler to be locked.
func (r *Reconciler) viewOf(name string) view {
	e, exists := r.entries[name]
	if !exists {
		return view{state: model.InterfaceState_ABSENT}
	}
	return view{record: e.record, state: e.state, port: e.port}
}

func isTrunk(v view) bool {
	return v.record != nil && v.record.Type == model.Interface_VLAN_TRUNK
}

func sameView(a, b view) bool {
	return a.state == b.state && a.port == b.port && proto.Equal(a.record, b.record)
}

func isConfigError(err error) bool {
	switch errors.Cause(err) {
	case chain.ErrDuplicatePriority, chain.ErrDuplicateService, tag.ErrTagSpaceExhausted:
		return true
	}
	return false
}

// bindingOps returns operations changing persisted bindings of the chain
// from <before> to <after>.
func bindingOps(ifName string, dir model.Direction, before, after []chain.Binding) []controller.Operation {
	previous := make(map[string]chain.Binding, len(before))
	for _, b := range before {
		previous[b.Service.Name] = b
	}
	current := make(controller.KeyValuePairs, len(after))
	for _, b := range after {
		old, existed := previous[b.Service.Name]
		delete(previous, b.Service.Name)
		if existed && old.Slot == b.Slot && proto.Equal(old.Service, b.Service) {
			continue
		}
		current[model.ServiceBindingKey(ifName, dir, b.Service.Name)] = serviceBinding(ifName, dir, b)
	}
	removed := make(controller.KeyValuePairs, len(previous))
	for name := range previous {
		removed[model.ServiceBindingKey(ifName, dir, name)] = nil
	}
	return append(controller.DeleteAll(removed), controller.PutAll(current)...)
}

func serviceBinding(ifName string, dir model.Direction, b chain.Binding) *model.ServiceBinding {
	return &model.ServiceBinding{
		Interface: ifName,
		Direction: dir,
		Slot:      b.Slot,
		Service:   b.Service,
	}
}

func validateBinding(ifName string, dir model.Direction, svc *model.BoundService) error {
	if ifName == "" {
		return errors.New("missing interface name")
	}
	if _, validDir := model.Direction_name[int32(dir)]; !validDir {
		return errors.Errorf("invalid direction %d", dir)
	}
	if svc == nil || svc.Name == "" {
		return errors.New("missing service name")
	}
	return nil
}

func validateRecord(record *model.Interface) error {
	if record == nil || record.Name == "" {
		return errors.New("missing interface name")
	}
	switch record.Type {
	case model.Interface_VLAN_MEMBER:
		if record.Parent == "" {
			return errors.Errorf("VLAN member %s without trunk", record.Name)
		}
		if record.VlanId == 0 || record.VlanId > 4094 {
			return errors.Errorf("VLAN member %s with invalid VLAN ID %d", record.Name, record.VlanId)
		}
	case model.Interface_LOGICAL_TUNNEL_GROUP:
		if record.Device == "" {
			return errors.Errorf("tunnel group %s without device", record.Name)
		}
		if record.Parent != "" {
			return errors.Errorf("tunnel group %s cannot have a parent", record.Name)
		}
	case model.Interface_PLAIN, model.Interface_VLAN_TRUNK, model.Interface_TUNNEL:
	default:
		return errors.Errorf("interface %s of unknown type %d", record.Name, record.Type)
	}
	if record.Parent == record.Name {
		return errors.Errorf("interface %s is its own parent", record.Name)
	}
	return nil
}
