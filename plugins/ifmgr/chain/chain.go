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

// Package chain renders the services bound to one interface and direction
// into an ordered chain of match/action rules linked through the packet tag.
//
// Services are ordered by priority (ascending). Each service occupies a chain
// slot; its rule matches the tag carrying that slot, applies the service
// actions, writes the tag of the next service (or the terminal tag after the
// last service) and continues to the next table.
//
// The lowest-priority service always occupies slot 0, the entry point of the
// chain. Any other service keeps the slot it was given when it was inserted,
// which is why binding or unbinding a service rewrites only the rule of that
// service and the rule of its lower-priority neighbor.
package chain

import (
	"sort"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"

	"github.com/contiv/ifmgr/plugins/ifmgr/model"
	"github.com/contiv/ifmgr/plugins/ifmgr/tag"
)

var (
	// ErrNotReady is returned when rules are requested for a chain without
	// a port tag.
	ErrNotReady = errors.New("interface has no port tag assigned")

	// ErrDuplicatePriority is returned when a service is bound with a priority
	// already used by another service of the same chain.
	ErrDuplicatePriority = errors.New("duplicate service priority")

	// ErrDuplicateService is returned when a service of the same name
	// is already in the chain.
	ErrDuplicateService = errors.New("service already bound")

	// ErrInvalidSlots is returned for persisted bindings with inconsistent slots.
	ErrInvalidSlots = errors.New("invalid chain slots")
)

// Params describe where and how the rules of a chain are installed.
type Params struct {
	Interface string
	Device    string
	Direction model.Direction

	// PortTag of the interface, 0 while the interface is not bound.
	PortTag uint32

	TableID      uint32
	NextTable    uint32
	RulePriority uint32

	// SplitHorizon enables the split-horizon drop rule for the last service
	// (only for egress chains).
	SplitHorizon         bool
	SplitHorizonPriority uint32
}

// Binding is a service together with its chain slot.
type Binding struct {
	Service *model.BoundService
	Slot    uint32
}

// Chain is the ordered list of services bound to one interface and direction.
// Chain is not safe for concurrent use.
type Chain struct {
	params   Params
	bindings []Binding // sorted by priority
}

// New creates an empty chain.
func New(params Params) *Chain {
	return &Chain{params: params}
}

// FromBindings restores a chain from persisted bindings.
func FromBindings(params Params, bindings []Binding) (*Chain, error) {
	c := New(params)
	c.bindings = append(c.bindings, bindings...)
	sort.Slice(c.bindings, func(i, j int) bool {
		return c.bindings[i].Service.GetPriority() < c.bindings[j].Service.GetPriority()
	})
	if len(c.bindings) > tag.MaxChainLength {
		return nil, errors.Wrapf(tag.ErrTagSpaceExhausted, "%d services", len(c.bindings))
	}
	slots := make(map[uint32]struct{})
	names := make(map[string]struct{})
	for i, b := range c.bindings {
		if b.Service == nil {
			return nil, errors.Wrapf(ErrInvalidSlots, "binding without service")
		}
		if i > 0 && c.bindings[i-1].Service.Priority == b.Service.Priority {
			return nil, errors.Wrapf(ErrDuplicatePriority, "priority %d", b.Service.Priority)
		}
		if _, dup := names[b.Service.Name]; dup {
			return nil, errors.Wrapf(ErrDuplicateService, "service %s", b.Service.Name)
		}
		if _, dup := slots[b.Slot]; dup || b.Slot >= uint32(tag.MaxChainLength) || (i == 0) != (b.Slot == 0) {
			return nil, errors.Wrapf(ErrInvalidSlots, "service %s in slot %d", b.Service.Name, b.Slot)
		}
		slots[b.Slot] = struct{}{}
		names[b.Service.Name] = struct{}{}
	}
	return c, nil
}

// Params returns the chain parameters.
func (c *Chain) Params() Params {
	return c.params
}

// Ready returns true if the chain can be rendered.
func (c *Chain) Ready() bool {
	return c.params.PortTag != 0
}

// SetParams replaces the chain parameters. Rules rendered with the previous
// parameters are not removed.
func (c *Chain) SetParams(params Params) error {
	if params.PortTag != 0 {
		if _, _, err := tag.Encode(params.PortTag, 0, 0); err != nil {
			return err
		}
	}
	c.params = params
	return nil
}

// Len returns the number of services in the chain.
func (c *Chain) Len() int {
	return len(c.bindings)
}

// Bindings returns the services of the chain ordered by priority.
func (c *Chain) Bindings() []Binding {
	bindings := make([]Binding, len(c.bindings))
	copy(bindings, c.bindings)
	return bindings
}

// Lookup returns the binding of the service with the given name.
func (c *Chain) Lookup(name string) (Binding, bool) {
	if idx := c.indexOfName(name); idx >= 0 {
		return c.bindings[idx], true
	}
	return Binding{}, false
}

// LookupPriority returns the binding of the service with the given priority.
func (c *Chain) LookupPriority(priority uint32) (Binding, bool) {
	if idx := c.indexOfPriority(priority); idx >= 0 {
		return c.bindings[idx], true
	}
	return Binding{}, false
}

// Clone returns a copy of the chain.
func (c *Chain) Clone() *Chain {
	return &Chain{params: c.params, bindings: c.Bindings()}
}

// Insert adds a new service into the chain. The returned change set contains
// the rule of the new service and the rewritten rule of its lower-priority
// neighbor. For a chain without port tag the service is recorded and
// ErrNotReady is returned.
func (c *Chain) Insert(svc *model.BoundService) (ChangeSet, error) {
	if svc == nil || svc.Name == "" {
		return ChangeSet{}, errors.New("service without name")
	}
	if c.indexOfName(svc.Name) >= 0 {
		return ChangeSet{}, errors.Wrapf(ErrDuplicateService, "service %s", svc.Name)
	}
	if c.indexOfPriority(svc.Priority) >= 0 {
		return ChangeSet{}, errors.Wrapf(ErrDuplicatePriority, "service %s, priority %d", svc.Name, svc.Priority)
	}
	if len(c.bindings) >= tag.MaxChainLength {
		return ChangeSet{}, errors.Wrapf(tag.ErrTagSpaceExhausted, "service %s", svc.Name)
	}

	pos := c.position(svc.Priority)
	newBinding := Binding{Service: svc}
	displaced := -1
	if pos == 0 {
		// the new service becomes the entry point
		if len(c.bindings) > 0 {
			c.bindings[0].Slot = c.freeSlot()
			displaced = 1
		}
	} else {
		newBinding.Slot = c.freeSlot()
	}
	c.bindings = append(c.bindings, Binding{})
	copy(c.bindings[pos+1:], c.bindings[pos:])
	c.bindings[pos] = newBinding

	if !c.Ready() {
		return ChangeSet{}, ErrNotReady
	}
	var cs ChangeSet
	if err := c.putChainRule(&cs, pos); err != nil {
		return ChangeSet{}, err
	}
	neighbor := pos - 1
	if displaced >= 0 {
		neighbor = displaced
	}
	if neighbor >= 0 {
		if err := c.putChainRule(&cs, neighbor); err != nil {
			return ChangeSet{}, err
		}
	}
	if last := len(c.bindings) - 1; pos == last || displaced == last {
		if err := c.putSplitHorizonRule(&cs); err != nil {
			return ChangeSet{}, err
		}
	}
	return cs, nil
}

// Remove removes the service with the given priority. Removing a service
// that is not in the chain is a no-op.
func (c *Chain) Remove(priority uint32) (ChangeSet, error) {
	var cs ChangeSet
	pos := c.indexOfPriority(priority)
	if pos < 0 {
		return cs, nil
	}
	removed := c.bindings[pos]
	c.bindings = append(c.bindings[:pos], c.bindings[pos+1:]...)
	if !c.Ready() {
		if pos == 0 && len(c.bindings) > 0 {
			c.bindings[0].Slot = 0
		}
		return cs, nil
	}

	cs.DeleteRule(c.chainRuleKey(removed.Slot))
	switch {
	case len(c.bindings) == 0:
		if c.splitHorizonEnabled() {
			cs.DeleteRule(model.SplitHorizonRuleKey(c.params.PortTag))
		}
		return cs, nil
	case pos == 0:
		// the next service becomes the entry point
		cs.DeleteRule(c.chainRuleKey(c.bindings[0].Slot))
		c.bindings[0].Slot = 0
		if err := c.putChainRule(&cs, 0); err != nil {
			return ChangeSet{}, err
		}
	default:
		if err := c.putChainRule(&cs, pos-1); err != nil {
			return ChangeSet{}, err
		}
	}
	if pos == 0 && len(c.bindings) == 1 || pos == len(c.bindings) {
		// last service changed or moved
		if err := c.putSplitHorizonRule(&cs); err != nil {
			return ChangeSet{}, err
		}
	}
	return cs, nil
}

// Replace updates a service already in the chain (matched by name), or inserts
// it if it is not in the chain yet. A change of priority is rendered as removal
// and insertion within one change set.
func (c *Chain) Replace(svc *model.BoundService) (ChangeSet, error) {
	if svc == nil {
		return ChangeSet{}, errors.New("nil service")
	}
	pos := c.indexOfName(svc.Name)
	if pos < 0 {
		return c.Insert(svc)
	}
	old := c.bindings[pos]
	if proto.Equal(old.Service, svc) {
		return ChangeSet{}, nil
	}
	if other := c.indexOfPriority(svc.Priority); other >= 0 && other != pos {
		return ChangeSet{}, errors.Wrapf(ErrDuplicatePriority, "service %s, priority %d", svc.Name, svc.Priority)
	}

	if old.Service.Priority == svc.Priority {
		// same position and slot, only the service's own rule changes
		c.bindings[pos].Service = svc
		if !c.Ready() {
			return ChangeSet{}, ErrNotReady
		}
		var cs ChangeSet
		if err := c.putChainRule(&cs, pos); err != nil {
			return ChangeSet{}, err
		}
		if pos == len(c.bindings)-1 {
			if err := c.putSplitHorizonRule(&cs); err != nil {
				return ChangeSet{}, err
			}
		}
		return cs, nil
	}

	snapshot := c.Bindings()
	cs, err := c.Remove(old.Service.Priority)
	if err != nil {
		c.bindings = snapshot
		return ChangeSet{}, err
	}
	inserted, err := c.Insert(svc)
	if err != nil {
		if err == ErrNotReady {
			return ChangeSet{}, err
		}
		c.bindings = snapshot
		return ChangeSet{}, err
	}
	cs.Merge(inserted)
	return cs, nil
}

// Render returns all rules of the chain.
func (c *Chain) Render() (Rules, error) {
	if !c.Ready() {
		return nil, ErrNotReady
	}
	var cs ChangeSet
	for i := range c.bindings {
		if err := c.putChainRule(&cs, i); err != nil {
			return nil, err
		}
	}
	if err := c.putSplitHorizonRule(&cs); err != nil {
		return nil, err
	}
	if cs.Put == nil {
		return Rules{}, nil
	}
	return cs.Put, nil
}

// Build renders the rules for the given services, assigning slots 0..N-1
// in the order of priority.
func Build(params Params, services []*model.BoundService) (Rules, error) {
	if params.PortTag == 0 {
		return nil, ErrNotReady
	}
	sorted := make([]*model.BoundService, len(services))
	copy(sorted, services)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].GetPriority() < sorted[j].GetPriority()
	})
	var bindings []Binding
	for i, svc := range sorted {
		bindings = append(bindings, Binding{Service: svc, Slot: uint32(i)})
	}
	c, err := FromBindings(params, bindings)
	if err != nil {
		return nil, err
	}
	return c.Render()
}

// position returns the index at which a service with the given priority
// belongs.
func (c *Chain) position(priority uint32) int {
	return sort.Search(len(c.bindings), func(i int) bool {
		return c.bindings[i].Service.Priority >= priority
	})
}

func (c *Chain) indexOfPriority(priority uint32) int {
	pos := c.position(priority)
	if pos < len(c.bindings) && c.bindings[pos].Service.Priority == priority {
		return pos
	}
	return -1
}

func (c *Chain) indexOfName(name string) int {
	for i, b := range c.bindings {
		if b.Service.Name == name {
			return i
		}
	}
	return -1
}

// freeSlot returns the lowest non-zero slot not used by any service.
func (c *Chain) freeSlot() uint32 {
	used := make(map[uint32]struct{}, len(c.bindings))
	for _, b := range c.bindings {
		used[b.Slot] = struct{}{}
	}
	for slot := uint32(1); ; slot++ {
		if _, isUsed := used[slot]; !isUsed {
			return slot
		}
	}
}

func (c *Chain) chainRuleKey(slot uint32) string {
	return model.ChainRuleKey(c.params.Direction, c.params.PortTag, slot)
}

func (c *Chain) splitHorizonEnabled() bool {
	return c.params.SplitHorizon && c.params.Direction == model.Direction_EGRESS
}

func (c *Chain) splitHorizonActive() bool {
	return c.splitHorizonEnabled() && len(c.bindings) > 0
}

// putChainRule renders the rule of the service at the given position.
func (c *Chain) putChainRule(cs *ChangeSet, pos int) error {
	b := c.bindings[pos]
	value, mask, err := tag.Encode(c.params.PortTag, b.Slot, 0)
	if err != nil {
		return err
	}
	var nextValue, nextMask uint32
	if pos+1 < len(c.bindings) {
		nextValue, nextMask, err = tag.Encode(c.params.PortTag, c.bindings[pos+1].Slot, 0)
		if err != nil {
			return err
		}
	} else {
		nextValue, nextMask = tag.Terminal(c.params.PortTag)
	}
	nextTable := c.params.NextTable
	if b.Service.NextTable != 0 {
		nextTable = b.Service.NextTable
	}

	actions := make([]*model.Action, 0, len(b.Service.Actions)+2)
	for _, action := range b.Service.Actions {
		actions = append(actions, proto.Clone(action).(*model.Action))
	}
	actions = append(actions,
		&model.Action{Type: model.Action_WRITE_TAG, Value: nextValue, Mask: nextMask},
		&model.Action{Type: model.Action_GOTO_TABLE, Table: nextTable})

	cs.PutRule(c.chainRuleKey(b.Slot), &model.Rule{
		Interface: c.params.Interface,
		Device:    c.params.Device,
		TableId:   c.params.TableID,
		Priority:  c.params.RulePriority,
		Cookie:    b.Service.Cookie,
		Kind:      model.Rule_CHAIN,
		Service:   b.Service.Name,
		Match:     &model.Match{TagValue: value, TagMask: mask},
		Actions:   actions,
	})
	return nil
}

// putSplitHorizonRule renders the drop rule for split-horizon traffic
// reaching the last service of an egress chain.
func (c *Chain) putSplitHorizonRule(cs *ChangeSet) error {
	if !c.splitHorizonActive() {
		return nil
	}
	last := c.bindings[len(c.bindings)-1]
	value, mask, err := tag.Encode(c.params.PortTag, last.Slot, tag.SplitHorizon)
	if err != nil {
		return err
	}
	cs.PutRule(model.SplitHorizonRuleKey(c.params.PortTag), &model.Rule{
		Interface: c.params.Interface,
		Device:    c.params.Device,
		TableId:   c.params.TableID,
		Priority:  c.params.SplitHorizonPriority,
		Cookie:    last.Service.Cookie,
		Kind:      model.Rule_SPLIT_HORIZON,
		Service:   last.Service.Name,
		Match:     &model.Match{TagValue: value, TagMask: mask},
		Actions:   []*model.Action{{Type: model.Action_DROP}},
	})
	return nil
}
