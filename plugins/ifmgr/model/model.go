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

// Package model defines the records ifmgr keeps in the configuration store:
// bound services, derived rules, tunnel groups and interface state.
package model

import (
	"github.com/gogo/protobuf/proto"
)

// Direction of the traffic a service is bound to.
type Direction int32

const (
	Direction_INGRESS Direction = 0
	Direction_EGRESS  Direction = 1
)

var Direction_name = map[int32]string{
	0: "INGRESS",
	1: "EGRESS",
}

var Direction_value = map[string]int32{
	"INGRESS": 0,
	"EGRESS":  1,
}

func (x Direction) String() string {
	return proto.EnumName(Direction_name, int32(x))
}

// Action_Type enumerates the supported rule actions.
type Action_Type int32

const (
	Action_OUTPUT     Action_Type = 0
	Action_GROUP      Action_Type = 1
	Action_DROP       Action_Type = 2
	Action_GOTO_TABLE Action_Type = 3
	Action_WRITE_TAG  Action_Type = 4
	Action_PUSH_VLAN  Action_Type = 5
	Action_POP_VLAN   Action_Type = 6
	Action_SET_QUEUE  Action_Type = 7
	Action_METER      Action_Type = 8
	Action_CONTROLLER Action_Type = 9
)

var Action_Type_name = map[int32]string{
	0: "OUTPUT",
	1: "GROUP",
	2: "DROP",
	3: "GOTO_TABLE",
	4: "WRITE_TAG",
	5: "PUSH_VLAN",
	6: "POP_VLAN",
	7: "SET_QUEUE",
	8: "METER",
	9: "CONTROLLER",
}

var Action_Type_value = map[string]int32{
	"OUTPUT":     0,
	"GROUP":      1,
	"DROP":       2,
	"GOTO_TABLE": 3,
	"WRITE_TAG":  4,
	"PUSH_VLAN":  5,
	"POP_VLAN":   6,
	"SET_QUEUE":  7,
	"METER":      8,
	"CONTROLLER": 9,
}

func (x Action_Type) String() string {
	return proto.EnumName(Action_Type_name, int32(x))
}

// Rule_Kind distinguishes the derived rules produced for an interface.
type Rule_Kind int32

const (
	Rule_CHAIN         Rule_Kind = 0
	Rule_SPLIT_HORIZON Rule_Kind = 1
	Rule_CLASSIFIER    Rule_Kind = 2
	Rule_EGRESS_OUTPUT Rule_Kind = 3
)

var Rule_Kind_name = map[int32]string{
	0: "CHAIN",
	1: "SPLIT_HORIZON",
	2: "CLASSIFIER",
	3: "EGRESS_OUTPUT",
}

var Rule_Kind_value = map[string]int32{
	"CHAIN":         0,
	"SPLIT_HORIZON": 1,
	"CLASSIFIER":    2,
	"EGRESS_OUTPUT": 3,
}

func (x Rule_Kind) String() string {
	return proto.EnumName(Rule_Kind_name, int32(x))
}

// Interface_Type enumerates interface flavours handled by the reconciler.
type Interface_Type int32

const (
	Interface_PLAIN                Interface_Type = 0
	Interface_VLAN_TRUNK           Interface_Type = 1
	Interface_VLAN_MEMBER          Interface_Type = 2
	Interface_TUNNEL               Interface_Type = 3
	Interface_LOGICAL_TUNNEL_GROUP Interface_Type = 4
)

var Interface_Type_name = map[int32]string{
	0: "PLAIN",
	1: "VLAN_TRUNK",
	2: "VLAN_MEMBER",
	3: "TUNNEL",
	4: "LOGICAL_TUNNEL_GROUP",
}

var Interface_Type_value = map[string]int32{
	"PLAIN":                0,
	"VLAN_TRUNK":           1,
	"VLAN_MEMBER":          2,
	"TUNNEL":               3,
	"LOGICAL_TUNNEL_GROUP": 4,
}

func (x Interface_Type) String() string {
	return proto.EnumName(Interface_Type_name, int32(x))
}

// Interface_OperStatus is the operational status reported for an interface.
type Interface_OperStatus int32

const (
	Interface_UNKNOWN Interface_OperStatus = 0
	Interface_UP      Interface_OperStatus = 1
	Interface_DOWN    Interface_OperStatus = 2
)

var Interface_OperStatus_name = map[int32]string{
	0: "UNKNOWN",
	1: "UP",
	2: "DOWN",
}

var Interface_OperStatus_value = map[string]int32{
	"UNKNOWN": 0,
	"UP":      1,
	"DOWN":    2,
}

func (x Interface_OperStatus) String() string {
	return proto.EnumName(Interface_OperStatus_name, int32(x))
}

// InterfaceState_State is the reconciler state of an interface.
type InterfaceState_State int32

const (
	InterfaceState_ABSENT     InterfaceState_State = 0
	InterfaceState_PENDING    InterfaceState_State = 1
	InterfaceState_BOUND      InterfaceState_State = 2
	InterfaceState_TOMBSTONED InterfaceState_State = 3
)

var InterfaceState_State_name = map[int32]string{
	0: "ABSENT",
	1: "PENDING",
	2: "BOUND",
	3: "TOMBSTONED",
}

var InterfaceState_State_value = map[string]int32{
	"ABSENT":     0,
	"PENDING":    1,
	"BOUND":      2,
	"TOMBSTONED": 3,
}

func (x InterfaceState_State) String() string {
	return proto.EnumName(InterfaceState_State_name, int32(x))
}

// Action is a single rule action.
type Action struct {
	Type   Action_Type `protobuf:"varint,1,opt,name=type,proto3,enum=ifmgr.Action_Type" json:"type,omitempty"`
	Port   uint32      `protobuf:"varint,2,opt,name=port,proto3" json:"port,omitempty"`
	Group  uint32      `protobuf:"varint,3,opt,name=group,proto3" json:"group,omitempty"`
	Table  uint32      `protobuf:"varint,4,opt,name=table,proto3" json:"table,omitempty"`
	Value  uint32      `protobuf:"varint,5,opt,name=value,proto3" json:"value,omitempty"`
	Mask   uint32      `protobuf:"varint,6,opt,name=mask,proto3" json:"mask,omitempty"`
	VlanId uint32      `protobuf:"varint,7,opt,name=vlan_id,json=vlanId,proto3" json:"vlan_id,omitempty"`
	Queue  uint32      `protobuf:"varint,8,opt,name=queue,proto3" json:"queue,omitempty"`
	Meter  uint32      `protobuf:"varint,9,opt,name=meter,proto3" json:"meter,omitempty"`
}

func (m *Action) Reset()         { *m = Action{} }
func (m *Action) String() string { return proto.CompactTextString(m) }
func (*Action) ProtoMessage()    {}

// Match is the match set of a rule. Zero fields are wildcards.
type Match struct {
	InPort   uint32 `protobuf:"varint,1,opt,name=in_port,json=inPort,proto3" json:"in_port,omitempty"`
	VlanId   uint32 `protobuf:"varint,2,opt,name=vlan_id,json=vlanId,proto3" json:"vlan_id,omitempty"`
	TagValue uint32 `protobuf:"varint,3,opt,name=tag_value,json=tagValue,proto3" json:"tag_value,omitempty"`
	TagMask  uint32 `protobuf:"varint,4,opt,name=tag_mask,json=tagMask,proto3" json:"tag_mask,omitempty"`
}

func (m *Match) Reset()         { *m = Match{} }
func (m *Match) String() string { return proto.CompactTextString(m) }
func (*Match) ProtoMessage()    {}

// BoundService is a packet-processing service attached to an interface
// in one direction. Priority is unique per interface and direction.
type BoundService struct {
	Name      string    `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Priority  uint32    `protobuf:"varint,2,opt,name=priority,proto3" json:"priority,omitempty"`
	Direction Direction `protobuf:"varint,3,opt,name=direction,proto3,enum=ifmgr.Direction" json:"direction,omitempty"`
	Cookie    uint64    `protobuf:"varint,4,opt,name=cookie,proto3" json:"cookie,omitempty"`
	Actions   []*Action `protobuf:"bytes,5,rep,name=actions,proto3" json:"actions,omitempty"`
	// NextTable overrides the table the chain continues to (0 = default).
	NextTable uint32 `protobuf:"varint,6,opt,name=next_table,json=nextTable,proto3" json:"next_table,omitempty"`
}

func (m *BoundService) Reset()         { *m = BoundService{} }
func (m *BoundService) String() string { return proto.CompactTextString(m) }
func (*BoundService) ProtoMessage()    {}

func (m *BoundService) GetName() string {
	if m != nil {
		return m.Name
	}
	return ""
}

func (m *BoundService) GetPriority() uint32 {
	if m != nil {
		return m.Priority
	}
	return 0
}

func (m *BoundService) GetActions() []*Action {
	if m != nil {
		return m.Actions
	}
	return nil
}

// Rule is a derived match/action rule installed into one table of a device.
type Rule struct {
	Interface string    `protobuf:"bytes,1,opt,name=interface,proto3" json:"interface,omitempty"`
	Device    string    `protobuf:"bytes,2,opt,name=device,proto3" json:"device,omitempty"`
	TableId   uint32    `protobuf:"varint,3,opt,name=table_id,json=tableId,proto3" json:"table_id,omitempty"`
	Priority  uint32    `protobuf:"varint,4,opt,name=priority,proto3" json:"priority,omitempty"`
	Cookie    uint64    `protobuf:"varint,5,opt,name=cookie,proto3" json:"cookie,omitempty"`
	Kind      Rule_Kind `protobuf:"varint,6,opt,name=kind,proto3,enum=ifmgr.Rule_Kind" json:"kind,omitempty"`
	Service   string    `protobuf:"bytes,7,opt,name=service,proto3" json:"service,omitempty"`
	Match     *Match    `protobuf:"bytes,8,opt,name=match,proto3" json:"match,omitempty"`
	Actions   []*Action `protobuf:"bytes,9,rep,name=actions,proto3" json:"actions,omitempty"`
}

func (m *Rule) Reset()         { *m = Rule{} }
func (m *Rule) String() string { return proto.CompactTextString(m) }
func (*Rule) ProtoMessage()    {}

func (m *Rule) GetMatch() *Match {
	if m != nil {
		return m.Match
	}
	return nil
}

func (m *Rule) GetActions() []*Action {
	if m != nil {
		return m.Actions
	}
	return nil
}

// Interface is the declarative record of a physical or tunnel interface.
type Interface struct {
	Name       string               `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Parent     string               `protobuf:"bytes,2,opt,name=parent,proto3" json:"parent,omitempty"`
	Type       Interface_Type       `protobuf:"varint,3,opt,name=type,proto3,enum=ifmgr.Interface_Type" json:"type,omitempty"`
	OperStatus Interface_OperStatus `protobuf:"varint,4,opt,name=oper_status,json=operStatus,proto3,enum=ifmgr.Interface_OperStatus" json:"oper_status,omitempty"`
	External   bool                 `protobuf:"varint,5,opt,name=external,proto3" json:"external,omitempty"`
	VlanId     uint32               `protobuf:"varint,6,opt,name=vlan_id,json=vlanId,proto3" json:"vlan_id,omitempty"`
	Weight     uint32               `protobuf:"varint,7,opt,name=weight,proto3" json:"weight,omitempty"`
	Device     string               `protobuf:"bytes,8,opt,name=device,proto3" json:"device,omitempty"`
}

func (m *Interface) Reset()         { *m = Interface{} }
func (m *Interface) String() string { return proto.CompactTextString(m) }
func (*Interface) ProtoMessage()    {}

// TunnelGroup is the weighted selection construct of a logical tunnel group.
type TunnelGroup struct {
	Name    string                `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Device  string                `protobuf:"bytes,2,opt,name=device,proto3" json:"device,omitempty"`
	GroupId uint32                `protobuf:"varint,3,opt,name=group_id,json=groupId,proto3" json:"group_id,omitempty"`
	Buckets []*TunnelGroup_Bucket `protobuf:"bytes,4,rep,name=buckets,proto3" json:"buckets,omitempty"`
}

func (m *TunnelGroup) Reset()         { *m = TunnelGroup{} }
func (m *TunnelGroup) String() string { return proto.CompactTextString(m) }
func (*TunnelGroup) ProtoMessage()    {}

type TunnelGroup_Bucket struct {
	Tunnel string `protobuf:"bytes,1,opt,name=tunnel,proto3" json:"tunnel,omitempty"`
	Port   uint32 `protobuf:"varint,2,opt,name=port,proto3" json:"port,omitempty"`
	Weight uint32 `protobuf:"varint,3,opt,name=weight,proto3" json:"weight,omitempty"`
}

func (m *TunnelGroup_Bucket) Reset()         { *m = TunnelGroup_Bucket{} }
func (m *TunnelGroup_Bucket) String() string { return proto.CompactTextString(m) }
func (*TunnelGroup_Bucket) ProtoMessage()    {}

// ServiceBinding is the persisted intent of a bind request together with
// the chain slot assigned to the service.
type ServiceBinding struct {
	Interface string        `protobuf:"bytes,1,opt,name=interface,proto3" json:"interface,omitempty"`
	Direction Direction     `protobuf:"varint,2,opt,name=direction,proto3,enum=ifmgr.Direction" json:"direction,omitempty"`
	Slot      uint32        `protobuf:"varint,3,opt,name=slot,proto3" json:"slot,omitempty"`
	Service   *BoundService `protobuf:"bytes,4,opt,name=service,proto3" json:"service,omitempty"`
}

func (m *ServiceBinding) Reset()         { *m = ServiceBinding{} }
func (m *ServiceBinding) String() string { return proto.CompactTextString(m) }
func (*ServiceBinding) ProtoMessage()    {}

func (m *ServiceBinding) GetService() *BoundService {
	if m != nil {
		return m.Service
	}
	return nil
}

// InterfaceState is the reconciler view of an interface published to the store.
type InterfaceState struct {
	Name    string               `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	State   InterfaceState_State `protobuf:"varint,2,opt,name=state,proto3,enum=ifmgr.InterfaceState_State" json:"state,omitempty"`
	Device  string               `protobuf:"bytes,3,opt,name=device,proto3" json:"device,omitempty"`
	PortNo  uint32               `protobuf:"varint,4,opt,name=port_no,json=portNo,proto3" json:"port_no,omitempty"`
	PortTag uint32               `protobuf:"varint,5,opt,name=port_tag,json=portTag,proto3" json:"port_tag,omitempty"`
	GroupId uint32               `protobuf:"varint,6,opt,name=group_id,json=groupId,proto3" json:"group_id,omitempty"`
	Record  *Interface           `protobuf:"bytes,7,opt,name=record,proto3" json:"record,omitempty"`
}

func (m *InterfaceState) Reset()         { *m = InterfaceState{} }
func (m *InterfaceState) String() string { return proto.CompactTextString(m) }
func (*InterfaceState) ProtoMessage()    {}

// Counter is a small scalar statistic.
type Counter struct {
	Name  string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Value uint64 `protobuf:"varint,2,opt,name=value,proto3" json:"value,omitempty"`
}

func (m *Counter) Reset()         { *m = Counter{} }
func (m *Counter) String() string { return proto.CompactTextString(m) }
func (*Counter) ProtoMessage()    {}

func init() {
	proto.RegisterEnum("ifmgr.Direction", Direction_name, Direction_value)
	proto.RegisterEnum("ifmgr.Action_Type", Action_Type_name, Action_Type_value)
	proto.RegisterEnum("ifmgr.Rule_Kind", Rule_Kind_name, Rule_Kind_value)
	proto.RegisterEnum("ifmgr.Interface_Type", Interface_Type_name, Interface_Type_value)
	proto.RegisterEnum("ifmgr.Interface_OperStatus", Interface_OperStatus_name, Interface_OperStatus_value)
	proto.RegisterEnum("ifmgr.InterfaceState_State", InterfaceState_State_name, InterfaceState_State_value)
	proto.RegisterType((*Action)(nil), "ifmgr.Action")
	proto.RegisterType((*Match)(nil), "ifmgr.Match")
	proto.RegisterType((*BoundService)(nil), "ifmgr.BoundService")
	proto.RegisterType((*Rule)(nil), "ifmgr.Rule")
	proto.RegisterType((*Interface)(nil), "ifmgr.Interface")
	proto.RegisterType((*TunnelGroup)(nil), "ifmgr.TunnelGroup")
	proto.RegisterType((*TunnelGroup_Bucket)(nil), "ifmgr.TunnelGroup.Bucket")
	proto.RegisterType((*ServiceBinding)(nil), "ifmgr.ServiceBinding")
	proto.RegisterType((*InterfaceState)(nil), "ifmgr.InterfaceState")
	proto.RegisterType((*Counter)(nil), "ifmgr.Counter")
}
