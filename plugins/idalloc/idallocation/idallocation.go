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

// Package idallocation defines the persisted ID allocation pool.
package idallocation

import (
	"github.com/gogo/protobuf/proto"
)

// AllocationPool is a named range of numeric IDs together with the
// allocations made from it, keyed by label.
type AllocationPool struct {
	Name          string                                `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Range         *AllocationPool_Range                 `protobuf:"bytes,2,opt,name=range,proto3" json:"range,omitempty"`
	IdAllocations map[string]*AllocationPool_Allocation `protobuf:"bytes,3,rep,name=id_allocations,json=idAllocations,proto3" json:"id_allocations,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
}

func (m *AllocationPool) Reset()         { *m = AllocationPool{} }
func (m *AllocationPool) String() string { return proto.CompactTextString(m) }
func (*AllocationPool) ProtoMessage()    {}

func (m *AllocationPool) GetRange() *AllocationPool_Range {
	if m != nil {
		return m.Range
	}
	return nil
}

// AllocationPool_Range is the inclusive range of the pool.
type AllocationPool_Range struct {
	MinId    uint32   `protobuf:"varint,1,opt,name=min_id,json=minId,proto3" json:"min_id,omitempty"`
	MaxId    uint32   `protobuf:"varint,2,opt,name=max_id,json=maxId,proto3" json:"max_id,omitempty"`
	Reserved []uint32 `protobuf:"varint,3,rep,packed,name=reserved,proto3" json:"reserved,omitempty"`
}

func (m *AllocationPool_Range) Reset()         { *m = AllocationPool_Range{} }
func (m *AllocationPool_Range) String() string { return proto.CompactTextString(m) }
func (*AllocationPool_Range) ProtoMessage()    {}

func (m *AllocationPool_Range) GetReserved() []uint32 {
	if m != nil {
		return m.Reserved
	}
	return nil
}

// AllocationPool_Allocation is a single allocated ID.
type AllocationPool_Allocation struct {
	Id    uint32 `protobuf:"varint,1,opt,name=id,proto3" json:"id,omitempty"`
	Owner string `protobuf:"bytes,2,opt,name=owner,proto3" json:"owner,omitempty"`
}

func (m *AllocationPool_Allocation) Reset()         { *m = AllocationPool_Allocation{} }
func (m *AllocationPool_Allocation) String() string { return proto.CompactTextString(m) }
func (*AllocationPool_Allocation) ProtoMessage()    {}

func init() {
	proto.RegisterType((*AllocationPool)(nil), "idallocation.AllocationPool")
	proto.RegisterType((*AllocationPool_Range)(nil), "idallocation.AllocationPool.Range")
	proto.RegisterType((*AllocationPool_Allocation)(nil), "idallocation.AllocationPool.Allocation")
}
