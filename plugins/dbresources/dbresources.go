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

package dbresources

import (
	"strings"

	"github.com/gogo/protobuf/proto"

	controller_api "github.com/contiv/ifmgr/plugins/controller/api"
	"github.com/contiv/ifmgr/plugins/idalloc/idallocation"
	"github.com/contiv/ifmgr/plugins/ifmgr/model"
)

// GetDBResources returns metadata for all DB resources written through
// the resource queues.
func GetDBResources() []*controller_api.DBResource {
	return []*controller_api.DBResource{
		{
			Keyword:          "rule",
			ProtoMessageName: proto.MessageName((*model.Rule)(nil)),
			KeyPrefix:        model.RuleKeyPrefix(),
			Class:            controller_api.Records,
		},
		{
			Keyword:          "tunnel-group",
			ProtoMessageName: proto.MessageName((*model.TunnelGroup)(nil)),
			KeyPrefix:        model.TunnelGroupKeyPrefix(),
			Class:            controller_api.Records,
		},
		{
			Keyword:          "binding",
			ProtoMessageName: proto.MessageName((*model.ServiceBinding)(nil)),
			KeyPrefix:        model.AllServiceBindingsKeyPrefix(),
			Class:            controller_api.Records,
		},
		{
			Keyword:          "interface",
			ProtoMessageName: proto.MessageName((*model.InterfaceState)(nil)),
			KeyPrefix:        model.InterfaceStateKeyPrefix(),
			Class:            controller_api.Records,
		},
		{
			Keyword:          "counter",
			ProtoMessageName: proto.MessageName((*model.Counter)(nil)),
			KeyPrefix:        model.CounterKeyPrefix(),
			Class:            controller_api.Counters,
		},
		{
			Keyword:          idallocation.Keyword,
			ProtoMessageName: proto.MessageName((*idallocation.AllocationPool)(nil)),
			KeyPrefix:        idallocation.KeyPrefix(),
			Class:            controller_api.Records,
		},
	}
}

// GetDBResource returns the resource the key belongs to (nil if unknown).
func GetDBResource(key string) *controller_api.DBResource {
	for _, resource := range GetDBResources() {
		if strings.HasPrefix(key, resource.KeyPrefix) {
			return resource
		}
	}
	return nil
}

// ClassOf returns the resource class (queue) for the given key.
// Unknown keys are treated as records.
func ClassOf(key string) controller_api.ResourceClass {
	if resource := GetDBResource(key); resource != nil {
		return resource.Class
	}
	return controller_api.Records
}
