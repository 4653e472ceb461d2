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

// Package ifmgr is the plugin facade of the interface manager. It wires
// the reconciler to the store, the Records/Counters resource queues
// of the controller, the ID allocator and the device port layer, and exposes
// the asynchronous InterfaceManager API together with a REST dump of the
// interface states.
//
// The plugin reads its configuration from ifmgr.conf, for example:
//
//	ingress-table: 10
//	egress-table: 30
//	split-horizon-rule-priority: 200
//	port-tag-pool:
//	  min: 1
//	  max: 4096
//	resync-on-start: true
package ifmgr
