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

// Package main implements ifmgr-agent, a standalone agent running the
// interface manager on top of an in-memory store.
//
// Device ports, interfaces and service bindings can be preloaded from
// a topology file (see topology.yaml):
//
//	ifmgr-agent -topology topology.yaml
//
// Derived rules and groups are only logged, no device is programmed.
// The state can be inspected via REST:
//
//	curl localhost:9191/ifmgr/interfaces
//	curl localhost:9191/controller/queues
package main
