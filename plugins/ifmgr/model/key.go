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

package model

import (
	"fmt"
	"strings"
)

// Keyword defines the keyword identifying all ifmgr data in the store.
const Keyword = "ifmgr"

const (
	rulePrefix      = Keyword + "/rule/"
	chainPrefix     = rulePrefix + "chain/"
	splitHorizon    = rulePrefix + "split-horizon/"
	classifier      = rulePrefix + "classifier/"
	egressOutput    = rulePrefix + "egress-output/"
	groupPrefix     = Keyword + "/group/"
	bindingPrefix   = Keyword + "/binding/"
	interfacePrefix = Keyword + "/interface/"
	counterPrefix   = Keyword + "/counter/"
)

// DirectionName returns the lower-case name of the direction used in keys.
func DirectionName(dir Direction) string {
	return strings.ToLower(dir.String())
}

// RuleKeyPrefix returns the prefix under which all derived rules are stored.
func RuleKeyPrefix() string {
	return rulePrefix
}

// ChainRuleKeyPrefix returns the prefix of all chain rules of one interface
// tag and direction.
func ChainRuleKeyPrefix(dir Direction, portTag uint32) string {
	return fmt.Sprintf("%s%s/%08d/", chainPrefix, DirectionName(dir), portTag)
}

// ChainRuleKey returns the key of the chain rule at the given chain slot.
// Keys sort by (interface tag, chain position) within each direction.
func ChainRuleKey(dir Direction, portTag uint32, slot uint32) string {
	return fmt.Sprintf("%s%02d", ChainRuleKeyPrefix(dir, portTag), slot)
}

// SplitHorizonRuleKey returns the key of the split-horizon drop rule
// of an interface.
func SplitHorizonRuleKey(portTag uint32) string {
	return fmt.Sprintf("%s%08d", splitHorizon, portTag)
}

// ClassifierRuleKey returns the key of the classifier rule of an interface.
func ClassifierRuleKey(ifName string) string {
	return classifier + ifName
}

// EgressOutputRuleKey returns the key of the egress output rule of an interface.
func EgressOutputRuleKey(ifName string) string {
	return egressOutput + ifName
}

// TunnelGroupKeyPrefix returns the prefix of all tunnel group records.
func TunnelGroupKeyPrefix() string {
	return groupPrefix
}

// TunnelGroupKey returns the key of the tunnel group record of a logical
// tunnel group interface.
func TunnelGroupKey(groupName string) string {
	return groupPrefix + groupName
}

// AllServiceBindingsKeyPrefix returns the prefix of all service bindings.
func AllServiceBindingsKeyPrefix() string {
	return bindingPrefix
}

// ServiceBindingKeyPrefix returns the prefix of all bindings of an interface.
func ServiceBindingKeyPrefix(ifName string) string {
	return bindingPrefix + ifName + "/"
}

// ServiceBindingKey returns the key of one persisted service binding.
func ServiceBindingKey(ifName string, dir Direction, service string) string {
	return ServiceBindingKeyPrefix(ifName) + DirectionName(dir) + "/" + service
}

// InterfaceStateKeyPrefix returns the prefix of all interface state records.
func InterfaceStateKeyPrefix() string {
	return interfacePrefix
}

// InterfaceStateKey returns the key of the state record of an interface.
func InterfaceStateKey(ifName string) string {
	return interfacePrefix + ifName
}

// CounterKeyPrefix returns the prefix of all counters.
func CounterKeyPrefix() string {
	return counterPrefix
}

// CounterKey returns the key of a per-interface counter.
func CounterKey(ifName, counter string) string {
	return counterPrefix + ifName + "/" + counter
}
