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

package reconciler

import (
	"github.com/pkg/errors"

	"github.com/contiv/ifmgr/plugins/idalloc/idallocation"
	"github.com/contiv/ifmgr/plugins/ifmgr/tag"
)

const (
	// PortTagPool is the name of the ID pool with port tags.
	PortTagPool = "port-tags"

	// GroupIDPool is the name of the ID pool with tunnel group IDs.
	GroupIDPool = "group-ids"
)

// Config describes the table pipeline the rules are installed into
// and the ranges of the allocated identifiers.
type Config struct {
	// tables
	ClassifierTable  uint32 `json:"classifier-table"`
	IngressTable     uint32 `json:"ingress-table"`
	IngressNextTable uint32 `json:"ingress-next-table"`
	EgressTable      uint32 `json:"egress-table"`
	EgressNextTable  uint32 `json:"egress-next-table"`

	// rule priorities
	ClassifierPriority       uint32 `json:"classifier-priority"`
	ChainRulePriority        uint32 `json:"chain-rule-priority"`
	SplitHorizonRulePriority uint32 `json:"split-horizon-rule-priority"`
	EgressOutputPriority     uint32 `json:"egress-output-priority"`

	// identifier pools
	PortTagPool PoolRange `json:"port-tag-pool"`
	GroupIDPool PoolRange `json:"group-id-pool"`
}

// PoolRange is an inclusive range of identifiers.
type PoolRange struct {
	Min uint32 `json:"min"`
	Max uint32 `json:"max"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		ClassifierTable:          0,
		IngressTable:             10,
		IngressNextTable:         20,
		EgressTable:              30,
		EgressNextTable:          40,
		ClassifierPriority:       100,
		ChainRulePriority:        100,
		SplitHorizonRulePriority: 200,
		EgressOutputPriority:     100,
		PortTagPool:              PoolRange{Min: 1, Max: tag.MaxPortTag},
		GroupIDPool:              PoolRange{Min: 1, Max: 65535},
	}
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	tables := map[uint32]string{}
	for name, table := range map[string]uint32{
		"classifier": c.ClassifierTable,
		"ingress":    c.IngressTable,
		"egress":     c.EgressTable,
	} {
		if other, dup := tables[table]; dup {
			return errors.Errorf("%s and %s rules share table %d", name, other, table)
		}
		tables[table] = name
	}
	if c.SplitHorizonRulePriority <= c.ChainRulePriority {
		return errors.Errorf("split-horizon rule priority (%d) must be higher than chain rule priority (%d)",
			c.SplitHorizonRulePriority, c.ChainRulePriority)
	}
	if c.PortTagPool.Min == 0 || c.PortTagPool.Max < c.PortTagPool.Min || c.PortTagPool.Max > tag.MaxPortTag {
		return errors.Errorf("invalid port tag pool %d-%d (allowed 1-%d)",
			c.PortTagPool.Min, c.PortTagPool.Max, tag.MaxPortTag)
	}
	if c.GroupIDPool.Min == 0 || c.GroupIDPool.Max < c.GroupIDPool.Min {
		return errors.Errorf("invalid group ID pool %d-%d", c.GroupIDPool.Min, c.GroupIDPool.Max)
	}
	return nil
}

// PoolRange converts the range into the allocation pool range.
func (r PoolRange) PoolRange() *idallocation.AllocationPool_Range {
	return &idallocation.AllocationPool_Range{MinId: r.Min, MaxId: r.Max}
}
