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

// Package tag packs the interface identifier, the chain position and flag
// bits into the 32-bit metadata register carried by packets between tables.
//
// Register layout:
//
//	 31      28 27                            8 7        0
//	+----------+-------------------------------+----------+
//	|  index   |           port tag            |  flags   |
//	+----------+-------------------------------+----------+
//
// Chain index 15 is reserved for the terminal tag, chain slots are 0..14.
package tag

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	flagBits  = 8
	portBits  = 20
	indexBits = 4

	portShift  = flagBits
	indexShift = flagBits + portBits

	flagMask  uint32 = (1 << flagBits) - 1
	portMask  uint32 = ((1 << portBits) - 1) << portShift
	indexMask uint32 = ((1 << indexBits) - 1) << indexShift

	// MaxPortTag is the highest port tag that fits into the register.
	MaxPortTag uint32 = (1 << portBits) - 1

	// TerminalIndex is the chain index written by the last service of a chain.
	TerminalIndex uint32 = (1 << indexBits) - 1

	// MaxChainLength is the maximum number of services in one chain.
	MaxChainLength = int(TerminalIndex)
)

// Flags is a bit set stored in the low byte of the register.
type Flags uint32

const (
	// SplitHorizon marks traffic received from an external tunnel.
	SplitHorizon Flags = 1 << 0

	knownFlags = SplitHorizon
)

var (
	// ErrTagSpaceExhausted is returned when a chain index does not fit
	// into the index field.
	ErrTagSpaceExhausted = errors.New("tag space exhausted: too many services in one chain")

	// ErrInvalidPortTag is returned for a zero or too large port tag.
	ErrInvalidPortTag = errors.New("invalid port tag")

	// ErrUnknownFlags is returned when reserved flag bits are set.
	ErrUnknownFlags = errors.New("unknown tag flags")
)

// Fields are the decoded parts of a tag.
type Fields struct {
	PortTag    uint32
	ChainIndex uint32
	Flags      Flags
}

// Terminal returns true if the tag carries the terminal chain index.
func (f Fields) Terminal() bool {
	return f.ChainIndex == TerminalIndex
}

func (f Fields) String() string {
	idx := fmt.Sprintf("%d", f.ChainIndex)
	if f.Terminal() {
		idx = "terminal"
	}
	return fmt.Sprintf("<port-tag:%d index:%s flags:%#x>", f.PortTag, idx, uint32(f.Flags))
}

// Encode packs the port tag, chain index and flags into a register value
// and the mask covering exactly the written bit ranges: the port tag and
// index fields, and only those flag bits that are set.
func Encode(portTag, chainIndex uint32, flags Flags) (value, mask uint32, err error) {
	if portTag == 0 || portTag > MaxPortTag {
		return 0, 0, errors.Wrapf(ErrInvalidPortTag, "port tag %d", portTag)
	}
	if chainIndex > TerminalIndex {
		return 0, 0, errors.Wrapf(ErrTagSpaceExhausted, "chain index %d", chainIndex)
	}
	if flags&^knownFlags != 0 {
		return 0, 0, errors.Wrapf(ErrUnknownFlags, "flags %#x", uint32(flags))
	}
	value = portTag<<portShift | chainIndex<<indexShift | uint32(flags)
	mask = portMask | indexMask | uint32(flags)
	return value, mask, nil
}

// Decode unpacks a register value.
func Decode(value uint32) Fields {
	return Fields{
		PortTag:    (value & portMask) >> portShift,
		ChainIndex: (value & indexMask) >> indexShift,
		Flags:      Flags(value & flagMask),
	}
}

// Terminal returns the value and mask of the terminal tag of a port.
// The caller is responsible for passing a valid port tag.
func Terminal(portTag uint32) (value, mask uint32) {
	return portTag<<portShift | TerminalIndex<<indexShift, portMask | indexMask
}

// Port returns the value and mask matching any tag of the given port,
// regardless of the chain index and flags.
func Port(portTag uint32) (value, mask uint32) {
	return portTag << portShift, portMask
}
