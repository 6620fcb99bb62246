// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MemoryFootprint describes the memory consumption of a storage component
// and its sub-components.
type MemoryFootprint struct {
	value    uintptr
	children map[string]*MemoryFootprint
}

func NewMemoryFootprint(value uintptr) *MemoryFootprint {
	return &MemoryFootprint{
		value:    value,
		children: make(map[string]*MemoryFootprint),
	}
}

// AddChild attaches the footprint of a named sub-component.
func (mf *MemoryFootprint) AddChild(name string, child *MemoryFootprint) {
	mf.children[name] = child
}

// GetChild returns the footprint of the named sub-component, or nil.
func (mf *MemoryFootprint) GetChild(name string) *MemoryFootprint {
	return mf.children[name]
}

// Value provides the number of bytes consumed by the component itself.
func (mf *MemoryFootprint) Value() uintptr {
	return mf.value
}

// Total provides the number of bytes consumed by the component including all
// its sub-components. Shared sub-components are counted once.
func (mf *MemoryFootprint) Total() uintptr {
	return mf.total(map[*MemoryFootprint]bool{})
}

func (mf *MemoryFootprint) total(seen map[*MemoryFootprint]bool) uintptr {
	if seen[mf] {
		return 0
	}
	seen[mf] = true
	res := mf.value
	for _, child := range mf.children {
		res += child.total(seen)
	}
	return res
}

// String renders the footprint as a tree, one line per component ordered by
// name.
func (mf *MemoryFootprint) String() string {
	var sb strings.Builder
	mf.write(&sb, ".")
	return sb.String()
}

func (mf *MemoryFootprint) write(sb *strings.Builder, path string) {
	sb.WriteString(memoryAmountToString(mf.Total()))
	sb.WriteRune(' ')
	sb.WriteString(path)
	sb.WriteRune('\n')
	names := maps.Keys(mf.children)
	slices.Sort(names)
	for _, name := range names {
		mf.children[name].write(sb, path+"/"+name)
	}
}

func memoryAmountToString(bytes uintptr) string {
	const unit = 1024
	const prefixes = "KMGTPE"
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp+1 < len(prefixes); n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), prefixes[exp])
}
