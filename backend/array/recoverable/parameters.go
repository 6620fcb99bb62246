// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package recoverable

import (
	"fmt"

	"github.com/Fantom-foundation/Carmen-array/go/backend/utils"
	"github.com/Fantom-foundation/Carmen-array/go/common"
)

// LogVariant selects the storage of the redo log.
type LogVariant string

const (
	// FileLog keeps every segment in a file of its own.
	FileLog LogVariant = "file"
	// LevelDbLog keeps segments in a LevelDB instance.
	LevelDbLog LogVariant = "ldb"
)

const (
	DefaultEntrySize     = 10000
	DefaultMaxEntries    = 5
	DefaultRetainEntries = 0
)

// UnsupportedConfiguration is the error returned if unsupported configuration
// parameters have been specified.
const UnsupportedConfiguration = common.ConstError("unsupported configuration")

// Parameters configure a recoverable array. Zero values are replaced by the
// defaults when the array is created.
type Parameters struct {
	Directory     string        `json:"directory"`
	Length        int           `json:"length"`
	EntrySize     int           `json:"entrySize,omitempty"`     // values per entry
	MaxEntries    int           `json:"maxEntries,omitempty"`    // pending entries triggering an apply
	RetainEntries int           `json:"retainEntries,omitempty"` // applied segments kept in the log
	LogVariant    LogVariant    `json:"logVariant,omitempty"`
	Logger        common.Logger `json:"-"`
}

// LoadParameters reads parameters from a JSON file. The logger needs to be
// set by the caller.
func LoadParameters(path string) (Parameters, error) {
	params, err := utils.ReadJsonFile[Parameters](path)
	if err != nil {
		return Parameters{}, fmt.Errorf("failed to read parameters from %s: %w", path, err)
	}
	return params, nil
}

// withDefaults enforces default values and checks the parameters.
func (p Parameters) withDefaults() (Parameters, error) {
	if p.EntrySize == 0 {
		p.EntrySize = DefaultEntrySize
	}
	if p.MaxEntries == 0 {
		p.MaxEntries = DefaultMaxEntries
	}
	if p.LogVariant == "" {
		p.LogVariant = FileLog
	}
	if p.Logger == nil {
		p.Logger = common.NopLogger{}
	}
	if p.Directory == "" {
		return p, fmt.Errorf("%w: no directory specified", UnsupportedConfiguration)
	}
	if p.Length < 0 {
		return p, fmt.Errorf("%w: negative length %d", UnsupportedConfiguration, p.Length)
	}
	if p.EntrySize < 0 || p.MaxEntries < 0 || p.RetainEntries < 0 {
		return p, fmt.Errorf("%w: negative entry limits", UnsupportedConfiguration)
	}
	if p.LogVariant != FileLog && p.LogVariant != LevelDbLog {
		return p, fmt.Errorf("%w: unknown log variant %q", UnsupportedConfiguration, p.LogVariant)
	}
	return p, nil
}
