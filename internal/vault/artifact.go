// Artifact (de)serialization for the vault.
//
// The on-disk format is a versioned JSON record. Load refuses any version
// other than FormatVersion instead of best-effort parsing: a vault that is
// misread silently would break the restore guarantee.

package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// artifact is the persisted vault shape.
type artifact struct {
	Version        string          `json:"version"`
	DateOffsetDays int             `json:"dateOffsetDays"`
	Mappings       []MappingRecord `json:"mappings"`
	Statistics     Statistics      `json:"statistics"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Save writes the vault artifact to path. The vault must be frozen first:
// an unfrozen vault has incomplete statistics and must not be treated as a
// batch's final artifact.
func (v *Vault) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.frozen {
		return fmt.Errorf("save %s: vault not frozen", path)
	}

	art := artifact{
		Version:        FormatVersion,
		DateOffsetDays: v.dateOffsetDays,
		Mappings:       v.records,
		Statistics: Statistics{
			DocumentsProcessed: v.docsProcessed,
			TotalReplacements:  len(v.records),
		},
		CreatedAt: v.createdAt,
	}

	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vault: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	return nil
}

// Load reads a frozen vault from a vault artifact. The returned vault is
// read-only: LookupOrCreate fails with ErrFrozen.
func Load(path string) (*Vault, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vault %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a vault artifact from raw JSON.
func Parse(data []byte) (*Vault, error) {
	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode vault: %w", err)
	}
	if art.Version != FormatVersion {
		return nil, fmt.Errorf("version %q: %w", art.Version, ErrUnsupportedVersion)
	}

	v := &Vault{
		frozen:         true,
		docsProcessed:  art.Statistics.DocumentsProcessed,
		dateOffsetDays: art.DateOffsetDays,
		createdAt:      art.CreatedAt,
		records:        art.Mappings,
		forward:        make(map[pairKey]string, len(art.Mappings)),
		reverse:        make(map[string]int, len(art.Mappings)),
		originals:      make(map[string]struct{}, len(art.Mappings)),
	}
	for i, rec := range art.Mappings {
		v.forward[pairKey{original: rec.Original, label: rec.Label}] = rec.Replacement
		v.reverse[rec.Replacement] = i
		v.originals[rec.Original] = struct{}{}
	}
	return v, nil
}
