package migration

import (
	"context"
	"fmt"

	"github.com/kalambet/jobtrail/internal/records"
)

// DataVersion is the schema generation the stored data appears to be at.
type DataVersion string

const (
	DataNone DataVersion = "none"
	DataV1   DataVersion = "v1"
	DataV2   DataVersion = "v2"
)

// DetectDataVersion inspects the store without writing to it.
//
// The data is v2 when the version marker is 2, or when postings exist and no
// marker was ever written. It is v1 when a legacy key holds records and the v2
// test failed. Anything else, a marker of 3 included, is none. The answer is
// a diagnostic and can disagree with what RunIfNeeded would decide.
func (m *Migrator) DetectDataVersion(ctx context.Context) (DataVersion, error) {
	version, recorded, err := m.registry.marker(ctx)
	if err != nil {
		return DataNone, err
	}

	keys := append([]string{records.KeyPostings}, m.legacyKeys...)
	vals, err := m.store.Get(ctx, keys...)
	if err != nil {
		return DataNone, fmt.Errorf("reading stored data: %w", err)
	}

	postings, err := records.DecodeList[records.Posting](vals[records.KeyPostings])
	if err != nil {
		return DataNone, fmt.Errorf("postings: %w", err)
	}
	if (recorded && version == 2) || (!recorded && len(postings) > 0) {
		return DataV2, nil
	}

	key, _, err := m.findLegacy(vals)
	if err != nil {
		return DataNone, err
	}
	if key != "" {
		return DataV1, nil
	}
	return DataNone, nil
}
