package climate

import (
	"sort"
)

type recordKey struct {
	municipality string
	crop         string
	decile       int
}

// Dataset is an immutable, indexed climate/risk table.
type Dataset struct {
	records []Record
	index   map[recordKey]int
	// crops keeps each municipality's crops in first-seen order, which is
	// the enumeration order of a recommendation run.
	crops map[string][]string
}

// NewDataset indexes records. When several records share a key the first one
// in input order wins, matching a first-row lookup over the source table.
func NewDataset(records []Record) *Dataset {
	ds := &Dataset{
		records: make([]Record, 0, len(records)),
		index:   make(map[recordKey]int, len(records)),
		crops:   make(map[string][]string),
	}

	seenCrop := make(map[[2]string]struct{})
	for _, r := range records {
		cropKey := [2]string{r.Municipality, r.Crop}
		if _, ok := seenCrop[cropKey]; !ok {
			seenCrop[cropKey] = struct{}{}
			ds.crops[r.Municipality] = append(ds.crops[r.Municipality], r.Crop)
		}

		k := recordKey{r.Municipality, r.Crop, r.Decile}
		if _, dup := ds.index[k]; dup {
			continue
		}
		ds.index[k] = len(ds.records)
		ds.records = append(ds.records, r)
	}
	return ds
}

// Len returns the number of distinct indexed records.
func (ds *Dataset) Len() int {
	return len(ds.records)
}

// Empty reports whether the dataset holds no records.
func (ds *Dataset) Empty() bool {
	return ds == nil || len(ds.records) == 0
}

// Lookup resolves (municipality, crop, decile). It never fails: when no record
// matches it returns the out-of-window fallback.
func (ds *Dataset) Lookup(municipality, crop string, decile int) Lookup {
	if ds != nil {
		if i, ok := ds.index[recordKey{municipality, crop, decile}]; ok {
			r := ds.records[i]
			return Lookup{
				Record:       r,
				InWindow:     true,
				ClimateLabel: ClimateLabel(r.RainfallMm),
			}
		}
	}
	return Fallback(municipality, crop, decile)
}

// Municipalities returns every municipality in the table, sorted.
func (ds *Dataset) Municipalities() []string {
	if ds == nil {
		return nil
	}
	out := make([]string, 0, len(ds.crops))
	for m := range ds.crops {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Crops returns the crops grown historically in the municipality, in
// first-seen order. Unknown municipalities yield an empty slice.
func (ds *Dataset) Crops(municipality string) []string {
	if ds == nil {
		return nil
	}
	src := ds.crops[municipality]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// BestWindow returns the lowest-risk record for the crop in the municipality.
// Ties resolve to the earliest decile. ok is false when the pair has no rows.
func (ds *Dataset) BestWindow(municipality, crop string) (Record, bool) {
	var (
		best  Record
		found bool
	)
	if ds == nil {
		return best, false
	}
	for _, r := range ds.records {
		if r.Municipality != municipality || r.Crop != crop {
			continue
		}
		if !found || r.RiskScore < best.RiskScore ||
			(r.RiskScore == best.RiskScore && r.Decile < best.Decile) {
			best = r
			found = true
		}
	}
	return best, found
}
