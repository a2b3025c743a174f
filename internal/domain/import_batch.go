package domain

import "time"

// ImportRecord is one raw row of a rate feed: rate(Base→Quote) = Rate.
type ImportRecord struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
	Rate  string `json:"rate"`
}

// ImportBatch is the raw tabular input of a single import.
type ImportBatch struct {
	Source    string         `json:"source"`
	FetchedAt time.Time      `json:"fetched_at"`
	Records   []ImportRecord `json:"records"`
}

// ArchivedSnapshot is a published snapshot as kept by the archive: its version and the
// direct records it was built from. Rebuilding from Records yields the same rate table.
type ArchivedSnapshot struct {
	Version    uint64         `json:"version"`
	CapturedAt time.Time      `json:"captured_at"`
	Pivot      CurrencyCode   `json:"pivot"`
	Source     string         `json:"source"`
	Records    []ImportRecord `json:"records"`
}

func (a ArchivedSnapshot) Batch() ImportBatch {
	return ImportBatch{Source: a.Source, FetchedAt: a.CapturedAt, Records: a.Records}
}
