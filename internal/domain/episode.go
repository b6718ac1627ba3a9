package domain

// ManifestEntry is one row of the episode manifest.
// Columns holds every column of the row, including the well-known ones.
type ManifestEntry struct {
	Row      int // 1-based data row number (header excluded)
	FileName string
	Season   string
	Episode  string
	Columns  map[string]string
	Order    []string // column names in header order
}

// ExtractStatus is the outcome of one manifest entry.
type ExtractStatus string

const (
	ExtractStatusProcessed ExtractStatus = "processed"
	ExtractStatusSkipped   ExtractStatus = "skipped"
	ExtractStatusError     ExtractStatus = "error"
	ExtractStatusIgnored   ExtractStatus = "ignored"
)
