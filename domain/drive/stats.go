package drive

// CategoryStats holds a count and byte total for one category
type CategoryStats struct {
	Count int
	Bytes int64
}

// ListingStats aggregates a listing by category
type ListingStats struct {
	TotalFiles int
	TotalBytes int64
	ByCategory map[Category]CategoryStats
}

// ComputeStats recomputes aggregates from scratch; callers never patch a
// previous result incrementally.
func ComputeStats(files []File) ListingStats {
	stats := ListingStats{
		TotalFiles: len(files),
		ByCategory: map[Category]CategoryStats{
			CategoryDocument: {},
			CategoryImage:    {},
			CategoryVideo:    {},
			CategoryOther:    {},
		},
	}

	for _, f := range files {
		stats.TotalBytes += f.Size
		c := stats.ByCategory[f.Category()]
		c.Count++
		c.Bytes += f.Size
		stats.ByCategory[f.Category()] = c
	}

	return stats
}
