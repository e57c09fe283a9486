package usecase

import "sort"

// LabelCount is one entry of the top-brand ranking.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// StatsSummary represents aggregated recognition insights.
type StatsSummary struct {
	TotalFiles       int          `json:"total_files"`
	ProcessedFiles   int          `json:"processed_files"`
	UnprocessedFiles int          `json:"unprocessed_files"`
	TopBrands        []LabelCount `json:"top_brands"`
}

const topBrandLimit = 10

// GetStats aggregates ledger records: counts by processed state and the most
// frequent first-ranked labels.
func (uc *RecognitionUseCase) GetStats() (*StatsSummary, error) {
	records, err := uc.ledger.GetAll()
	if err != nil {
		return nil, err
	}

	summary := &StatsSummary{TotalFiles: len(records)}
	counts := make(map[string]int)
	for _, record := range records {
		if record.Processed {
			summary.ProcessedFiles++
		}
		if len(record.Results) > 0 {
			counts[record.Results[0].Label]++
		}
	}
	summary.UnprocessedFiles = summary.TotalFiles - summary.ProcessedFiles

	brands := make([]LabelCount, 0, len(counts))
	for label, count := range counts {
		brands = append(brands, LabelCount{Label: label, Count: count})
	}
	sort.Slice(brands, func(i, j int) bool {
		if brands[i].Count != brands[j].Count {
			return brands[i].Count > brands[j].Count
		}
		return brands[i].Label < brands[j].Label
	})
	if len(brands) > topBrandLimit {
		brands = brands[:topBrandLimit]
	}
	summary.TopBrands = brands

	return summary, nil
}
