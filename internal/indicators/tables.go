package indicators

import (
	"strconv"
)

// Conversion of typed indicator rows into persistable tables. Bucket columns
// are named after the frequency so a consumer can tell apart outputs of the
// same indicator at different granularities; null numeric cells stay empty.

func formatFloatCell(value float64, precision int) string {
	if isNull(value) {
		return ""
	}
	return strconv.FormatFloat(value, 'f', precision, 64)
}

func regionBucketCountTable(rows []RegionBucketCount, frequency Frequency) *Table {
	t := &Table{Columns: []string{frequency.String(), "region", "count"}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.Bucket.Format(frequency.Layout()),
			row.Region,
			strconv.Itoa(row.Count),
		})
	}
	return t
}

func activeShareTable(rows []ActiveShareRow, frequency Frequency) *Table {
	t := &Table{Columns: []string{frequency.String(), "region", "count", "percent_active"}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.Bucket.Format(frequency.Layout()),
			row.Region,
			strconv.Itoa(row.Count),
			formatFloatCell(row.PercentActive, 6),
		})
	}
	return t
}

func connectionTable(rows []ConnectionRow) *Table {
	t := &Table{Columns: []string{"connection_date", "region_from", "region_to", "od_count"}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.Date.Format(FrequencyDay.Layout()),
			row.RegionFrom,
			row.RegionTo,
			strconv.Itoa(row.Count),
		})
	}
	return t
}

func flowDurationTable(rows []FlowDurationRow, frequency Frequency) *Table {
	t := &Table{Columns: []string{
		frequency.String(), "region", "region_lag",
		"total_duration", "avg_duration", "count", "stddev_duration",
	}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.Bucket.Format(frequency.Layout()),
			row.RegionTo,
			row.RegionFrom,
			formatFloatCell(row.TotalDuration, 1),
			formatFloatCell(row.AvgDuration, 4),
			strconv.Itoa(row.Count),
			formatFloatCell(row.StddevDuration, 4),
		})
	}
	return t
}

func flowDurationBothTable(rows []FlowDurationBothRow, frequency Frequency) *Table {
	t := &Table{Columns: []string{
		frequency.String(), "region", "region_lag",
		"total_duration_destination", "avg_duration_destination", "count_destination", "stddev_duration_destination",
		"total_duration_origin", "avg_duration_origin", "count_origin", "stddev_duration_origin",
	}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.Bucket.Format(frequency.Layout()),
			row.RegionTo,
			row.RegionFrom,
			formatFloatCell(row.TotalDurationDestination, 1),
			formatFloatCell(row.AvgDurationDestination, 4),
			strconv.Itoa(row.CountDestination),
			formatFloatCell(row.StddevDurationDestination, 4),
			formatFloatCell(row.TotalDurationOrigin, 1),
			formatFloatCell(row.AvgDurationOrigin, 4),
			strconv.Itoa(row.CountOrigin),
			formatFloatCell(row.StddevDurationOrigin, 4),
		})
	}
	return t
}

func transitionTable(rows []TransitionRow, frequency Frequency) *Table {
	t := &Table{Columns: []string{frequency.String(), "region", "region_lag", "count"}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.Bucket.Format(frequency.Layout()),
			row.RegionTo,
			row.RegionFrom,
			strconv.Itoa(row.Count),
		})
	}
	return t
}

func distanceTable(rows []DistanceRow, frequency Frequency) *Table {
	t := &Table{Columns: []string{"home_region", frequency.String(), "mean_distance", "stdev_distance"}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.HomeRegion,
			row.Bucket.Format(frequency.Layout()),
			formatFloatCell(row.MeanDistance, 4),
			formatFloatCell(row.StddevDistance, 4),
		})
	}
	return t
}

func medianDistanceTable(rows []MedianDistanceRow, frequency Frequency) *Table {
	t := &Table{Columns: []string{frequency.String(), "home_region", "median_distance"}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.Bucket.Format(frequency.Layout()),
			row.HomeRegion,
			formatFloatCell(row.MedianDistance, 4),
		})
	}
	return t
}

func regionAverageTable(rows []RegionAverageRow, frequency Frequency) *Table {
	t := &Table{Columns: []string{"home_region", frequency.String(), "count"}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.HomeRegion,
			row.Bucket.Format(frequency.Layout()),
			formatFloatCell(row.Average, 4),
		})
	}
	return t
}

func homeRegionCountTable(rows []RegionBucketCount, frequency Frequency) *Table {
	t := &Table{Columns: []string{"home_region", frequency.String(), "count"}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.Region,
			row.Bucket.Format(frequency.Layout()),
			strconv.Itoa(row.Count),
		})
	}
	return t
}

func homeLocationCountTable(rows []RegionBucketCount, frequency Frequency) *Table {
	t := &Table{Columns: []string{frequency.String(), "home_region", "count"}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.Bucket.Format(frequency.Layout()),
			row.Region,
			strconv.Itoa(row.Count),
		})
	}
	return t
}

func newSubscriberTable(rows []NewSubscriberRow) *Table {
	t := &Table{Columns: []string{"region", "day", "new_sims", "new_sims_month"}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.Region,
			row.Day.Format(FrequencyDay.Layout()),
			strconv.Itoa(row.NewSims),
			strconv.Itoa(row.NewSims28Day),
		})
	}
	return t
}

func regionRiskTable(rows []RegionRiskRow) *Table {
	t := &Table{Columns: []string{"region", "imported_incidence"}}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.Region,
			formatFloatCell(row.ImportedIncidence, 6),
		})
	}
	return t
}
