package metrics

import (
	"sort"
	"strconv"
)

// StatusBucket represents how many samples of an endpoint ended with a
// given status code.
type StatusBucket struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Code     string `json:"code" yaml:"code"`
	Count    int    `json:"count" yaml:"count"`
}

// StatusBuckets groups the snapshot's samples by endpoint and status code.
// A status of 0 is reported as "network".
func (s Snapshot) StatusBuckets() map[string]map[string]int {
	if len(s.Samples) == 0 {
		return nil
	}
	buckets := make(map[string]map[string]int, len(s.Samples))
	for endpoint, seq := range s.Samples {
		codes := make(map[string]int)
		for _, sample := range seq {
			codes[statusLabel(sample.Status)]++
		}
		buckets[endpoint] = codes
	}
	return buckets
}

func statusLabel(status int) string {
	if status == 0 {
		return "network"
	}
	return strconv.Itoa(status)
}

// FlattenStatusBuckets converts a nested endpoint->status map into a sorted slice of StatusBucket rows.
// Rows are sorted by descending count, then by endpoint/code for stability.
func FlattenStatusBuckets(buckets map[string]map[string]int) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0)
	for endpoint, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, StatusBucket{Endpoint: endpoint, Code: code, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Endpoint == rows[j].Endpoint {
				return rows[i].Code < rows[j].Code
			}
			return rows[i].Endpoint < rows[j].Endpoint
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
