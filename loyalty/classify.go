package loyalty

import (
	"sort"
	"strings"
)

// Visit classifies a customer by how often they have ordered.
type Visit string

const (
	VisitNew    Visit = "new"
	VisitRepeat Visit = "repeat"
)

// Classify returns VisitNew for exactly one order and VisitRepeat otherwise.
// A zero-order entry (only possible through a manual add) counts as repeat.
func Classify(c Customer) Visit {
	if c.TotalOrders == 1 {
		return VisitNew
	}
	return VisitRepeat
}

// IsInvalidPhone reports whether the phone is not exactly 10 ASCII digits.
// This is a read-time audit flag; such customers are still aggregated and
// can redeem rewards.
func IsInvalidPhone(c Customer) bool {
	if len(c.Phone) != 10 {
		return true
	}
	for i := 0; i < len(c.Phone); i++ {
		if c.Phone[i] < '0' || c.Phone[i] > '9' {
			return true
		}
	}
	return false
}

// WrongNumbers returns the customers with an invalid phone, in directory order.
func WrongNumbers(directory []Customer) []Customer {
	out := []Customer{}
	for _, c := range directory {
		if IsInvalidPhone(c) {
			out = append(out, c)
		}
	}
	return out
}

// VisitCounts is the number of new and repeat customers.
type VisitCounts struct {
	New    int `json:"new"`
	Repeat int `json:"repeat"`
}

// CountVisits tallies Classify over the directory.
func CountVisits(directory []Customer) VisitCounts {
	var vc VisitCounts
	for _, c := range directory {
		if Classify(c) == VisitNew {
			vc.New++
		} else {
			vc.Repeat++
		}
	}
	return vc
}

// VisitBucket is one bar of the visit frequency chart.
type VisitBucket struct {
	Visits    int `json:"visits"`
	Customers int `json:"customers"`
}

// VisitFrequencyHistogram groups customers by exact order count,
// ascending by count.
func VisitFrequencyHistogram(directory []Customer) []VisitBucket {
	counts := make(map[int]int)
	for _, c := range directory {
		counts[c.TotalOrders]++
	}
	buckets := make([]VisitBucket, 0, len(counts))
	for visits, n := range counts {
		buckets = append(buckets, VisitBucket{Visits: visits, Customers: n})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Visits < buckets[j].Visits })
	return buckets
}

// Search returns customers whose name or phone contains query
// (case-insensitive), sorted by total orders descending. Ties keep
// directory order.
func Search(directory []Customer, query string) []Customer {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Customer, 0, len(directory))
	for _, c := range directory {
		if q == "" ||
			strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Phone), q) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalOrders > out[j].TotalOrders })
	return out
}
