/*
report.go - Sales figures for the reports screen

FIGURES:
  Summary:   today / this month / last month totals and counts, and the
             daily average over days that had at least one sale this month
  ItemSales: revenue and quantity per item in a date range, optionally
             restricted to one menu category
  Trend:     per-day sales and item counts for the last N days

All day and month boundaries come from the loyalty.Calendar so reports
agree with the loyalty windows.
*/
package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/streetmagic/pos-engine/loyalty"
)

// Summary is the headline sales report.
type Summary struct {
	TodayTotal       decimal.Decimal `json:"todayTotal"`
	TodayCount       int             `json:"todayCount"`
	MonthTotal       decimal.Decimal `json:"monthTotal"`
	MonthCount       int             `json:"monthCount"`
	LastMonthTotal   decimal.Decimal `json:"lastMonthTotal"`
	LastMonthCount   int             `json:"lastMonthCount"`
	DailyAverage     decimal.Decimal `json:"dailyAverage"`
	TransactionCount int             `json:"transactionCount"`
	TodayByItem      []ItemSale      `json:"todayByItem"`
}

// ItemSale is revenue and quantity for one item name.
type ItemSale struct {
	Name     string          `json:"name"`
	Quantity int             `json:"qty"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Summarize computes the headline report as of now.
func Summarize(ledger []loyalty.Order, cal loyalty.Calendar, now time.Time) Summary {
	local := cal.In(now)
	year, month := local.Year(), local.Month()
	lastYear, lastMonth := loyalty.PreviousMonth(year, month)
	today := cal.Today(now)

	s := Summary{
		TodayTotal:       decimal.Zero,
		MonthTotal:       decimal.Zero,
		LastMonthTotal:   decimal.Zero,
		DailyAverage:     decimal.Zero,
		TransactionCount: len(ledger),
	}
	daysWithSales := make(map[string]bool)

	for _, o := range ledger {
		if o.PlacedAt.IsZero() {
			continue
		}
		if cal.DateKey(o.PlacedAt) == today {
			s.TodayTotal = s.TodayTotal.Add(o.Total)
			s.TodayCount++
		}
		if cal.InMonth(o.PlacedAt, year, month) {
			s.MonthTotal = s.MonthTotal.Add(o.Total)
			s.MonthCount++
			daysWithSales[cal.DateKey(o.PlacedAt)] = true
		}
		if cal.InMonth(o.PlacedAt, lastYear, lastMonth) {
			s.LastMonthTotal = s.LastMonthTotal.Add(o.Total)
			s.LastMonthCount++
		}
	}
	if len(daysWithSales) > 0 {
		s.DailyAverage = s.MonthTotal.Div(decimal.NewFromInt(int64(len(daysWithSales)))).Round(2)
	}
	s.TodayByItem = tallyItems(cal.DayWindow(ledger, today), "")
	return s
}

// RangeReport is item sales over a date range.
type RangeReport struct {
	Items        []ItemSale      `json:"items"`
	Sales        decimal.Decimal `json:"sales"`
	Transactions int             `json:"transactions"`
	DailyAverage decimal.Decimal `json:"dailyAverage"`
}

// ItemSales reports orders placed in [from, to]. Zero bounds are open.
// With a category, only matching items count and only orders containing
// one are included in the sales total.
func ItemSales(ledger []loyalty.Order, cal loyalty.Calendar, from, to time.Time, category string) RangeReport {
	r := RangeReport{Sales: decimal.Zero, DailyAverage: decimal.Zero}
	var window []loyalty.Order
	days := make(map[string]bool)
	for _, o := range ledger {
		if o.PlacedAt.IsZero() {
			continue
		}
		if !from.IsZero() && o.PlacedAt.Before(from) {
			continue
		}
		if !to.IsZero() && o.PlacedAt.After(to) {
			continue
		}
		days[cal.DateKey(o.PlacedAt)] = true
		if category != "" && !hasCategory(o, category) {
			continue
		}
		window = append(window, o)
		r.Sales = r.Sales.Add(o.Total)
		r.Transactions++
	}
	r.Items = tallyItems(window, category)
	if len(days) > 0 {
		r.DailyAverage = r.Sales.Div(decimal.NewFromInt(int64(len(days)))).Round(2)
	}
	return r
}

func hasCategory(o loyalty.Order, category string) bool {
	for _, it := range o.Items {
		if it.Category == category {
			return true
		}
	}
	return false
}

// tallyItems sums quantity and revenue per item name in first-seen order.
func tallyItems(window []loyalty.Order, category string) []ItemSale {
	index := make(map[string]int)
	out := []ItemSale{}
	for _, o := range window {
		for _, it := range o.Items {
			if category != "" && it.Category != category {
				continue
			}
			name := it.Name
			if name == "" {
				name = loyalty.UnnamedItem
			}
			i, ok := index[name]
			if !ok {
				i = len(out)
				index[name] = i
				out = append(out, ItemSale{Name: name, Revenue: decimal.Zero})
			}
			out[i].Quantity += it.Quantity
			out[i].Revenue = out[i].Revenue.Add(it.LineTotal())
		}
	}
	return out
}

// TrendPoint is one day of the trend chart.
type TrendPoint struct {
	Date  string          `json:"date"`
	Sales decimal.Decimal `json:"sales"`
	Items int             `json:"items"`
}

// Trend returns one point per day for the last days days ending today,
// oldest first. Days without sales are zero.
func Trend(ledger []loyalty.Order, cal loyalty.Calendar, now time.Time, days int) []TrendPoint {
	if days <= 0 {
		return []TrendPoint{}
	}
	local := cal.In(now)
	points := make([]TrendPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		key := local.AddDate(0, 0, i-days+1).Format(loyalty.DateKeyLayout)
		points[i] = TrendPoint{Date: key, Sales: decimal.Zero}
		index[key] = i
	}
	for _, o := range ledger {
		i, ok := index[cal.DateKey(o.PlacedAt)]
		if !ok {
			continue
		}
		points[i].Sales = points[i].Sales.Add(o.Total)
		for _, it := range o.Items {
			points[i].Items += it.Quantity
		}
	}
	return points
}
