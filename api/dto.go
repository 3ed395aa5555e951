/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types that
  already carry JSON tags (loyalty.CustomerView, loyalty.Order,
  orders.Page, orders.Summary) are returned as-is; only requests and
  wrappers live here.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

LENIENT NUMBERS:
  Numeric request fields are typed `any`. The POS forms never validated
  numbers, so "12", 12 and 12.0 are all accepted and garbage becomes the
  field default via loyalty.ParseAmount / loyalty.ParseQuantity.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/streetmagic/pos-engine/loyalty"
	"github.com/streetmagic/pos-engine/menu"
	"github.com/streetmagic/pos-engine/orders"
	"github.com/streetmagic/pos-engine/purchases"
)

// =============================================================================
// CUSTOMER DTOs
// =============================================================================

// CustomerListResponse is the customers screen payload.
type CustomerListResponse struct {
	Customers []loyalty.CustomerView `json:"customers"`
	Count     int                    `json:"count"`
}

// CreateCustomerRequest is a manual directory entry.
type CreateCustomerRequest struct {
	Phone       string `json:"phone"`
	Name        string `json:"name"`
	TotalOrders any    `json:"totalOrders,omitempty"`
	Amount      any    `json:"amount,omitempty"`
}

func (r CreateCustomerRequest) toCustomer() loyalty.Customer {
	return loyalty.Customer{
		Phone:       r.Phone,
		Name:        r.Name,
		TotalOrders: loyalty.ParseQuantity(r.TotalOrders, 0),
		TotalAmount: loyalty.ParseAmount(r.Amount),
	}
}

// UpdateCustomerRequest edits a directory entry. Omitted fields are kept.
type UpdateCustomerRequest struct {
	Phone       *string `json:"phone,omitempty"`
	Name        *string `json:"name,omitempty"`
	TotalOrders any     `json:"totalOrders,omitempty"`
	Amount      any     `json:"amount,omitempty"`
}

func (r UpdateCustomerRequest) toUpdate() loyalty.CustomerUpdate {
	upd := loyalty.CustomerUpdate{Phone: r.Phone, Name: r.Name}
	if r.TotalOrders != nil {
		n := loyalty.ParseQuantity(r.TotalOrders, 0)
		upd.TotalOrders = &n
	}
	if r.Amount != nil {
		amt := loyalty.ParseAmount(r.Amount)
		upd.TotalAmount = &amt
	}
	return upd
}

// SyncResponse reports a reconciliation.
type SyncResponse struct {
	Customers int `json:"customers"`
}

// =============================================================================
// ORDER DTOs
// =============================================================================

// LineItemRequest is one item in an order request.
type LineItemRequest struct {
	Name     string `json:"name"`
	Variant  string `json:"variant,omitempty"`
	Category string `json:"category,omitempty"`
	Qty      any    `json:"qty"`
	Price    any    `json:"price"`
}

func toLineItems(reqs []LineItemRequest) []loyalty.LineItem {
	items := make([]loyalty.LineItem, len(reqs))
	for i, r := range reqs {
		items[i] = loyalty.LineItem{
			Name:      r.Name,
			Variant:   r.Variant,
			Category:  r.Category,
			Quantity:  loyalty.ParseQuantity(r.Qty, 1),
			UnitPrice: loyalty.ParseAmount(r.Price),
		}
	}
	return items
}

// CreateOrderRequest is a checkout.
type CreateOrderRequest struct {
	Type           string            `json:"type,omitempty"`
	Table          string            `json:"table,omitempty"`
	CustomerName   string            `json:"customerName,omitempty"`
	CustomerMobile string            `json:"customerMobile,omitempty"`
	Items          []LineItemRequest `json:"items"`
	Discount       any               `json:"discount,omitempty"`
	Total          any               `json:"total,omitempty"`
	Date           string            `json:"date,omitempty"`
}

func (r CreateOrderRequest) toDraft(cal loyalty.Calendar) (orders.Draft, error) {
	placed, err := parseDate(r.Date, cal)
	if err != nil {
		return orders.Draft{}, err
	}
	d := orders.Draft{
		Type:          loyalty.OrderType(strings.TrimSpace(r.Type)),
		Table:         r.Table,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerMobile,
		Items:         toLineItems(r.Items),
		Discount:      loyalty.ParseAmount(r.Discount),
		PlacedAt:      placed,
	}
	if r.Total != nil {
		total := loyalty.ParseAmount(r.Total)
		d.Total = &total
	}
	return d, nil
}

// UpdateOrderRequest edits an order. Omitted fields are kept.
type UpdateOrderRequest struct {
	Items          []LineItemRequest `json:"items,omitempty"`
	CustomerName   *string           `json:"customerName,omitempty"`
	CustomerMobile *string           `json:"customerMobile,omitempty"`
	Date           *string           `json:"date,omitempty"`
}

func (r UpdateOrderRequest) toEdit(cal loyalty.Calendar) (orders.Edit, error) {
	e := orders.Edit{
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerMobile,
	}
	if r.Items != nil {
		e.Items = toLineItems(r.Items)
	}
	if r.Date != nil {
		placed, err := parseDate(*r.Date, cal)
		if err != nil {
			return orders.Edit{}, err
		}
		e.PlacedAt = &placed
	}
	return e, nil
}

// SoldItemsResponse is the sold-items modal for one day.
type SoldItemsResponse struct {
	Date       string                 `json:"date"`
	Items      []loyalty.ItemQuantity `json:"items"`
	BestSeller *loyalty.ItemQuantity  `json:"bestSeller,omitempty"`
}

// =============================================================================
// REPORT DTOs
// =============================================================================

// TrendResponse is the report trend chart series.
type TrendResponse struct {
	Days   int                 `json:"days"`
	Points []orders.TrendPoint `json:"points"`
	Sales  decimal.Decimal     `json:"sales"`
}

// =============================================================================
// MENU DTOs
// =============================================================================

// VariantRequest is one size or portion of a menu item.
type VariantRequest struct {
	Qty   string `json:"qty"`
	Price any    `json:"price"`
}

// MenuItemRequest creates or replaces a menu item.
type MenuItemRequest struct {
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	Subcategory string           `json:"subcategory"`
	Variants    []VariantRequest `json:"variants,omitempty"`
	Price       any              `json:"price,omitempty"`
}

func (r MenuItemRequest) toItem() menu.Item {
	it := menu.Item{
		Name:        r.Name,
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Price:       loyalty.ParseAmount(r.Price),
	}
	for _, v := range r.Variants {
		it.Variants = append(it.Variants, menu.Variant{Label: v.Qty, Price: loyalty.ParseAmount(v.Price)})
	}
	return it
}

// MenuListResponse is the menu screen payload.
type MenuListResponse struct {
	Items []menu.Item `json:"items"`
	Count int         `json:"count"`
}

// =============================================================================
// PURCHASE DTOs
// =============================================================================

// PurchaseRequest records or replaces a purchase.
type PurchaseRequest struct {
	Item     string `json:"item"`
	Category string `json:"category,omitempty"`
	Qty      any    `json:"qty"`
	Price    any    `json:"price"`
	Date     string `json:"date,omitempty"`
}

func (r PurchaseRequest) toEntry(cal loyalty.Calendar) (purchases.Entry, error) {
	date, err := parseDate(r.Date, cal)
	if err != nil {
		return purchases.Entry{}, err
	}
	return purchases.Entry{
		Item:      r.Item,
		Category:  r.Category,
		Quantity:  loyalty.ParseQuantity(r.Qty, 0),
		UnitPrice: loyalty.ParseAmount(r.Price),
		Date:      date,
	}, nil
}

// PurchaseListResponse is the purchase log with its filtered total.
type PurchaseListResponse struct {
	Purchases []purchases.Purchase `json:"purchases"`
	Count     int                  `json:"count"`
	Total     decimal.Decimal      `json:"total"`
	Months    []string             `json:"months"`
}

// ProductRequest names an inventory product.
type ProductRequest struct {
	Name string `json:"name"`
}

// InventoryResponse is the inventory screen payload.
type InventoryResponse struct {
	Products []purchases.Product `json:"products"`
	Count    int                 `json:"count"`
}

// =============================================================================
// SCENARIO DTOs
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// parseDate accepts RFC 3339 timestamps and YYYY-MM-DD days (midnight in
// the calendar's zone). Empty input is the zero time.
func parseDate(v string, cal loyalty.Calendar) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(loyalty.DateKeyLayout, v, cal.Zone()); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", v)
}
