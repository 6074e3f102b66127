package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
)

type MealItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

type Meal struct {
	Day      string     `json:"day"`
	MealType MealType   `json:"meal_type"`
	Items    []MealItem `json:"items"`
}

type ResidentMeals struct {
	ResidentID   string `json:"resident_id"`
	ResidentName string `json:"resident_name"`
	RoomNumber   string `json:"room_number"`
	Meals        []Meal `json:"meals"`
}

type OrderTotals struct {
	TotalMeals int             `json:"total_meals"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
}

type NursingHomeOrder struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	FacilityID      uuid.UUID       `db:"facility_id" json:"facility_id"`
	CreatedByUserID uuid.UUID       `db:"created_by_user_id" json:"created_by_user_id"`
	OrderNumber     string          `db:"order_number" json:"order_number"`
	WeekStartDate   time.Time       `db:"week_start_date" json:"week_start_date"`
	WeekEndDate     time.Time       `db:"week_end_date" json:"week_end_date"`
	ResidentMeals   []ResidentMeals `db:"resident_meals" json:"resident_meals"`
	DeliveryAddress string          `db:"delivery_address" json:"delivery_address"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	Status          OrderStatus     `db:"status" json:"status"`
	TotalMeals      int             `db:"total_meals" json:"total_meals"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax             decimal.Decimal `db:"tax" json:"tax"`
	Total           decimal.Decimal `db:"total" json:"total"`
	Deadline        time.Time       `db:"deadline" json:"deadline"`
	SubmittedAt     *time.Time      `db:"submitted_at" json:"submitted_at,omitempty"`
	CancelledAt     *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Version         int64           `db:"version" json:"version"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

func (o *NursingHomeOrder) ApplyTotals(totals OrderTotals) {
	o.TotalMeals = totals.TotalMeals
	o.Subtotal = totals.Subtotal
	o.Tax = totals.Tax
	o.Total = totals.Total
}

func (o *NursingHomeOrder) Clone() *NursingHomeOrder {
	if o == nil {
		return nil
	}
	out := *o
	out.ResidentMeals = CloneResidentMeals(o.ResidentMeals)
	if o.Notes != nil {
		notes := *o.Notes
		out.Notes = &notes
	}
	if o.SubmittedAt != nil {
		at := *o.SubmittedAt
		out.SubmittedAt = &at
	}
	if o.CancelledAt != nil {
		at := *o.CancelledAt
		out.CancelledAt = &at
	}
	return &out
}

func CloneResidentMeals(in []ResidentMeals) []ResidentMeals {
	if in == nil {
		return nil
	}
	out := make([]ResidentMeals, len(in))
	for i, resident := range in {
		out[i] = resident
		out[i].Meals = make([]Meal, len(resident.Meals))
		for j, meal := range resident.Meals {
			out[i].Meals[j] = meal
			out[i].Meals[j].Items = append([]MealItem(nil), meal.Items...)
		}
	}
	return out
}
