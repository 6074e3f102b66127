package service

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/pkg/money"
)

var (
	mealPrices = map[model.MealType]decimal.Decimal{
		model.MealTypeBreakfast: money.MustParse("15.00"),
		model.MealTypeLunch:     money.MustParse("21.00"),
		model.MealTypeDinner:    money.MustParse("23.00"),
	}

	// NursingHomeTaxRate is the fixed regional sales tax applied to meal subtotals.
	NursingHomeTaxRate = decimal.RequireFromString("0.08875")

	weekDays = map[string]struct{}{
		"monday":    {},
		"tuesday":   {},
		"wednesday": {},
		"thursday":  {},
		"friday":    {},
		"saturday":  {},
		"sunday":    {},
	}
)

// MealPrice returns the flat price of one meal of the given type.
func MealPrice(mealType model.MealType) (decimal.Decimal, bool) {
	price, ok := mealPrices[mealType]
	return price, ok
}

// CalculateOrderTotals counts every meal entry and prices it by meal type.
// Tax and total are each rounded to cents on their own.
func CalculateOrderTotals(residents []model.ResidentMeals) (model.OrderTotals, error) {
	if err := ValidateResidentMeals(residents); err != nil {
		return model.OrderTotals{}, err
	}

	subtotal := decimal.Zero
	totalMeals := 0
	for _, resident := range residents {
		for _, meal := range resident.Meals {
			price, _ := MealPrice(meal.MealType)
			totalMeals++
			subtotal = subtotal.Add(price)
		}
	}

	subtotal = money.Round2(subtotal)
	tax := money.Round2(subtotal.Mul(NursingHomeTaxRate))
	return model.OrderTotals{
		TotalMeals: totalMeals,
		Subtotal:   subtotal,
		Tax:        tax,
		Total:      money.Round2(subtotal.Add(tax)),
	}, nil
}

func ValidateResidentMeals(residents []model.ResidentMeals) error {
	for i, resident := range residents {
		if strings.TrimSpace(resident.ResidentName) == "" {
			return validationErrorf("resident %d: name is required", i)
		}
		for j, meal := range resident.Meals {
			if _, ok := MealPrice(meal.MealType); !ok {
				return validationErrorf("resident %d meal %d: unknown meal type %q", i, j, meal.MealType)
			}
			if _, ok := weekDays[strings.ToLower(strings.TrimSpace(meal.Day))]; !ok {
				return validationErrorf("resident %d meal %d: unknown day %q", i, j, meal.Day)
			}
			if len(meal.Items) == 0 {
				return validationErrorf("resident %d meal %d: at least one item is required", i, j)
			}
			for k, item := range meal.Items {
				if strings.TrimSpace(item.Name) == "" {
					return validationErrorf("resident %d meal %d item %d: name is required", i, j, k)
				}
				if item.Quantity < 0 {
					return validationErrorf("resident %d meal %d item %d: quantity must not be negative", i, j, k)
				}
			}
		}
	}
	return nil
}
