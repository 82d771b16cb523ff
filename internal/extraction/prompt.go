package extraction

import (
	"fmt"
	"strings"
)

// defaultCategories is used when the caller has not defined any categories yet
var defaultCategories = []string{
	"General", "Office Supplies", "Travel", "Meals", "Utilities",
	"Maintenance", "Professional Services", "Insurance", "Renovations",
	"Furnishings", "Operations",
}

// buildPrompt produces the shared extraction prompt for all LLM providers.
// The model is instructed to return strict JSON and to pick its category
// guess from the caller's category names.
func buildPrompt(categories []string) string {
	if len(categories) == 0 {
		categories = defaultCategories
	}

	return fmt.Sprintf(`You are an expert receipt parser. Extract all information from this receipt.

The user's expense categories are: %s

Extract the following and return ONLY valid JSON (no markdown, no explanation):
{
  "vendor": "Store/business name",
  "amount": 0.00,
  "date": "YYYY-MM-DD",
  "currency": "USD",
  "items": [
    {"description": "item name", "quantity": 1, "unitPrice": 0.00, "total": 0.00}
  ],
  "subtotal": 0.00,
  "tax": 0.00,
  "tip": 0.00,
  "total": 0.00,
  "paymentMethod": "visa",
  "category": "best matching category from user's list above",
  "confidence": 0.95,
  "fieldConfidence": {
    "vendor": 0.95,
    "amount": 0.98,
    "date": 0.90,
    "items": 0.85
  },
  "rawText": "any additional text or notes on the receipt"
}

Rules:
- If a field is unreadable, set it to null and lower confidence
- Amount should be the TOTAL amount paid
- Date format must be YYYY-MM-DD
- Category must be one of the user's categories listed above
- Confidence should honestly reflect image clarity and extraction certainty
- For paymentMethod use: visa, mastercard, amex, discover, cash, check, debit, or null`,
		strings.Join(categories, ", "))
}
