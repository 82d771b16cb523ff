package tracker

import "fmt"

// defaultTaxCategories are the IRS schedule lines self-employed filers and
// landlords actually report expenses on. Seeded once at startup; SaveTaxCategory
// upserts by code so re-running is harmless.
var defaultTaxCategories = []TaxCategory{
	{Code: "ADVERTISING", Name: "Advertising", Schedule: "C", Line: "8"},
	{Code: "CAR_TRUCK", Name: "Car and truck expenses", Schedule: "C", Line: "9"},
	{Code: "COMMISSIONS", Name: "Commissions and fees", Schedule: "C", Line: "10"},
	{Code: "CONTRACT_LABOR", Name: "Contract labor", Schedule: "C", Line: "11"},
	{Code: "DEPRECIATION", Name: "Depreciation", Schedule: "C", Line: "13"},
	{Code: "INSURANCE", Name: "Insurance (other than health)", Schedule: "C", Line: "15"},
	{Code: "INTEREST_MORTGAGE", Name: "Mortgage interest", Schedule: "C", Line: "16a"},
	{Code: "INTEREST_OTHER", Name: "Other interest", Schedule: "C", Line: "16b"},
	{Code: "LEGAL_PROFESSIONAL", Name: "Legal and professional services", Schedule: "C", Line: "17"},
	{Code: "OFFICE_EXPENSE", Name: "Office expense", Schedule: "C", Line: "18"},
	{Code: "RENT_VEHICLES", Name: "Rent or lease: vehicles and equipment", Schedule: "C", Line: "20a"},
	{Code: "RENT_OTHER", Name: "Rent or lease: other business property", Schedule: "C", Line: "20b"},
	{Code: "REPAIRS", Name: "Repairs and maintenance", Schedule: "C", Line: "21"},
	{Code: "SUPPLIES", Name: "Supplies", Schedule: "C", Line: "22"},
	{Code: "TAXES_LICENSES", Name: "Taxes and licenses", Schedule: "C", Line: "23"},
	{Code: "TRAVEL", Name: "Travel", Schedule: "C", Line: "24a"},
	{Code: "MEALS", Name: "Meals", Schedule: "C", Line: "24b"},
	{Code: "UTILITIES", Name: "Utilities", Schedule: "C", Line: "25"},
	{Code: "WAGES", Name: "Wages", Schedule: "C", Line: "26"},
	{Code: "OTHER", Name: "Other expenses", Schedule: "C", Line: "27a"},

	{Code: "E_CLEANING", Name: "Cleaning and maintenance", Schedule: "E", Line: "7"},
	{Code: "E_INSURANCE", Name: "Insurance", Schedule: "E", Line: "9"},
	{Code: "E_MANAGEMENT", Name: "Management fees", Schedule: "E", Line: "11"},
	{Code: "E_MORTGAGE_INTEREST", Name: "Mortgage interest paid to banks", Schedule: "E", Line: "12"},
	{Code: "E_REPAIRS", Name: "Repairs", Schedule: "E", Line: "14"},
	{Code: "E_SUPPLIES", Name: "Supplies", Schedule: "E", Line: "15"},
	{Code: "E_TAXES", Name: "Taxes", Schedule: "E", Line: "16"},
	{Code: "E_UTILITIES", Name: "Utilities", Schedule: "E", Line: "17"},
}

// SeedTaxCategories upserts the built-in IRS schedule lines
func (s *Service) SeedTaxCategories() error {
	for i := range defaultTaxCategories {
		tc := defaultTaxCategories[i]
		tc.ID = tc.Code
		if err := s.db.SaveTaxCategory(&tc); err != nil {
			return fmt.Errorf("seeding tax category %s: %w", tc.Code, err)
		}
	}
	return nil
}
