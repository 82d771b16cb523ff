package tracker

// irsMileageRates is the IRS standard business mileage rate by year,
// in dollars per mile.
var irsMileageRates = map[int]float64{
	2024: 0.67,
	2025: 0.70,
	2026: 0.725,
}

// ResolveRate returns the IRS mileage rate for a year. Years not in the
// table use the latest known rate: official rates are published late, so
// forward-filling is a policy choice, not an error.
func ResolveRate(year int) float64 {
	if rate, ok := irsMileageRates[year]; ok {
		return rate
	}
	latest := 0
	for y := range irsMileageRates {
		if y > latest {
			latest = y
		}
	}
	return irsMileageRates[latest]
}

// TripDistance returns the distance to store for an entry: round trips
// double the one-way distance.
func TripDistance(oneWay float64, roundTrip bool) float64 {
	if roundTrip {
		return oneWay * 2
	}
	return oneWay
}
