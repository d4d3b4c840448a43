package domain

import "time"

// MinimumAge is the youngest a candidate may be when screened.
const MinimumAge = 18

// IsAdult reports whether someone born on birthDate has reached MinimumAge
// at now. The birthday itself counts.
func IsAdult(birthDate, now time.Time) bool {
	adultAt := birthDate.UTC().AddDate(MinimumAge, 0, 0)
	return !now.UTC().Before(adultAt)
}
