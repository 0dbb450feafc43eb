package provider

// Bold bills in major units (whole pesos), Wompi in minor units (cents).
// All amounts cross package boundaries in major units; the two functions
// below are the only place minor-unit arithmetic happens.

const minorPerMajor = 100

// MajorToMinor converts an amount in major currency units to minor units.
func MajorToMinor(amount int64) int64 {
	return amount * minorPerMajor
}

// MinorToMajor converts an amount in minor currency units to major units.
// Sub-unit remainders truncate toward zero; COP has no circulating cents.
func MinorToMajor(amountInCents int64) int64 {
	return amountInCents / minorPerMajor
}
