package dynamo

// Physical constants in kmol-based units.
const (
	// F is Faraday's constant [C/kmol].
	F = 96485.3321e3

	// R is the universal gas constant [J/kmol/K].
	R = 8.3145e3
)
