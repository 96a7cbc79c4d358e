package model

// Vehicle is one technology slot offered by a firm. Its characteristics are
// mutated in place by R&D and its price fields are recomputed every period.
type Vehicle struct {
	Technology     Technology
	ProductionCost float64
	EnergyEconomy  float64 // distance per unit of energy
	EnergyCapacity float64 // units of energy carried
	Quality        float64

	// Derived by pricing; never valid across a characteristic change until
	// the next pricing pass.
	SalesPrice     float64
	OwedTaxes      float64
	PolicyDiscount float64
	PolicyTax      float64
}

// DriveRange returns EE × EC.
func (v Vehicle) DriveRange() float64 {
	return v.EnergyEconomy * v.EnergyCapacity
}

// Emissions returns the emission per unit of distance given the baseline
// emission of the vehicle's technology.
func (v Vehicle) Emissions(baseline float64) float64 {
	if v.EnergyEconomy <= 0 {
		return 0
	}
	return baseline / v.EnergyEconomy
}

// Characteristics returns a copy of v without its derived price fields.
func (v Vehicle) Characteristics() Vehicle {
	return Vehicle{
		Technology:     v.Technology,
		ProductionCost: v.ProductionCost,
		EnergyEconomy:  v.EnergyEconomy,
		EnergyCapacity: v.EnergyCapacity,
		Quality:        v.Quality,
	}
}
