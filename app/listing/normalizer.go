package listing

const (
	DefaultHoursPerWeek = 15.0
	WeeksPerMonth       = 4.33
	FTEHoursPerYear     = 2080.0
	MonthsPerYear       = 12.0
)

type Compensation struct {
	HourlyMin  *float64
	HourlyMax  *float64
	MonthlyMin *float64
	MonthlyMax *float64
}

// NormalizeCompensation converts a declared pay figure into both hourly and
// monthly equivalents. Types without a usable figure yield an empty result.
func NormalizeCompensation(compType CompensationType, compMin, compMax, hoursMin, hoursMax *float64) Compensation {
	switch compType {
	case CompensationHourly, CompensationMonthly, CompensationAnnual:
	default:
		return Compensation{}
	}

	if compMin == nil && compMax == nil {
		return Compensation{}
	}
	if compMax == nil {
		compMax = compMin
	}
	if compMin == nil {
		compMin = compMax
	}

	lo, hi := *compMin, *compMax

	switch compType {
	case CompensationHourly:
		monthly := averageHours(hoursMin, hoursMax) * WeeksPerMonth
		return Compensation{
			HourlyMin:  Float(lo),
			HourlyMax:  Float(hi),
			MonthlyMin: Float(lo * monthly),
			MonthlyMax: Float(hi * monthly),
		}

	case CompensationMonthly:
		monthly := averageHours(hoursMin, hoursMax) * WeeksPerMonth
		return Compensation{
			HourlyMin:  Float(lo / monthly),
			HourlyMax:  Float(hi / monthly),
			MonthlyMin: Float(lo),
			MonthlyMax: Float(hi),
		}

	default:
		return Compensation{
			HourlyMin:  Float(lo / FTEHoursPerYear),
			HourlyMax:  Float(hi / FTEHoursPerYear),
			MonthlyMin: Float(lo / MonthsPerYear),
			MonthlyMax: Float(hi / MonthsPerYear),
		}
	}
}

func averageHours(hoursMin, hoursMax *float64) float64 {
	if hoursMin == nil || hoursMax == nil {
		return DefaultHoursPerWeek
	}

	avg := (*hoursMin + *hoursMax) / 2
	if avg <= 0 {
		return DefaultHoursPerWeek
	}
	return avg
}
