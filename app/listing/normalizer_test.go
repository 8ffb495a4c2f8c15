package listing

import (
	"math"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func expectValue(t *testing.T, name string, got *float64, expected float64) {
	t.Helper()
	if got == nil {
		t.Errorf("Expected %s = %v, got absent", name, expected)
		return
	}
	if !approxEqual(*got, expected) {
		t.Errorf("Expected %s = %v, got %v", name, expected, *got)
	}
}

func TestNormalizeCompensation_Hourly(t *testing.T) {
	comp := NormalizeCompensation(CompensationHourly, Float(100), Float(150), Float(10), Float(20))

	expectValue(t, "hourly_min", comp.HourlyMin, 100)
	expectValue(t, "hourly_max", comp.HourlyMax, 150)
	expectValue(t, "monthly_min", comp.MonthlyMin, 6495.0)
	expectValue(t, "monthly_max", comp.MonthlyMax, 150*15*4.33)
}

func TestNormalizeCompensation_HourlyDefaultHours(t *testing.T) {
	comp := NormalizeCompensation(CompensationHourly, Float(200), nil, nil, nil)

	expectValue(t, "hourly_max", comp.HourlyMax, 200)
	expectValue(t, "monthly_min", comp.MonthlyMin, 200*DefaultHoursPerWeek*WeeksPerMonth)
	expectValue(t, "monthly_max", comp.MonthlyMax, 200*DefaultHoursPerWeek*WeeksPerMonth)
}

func TestNormalizeCompensation_Monthly(t *testing.T) {
	comp := NormalizeCompensation(CompensationMonthly, Float(6495), Float(9742.5), nil, nil)

	expectValue(t, "hourly_min", comp.HourlyMin, 100)
	expectValue(t, "hourly_max", comp.HourlyMax, 150)
	expectValue(t, "monthly_min", comp.MonthlyMin, 6495)
	expectValue(t, "monthly_max", comp.MonthlyMax, 9742.5)
}

func TestNormalizeCompensation_Annual(t *testing.T) {
	comp := NormalizeCompensation(CompensationAnnual, Float(150000), Float(200000), Float(10), Float(20))

	expectValue(t, "hourly_min", comp.HourlyMin, 150000.0/2080)
	expectValue(t, "hourly_max", comp.HourlyMax, 200000.0/2080)
	expectValue(t, "monthly_min", comp.MonthlyMin, 12500)

	if math.Abs(*comp.HourlyMin-72.115) > 0.001 {
		t.Errorf("Expected hourly_min ≈ 72.115, got %v", *comp.HourlyMin)
	}
}

func TestNormalizeCompensation_Absent(t *testing.T) {
	tests := []struct {
		name     string
		compType CompensationType
		lo, hi   *float64
	}{
		{"equity only", CompensationEquityOnly, Float(1), Float(2)},
		{"not disclosed", CompensationNotDisclosed, Float(100), Float(200)},
		{"missing type", "", Float(100), Float(200)},
		{"unknown type", "weekly", Float(100), Float(200)},
		{"no values", CompensationHourly, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := NormalizeCompensation(tt.compType, tt.lo, tt.hi, nil, nil)
			if comp != (Compensation{}) {
				t.Errorf("Expected all values absent, got %+v", comp)
			}
		})
	}
}

func TestNormalizeCompensation_ZeroIsNotAbsent(t *testing.T) {
	comp := NormalizeCompensation(CompensationHourly, Float(0), Float(0), nil, nil)

	expectValue(t, "hourly_min", comp.HourlyMin, 0)
	expectValue(t, "monthly_min", comp.MonthlyMin, 0)
}

func TestNormalizeCompensation_ZeroHoursFallsBackToDefault(t *testing.T) {
	comp := NormalizeCompensation(CompensationMonthly, Float(6495), nil, Float(0), Float(0))

	expectValue(t, "hourly_min", comp.HourlyMin, 100)
}
