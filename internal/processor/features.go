package processor

import "math"

// Feature groups accepted as raw model input.
var (
	EnvironmentalFeatures = []string{
		"pm25", "pm10", "aqi", "temperature", "humidity", "uv_index",
		"ozone", "no2", "so2", "co", "wind_speed", "precipitation",
	}

	HealthFeatures = []string{
		"age", "bmi", "heart_rate", "blood_pressure_systolic",
		"blood_pressure_diastolic", "has_asthma", "has_copd",
		"has_heart_disease", "has_diabetes", "smoker", "exercise_frequency",
	}

	GenomicFeatures = []string{
		"gene_variant_1", "gene_variant_2", "gene_variant_3",
		"gene_variant_4", "gene_variant_5", "genetic_risk_score",
	}

	// TargetConditions are the predicted health conditions, in output order.
	TargetConditions = []string{
		"asthma_risk", "heatstroke_risk", "cardiovascular_risk", "respiratory_risk",
	}
)

// RawFeatures returns all accepted raw input columns in canonical order.
func RawFeatures() []string {
	out := make([]string, 0, len(EnvironmentalFeatures)+len(HealthFeatures)+len(GenomicFeatures))
	out = append(out, EnvironmentalFeatures...)
	out = append(out, HealthFeatures...)
	out = append(out, GenomicFeatures...)
	return out
}

// EngineerFeatures appends derived interaction and indicator columns to the
// frame. Each derived column is computed only when its source columns are
// present, so the resulting column set depends on the input schema. The
// operation is idempotent: already-present derived columns are left untouched.
//
// Missing source values follow the usual conventions: arithmetic combinations
// propagate NaN, threshold indicators treat NaN as not exceeding the
// threshold, and aggregate columns skip NaN inputs.
func EngineerFeatures(f *Frame) *Frame {
	out := f.Copy()

	derive2(out, "pm25_aqi_interaction", "pm25", "aqi", func(a, b float64) float64 {
		return a * b
	})
	derive2(out, "heat_index", "temperature", "humidity", func(t, h float64) float64 {
		return t + 0.5*h
	})
	derive1(out, "temp_squared", "temperature", func(t float64) float64 {
		return t * t
	})
	derive1(out, "extreme_heat", "temperature", indicator(func(t float64) bool { return t > 35 }))
	derive1(out, "extreme_cold", "temperature", indicator(func(t float64) bool { return t < 0 }))

	deriveMean(out, "air_quality_composite", []string{"pm25", "pm10", "ozone", "no2", "so2", "co"})

	derive1(out, "age_squared", "age", func(a float64) float64 {
		return a * a
	})
	derive1(out, "elderly", "age", indicator(func(a float64) bool { return a >= 65 }))
	derive1(out, "child", "age", indicator(func(a float64) bool { return a < 18 }))

	derive1(out, "obese", "bmi", indicator(func(b float64) bool { return b >= 30 }))
	derive1(out, "underweight", "bmi", indicator(func(b float64) bool { return b < 18.5 }))

	derive2(out, "hypertension", "blood_pressure_systolic", "blood_pressure_diastolic", func(sys, dia float64) float64 {
		if sys >= 140 || dia >= 90 {
			return 1
		}
		return 0
	})
	derive2(out, "pulse_pressure", "blood_pressure_systolic", "blood_pressure_diastolic", func(sys, dia float64) float64 {
		return sys - dia
	})

	deriveSum(out, "comorbidity_count", []string{"has_asthma", "has_copd", "has_heart_disease", "has_diabetes"})

	derive2(out, "lifestyle_risk", "smoker", "exercise_frequency", func(s, e float64) float64 {
		return s - e/7
	})
	derive2(out, "exposure_vulnerability", "pm25", "age", func(p, a float64) float64 {
		return p * (a / 100)
	})

	return out
}

func indicator(pred func(float64) bool) func(float64) float64 {
	return func(v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		if pred(v) {
			return 1
		}
		return 0
	}
}

func derive1(f *Frame, name, src string, fn func(float64) float64) {
	if f.Has(name) {
		return
	}
	col, ok := f.Column(src)
	if !ok {
		return
	}
	out := make([]float64, f.Rows())
	for i, v := range col {
		out[i] = fn(v)
	}
	f.setColumn(name, out)
}

func derive2(f *Frame, name, srcA, srcB string, fn func(a, b float64) float64) {
	if f.Has(name) {
		return
	}
	a, okA := f.Column(srcA)
	b, okB := f.Column(srcB)
	if !okA || !okB {
		return
	}
	out := make([]float64, f.Rows())
	for i := range out {
		out[i] = fn(a[i], b[i])
	}
	f.setColumn(name, out)
}

// deriveMean adds the NaN-skipping row mean of whichever source columns are
// present. Rows with no observed source value stay NaN.
func deriveMean(f *Frame, name string, sources []string) {
	if f.Has(name) {
		return
	}
	present := presentColumns(f, sources)
	if len(present) == 0 {
		return
	}
	out := make([]float64, f.Rows())
	for i := range out {
		sum, count := 0.0, 0
		for _, col := range present {
			if v := col[i]; !math.IsNaN(v) {
				sum += v
				count++
			}
		}
		if count == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(count)
		}
	}
	f.setColumn(name, out)
}

// deriveSum adds the NaN-skipping row sum of whichever source columns are
// present. Rows with no observed source value sum to zero.
func deriveSum(f *Frame, name string, sources []string) {
	if f.Has(name) {
		return
	}
	present := presentColumns(f, sources)
	if len(present) == 0 {
		return
	}
	out := make([]float64, f.Rows())
	for i := range out {
		sum := 0.0
		for _, col := range present {
			if v := col[i]; !math.IsNaN(v) {
				sum += v
			}
		}
		out[i] = sum
	}
	f.setColumn(name, out)
}

func presentColumns(f *Frame, names []string) [][]float64 {
	var cols [][]float64
	for _, name := range names {
		if col, ok := f.Column(name); ok {
			cols = append(cols, col)
		}
	}
	return cols
}
