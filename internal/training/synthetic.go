package training

import (
	"math/rand"

	"github.com/climatehealth/healthrisk/internal/processor"
	"github.com/climatehealth/healthrisk/pkg/logger"
)

// GenerateSyntheticData produces a correlated feature/target dataset for
// smoke-testing the pipeline when no training database is available. Targets
// are noisy linear blends of the features that drive each condition, clipped
// to [0,1].
func GenerateSyntheticData(samples int, seed int64) (*processor.Frame, *processor.Frame) {
	rng := rand.New(rand.NewSource(seed))

	uniform := func(lo, hi float64) []float64 {
		col := make([]float64, samples)
		for i := range col {
			col[i] = lo + rng.Float64()*(hi-lo)
		}
		return col
	}
	ints := func(lo, hi int) []float64 {
		col := make([]float64, samples)
		for i := range col {
			col[i] = float64(lo + rng.Intn(hi-lo))
		}
		return col
	}

	features := map[string][]float64{
		"pm25":                     uniform(0, 100),
		"pm10":                     uniform(0, 200),
		"aqi":                      uniform(0, 200),
		"temperature":              uniform(-10, 45),
		"humidity":                 uniform(20, 100),
		"uv_index":                 uniform(0, 11),
		"ozone":                    uniform(0, 0.2),
		"no2":                      uniform(0, 100),
		"so2":                      uniform(0, 50),
		"co":                       uniform(0, 10),
		"wind_speed":               uniform(0, 30),
		"precipitation":            uniform(0, 50),
		"age":                      ints(1, 90),
		"bmi":                      uniform(15, 40),
		"heart_rate":               uniform(60, 100),
		"blood_pressure_systolic":  uniform(90, 180),
		"blood_pressure_diastolic": uniform(60, 120),
		"has_asthma":               ints(0, 2),
		"has_copd":                 ints(0, 2),
		"has_heart_disease":        ints(0, 2),
		"has_diabetes":             ints(0, 2),
		"smoker":                   ints(0, 2),
		"exercise_frequency":       ints(0, 7),
		"gene_variant_1":           ints(0, 3),
		"gene_variant_2":           ints(0, 3),
		"gene_variant_3":           ints(0, 3),
		"gene_variant_4":           ints(0, 3),
		"gene_variant_5":           ints(0, 3),
		"genetic_risk_score":       uniform(0, 1),
	}

	X := processor.NewFrame(samples)
	for _, name := range processor.RawFeatures() {
		X.SetColumn(name, features[name])
	}

	y := processor.NewFrame(samples)
	asthma := make([]float64, samples)
	heatstroke := make([]float64, samples)
	cardio := make([]float64, samples)
	respiratory := make([]float64, samples)
	for i := 0; i < samples; i++ {
		young, elderly := 0.0, 0.0
		if features["age"][i] < 18 {
			young = 1
		}
		if features["age"][i] > 65 {
			elderly = 1
		}
		asthma[i] = clip01(0.3*features["pm25"][i]/100 +
			0.2*features["has_asthma"][i] +
			0.1*young +
			rng.Float64()*0.2)
		heatstroke[i] = clip01(0.4*features["temperature"][i]/45 +
			0.2*elderly +
			0.1*features["humidity"][i]/100 +
			rng.Float64()*0.2)
		cardio[i] = clip01(0.3*features["has_heart_disease"][i] +
			0.2*features["age"][i]/90 +
			0.1*features["pm25"][i]/100 +
			0.1*features["smoker"][i] +
			rng.Float64()*0.2)
		respiratory[i] = clip01(0.3*features["aqi"][i]/200 +
			0.2*(features["has_copd"][i]+features["has_asthma"][i]) +
			0.1*features["smoker"][i] +
			rng.Float64()*0.2)
	}
	y.SetColumn("asthma_risk", asthma)
	y.SetColumn("heatstroke_risk", heatstroke)
	y.SetColumn("cardiovascular_risk", cardio)
	y.SetColumn("respiratory_risk", respiratory)

	logger.WithComponent("training").Info().
		Int("samples", samples).
		Msg("Generated synthetic training data")

	return X, y
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
