package models

import "time"

// Risk level buckets for the overall risk score.
const (
	RiskLevelLow      = "low"
	RiskLevelModerate = "moderate"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// RiskLevel buckets an overall risk score into a severity label.
func RiskLevel(overall float64) string {
	switch {
	case overall < 0.3:
		return RiskLevelLow
	case overall < 0.5:
		return RiskLevelModerate
	case overall < 0.7:
		return RiskLevelHigh
	default:
		return RiskLevelCritical
	}
}

// EnvironmentalData holds air quality and weather readings. Nil fields are
// missing measurements, left for the imputer to fill.
type EnvironmentalData struct {
	PM25          *float64 `json:"pm25,omitempty" validate:"omitempty,gte=0,lte=500"`
	PM10          *float64 `json:"pm10,omitempty" validate:"omitempty,gte=0,lte=1000"`
	AQI           *float64 `json:"aqi,omitempty" validate:"omitempty,gte=0,lte=500"`
	Temperature   *float64 `json:"temperature,omitempty" validate:"omitempty,gte=-50,lte=60"`
	Humidity      *float64 `json:"humidity,omitempty" validate:"omitempty,gte=0,lte=100"`
	UVIndex       *float64 `json:"uv_index,omitempty" validate:"omitempty,gte=0,lte=15"`
	Ozone         *float64 `json:"ozone,omitempty" validate:"omitempty,gte=0,lte=1"`
	NO2           *float64 `json:"no2,omitempty" validate:"omitempty,gte=0,lte=200"`
	SO2           *float64 `json:"so2,omitempty" validate:"omitempty,gte=0,lte=200"`
	CO            *float64 `json:"co,omitempty" validate:"omitempty,gte=0,lte=50"`
	WindSpeed     *float64 `json:"wind_speed,omitempty" validate:"omitempty,gte=0,lte=100"`
	Precipitation *float64 `json:"precipitation,omitempty" validate:"omitempty,gte=0,lte=500"`
}

// HealthData holds the user's health profile. Condition flags default to
// absent (0) when nil.
type HealthData struct {
	Age                    *float64 `json:"age,omitempty" validate:"omitempty,gte=0,lte=120"`
	BMI                    *float64 `json:"bmi,omitempty" validate:"omitempty,gte=10,lte=60"`
	HeartRate              *float64 `json:"heart_rate,omitempty" validate:"omitempty,gte=30,lte=200"`
	BloodPressureSystolic  *float64 `json:"blood_pressure_systolic,omitempty" validate:"omitempty,gte=60,lte=250"`
	BloodPressureDiastolic *float64 `json:"blood_pressure_diastolic,omitempty" validate:"omitempty,gte=40,lte=150"`
	HasAsthma              *int     `json:"has_asthma,omitempty" validate:"omitempty,gte=0,lte=1"`
	HasCOPD                *int     `json:"has_copd,omitempty" validate:"omitempty,gte=0,lte=1"`
	HasHeartDisease        *int     `json:"has_heart_disease,omitempty" validate:"omitempty,gte=0,lte=1"`
	HasDiabetes            *int     `json:"has_diabetes,omitempty" validate:"omitempty,gte=0,lte=1"`
	Smoker                 *int     `json:"smoker,omitempty" validate:"omitempty,gte=0,lte=1"`
	ExerciseFrequency      *int     `json:"exercise_frequency,omitempty" validate:"omitempty,gte=0,lte=7"`
}

// GenomicData holds optional genetic markers. Variant counts follow the
// 0/1/2 allele convention.
type GenomicData struct {
	GeneVariant1     *int     `json:"gene_variant_1,omitempty" validate:"omitempty,gte=0,lte=2"`
	GeneVariant2     *int     `json:"gene_variant_2,omitempty" validate:"omitempty,gte=0,lte=2"`
	GeneVariant3     *int     `json:"gene_variant_3,omitempty" validate:"omitempty,gte=0,lte=2"`
	GeneVariant4     *int     `json:"gene_variant_4,omitempty" validate:"omitempty,gte=0,lte=2"`
	GeneVariant5     *int     `json:"gene_variant_5,omitempty" validate:"omitempty,gte=0,lte=2"`
	GeneticRiskScore *float64 `json:"genetic_risk_score,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// PredictionInput is one prediction request.
type PredictionInput struct {
	Environmental EnvironmentalData `json:"environmental"`
	Health        HealthData        `json:"health"`
	Genomic       *GenomicData      `json:"genomic,omitempty"`
	UserID        string            `json:"user_id,omitempty"`
	LocationID    string            `json:"location_id,omitempty"`
}

// BatchPredictionInput is a list of prediction requests.
type BatchPredictionInput struct {
	Predictions []PredictionInput `json:"predictions" validate:"required,min=1,dive"`
}

// RiskScores are the per-condition probabilities plus the derived overall
// score and severity bucket.
type RiskScores struct {
	AsthmaRisk         float64 `json:"asthma_risk"`
	HeatstrokeRisk     float64 `json:"heatstroke_risk"`
	CardiovascularRisk float64 `json:"cardiovascular_risk"`
	RespiratoryRisk    float64 `json:"respiratory_risk"`
	OverallRisk        float64 `json:"overall_risk"`
	RiskLevel          string  `json:"risk_level"`
}

// PredictionOutput is the response for one prediction.
type PredictionOutput struct {
	Risks        RiskScores `json:"risks"`
	Timestamp    time.Time  `json:"timestamp"`
	UserID       string     `json:"user_id,omitempty"`
	LocationID   string     `json:"location_id,omitempty"`
	ModelVersion string     `json:"model_version"`
	Cached       bool       `json:"cached"`
}

// BatchPredictionOutput is the response for a batch request.
type BatchPredictionOutput struct {
	Predictions []PredictionOutput `json:"predictions"`
	Count       int                `json:"count"`
}

// ModelInfo describes the loaded model for the info endpoint.
type ModelInfo struct {
	Version        string `json:"version"`
	InputSize      int    `json:"input_size"`
	HiddenSize     int    `json:"hidden_size"`
	OutputSize     int    `json:"output_size"`
	HiddenLayers   int    `json:"num_hidden_layers"`
	ParameterCount int    `json:"parameter_count"`
	EnsembleSize   int    `json:"ensemble_size,omitempty"`
}

// HealthStatus is the liveness report for the health endpoint.
type HealthStatus struct {
	Status          string `json:"status"`
	ModelLoaded     bool   `json:"model_loaded"`
	ProcessorLoaded bool   `json:"processor_loaded"`
	CacheConnected  bool   `json:"cache_connected"`
	ModelVersion    string `json:"model_version,omitempty"`
}

// Flatten converts the nested input into the flat feature map the data
// processor consumes. Nil environmental and numeric health fields stay
// absent; condition flags and genomic markers default to zero like the
// serving contract promises.
func (p *PredictionInput) Flatten() map[string]float64 {
	record := make(map[string]float64)

	putOpt := func(name string, v *float64) {
		if v != nil {
			record[name] = *v
		}
	}
	putFlag := func(name string, v *int) {
		if v != nil {
			record[name] = float64(*v)
		} else {
			record[name] = 0
		}
	}

	putOpt("pm25", p.Environmental.PM25)
	putOpt("pm10", p.Environmental.PM10)
	putOpt("aqi", p.Environmental.AQI)
	putOpt("temperature", p.Environmental.Temperature)
	putOpt("humidity", p.Environmental.Humidity)
	putOpt("uv_index", p.Environmental.UVIndex)
	putOpt("ozone", p.Environmental.Ozone)
	putOpt("no2", p.Environmental.NO2)
	putOpt("so2", p.Environmental.SO2)
	putOpt("co", p.Environmental.CO)
	putOpt("wind_speed", p.Environmental.WindSpeed)
	putOpt("precipitation", p.Environmental.Precipitation)

	if p.Health.Age != nil {
		record["age"] = *p.Health.Age
	}
	putOpt("bmi", p.Health.BMI)
	putOpt("heart_rate", p.Health.HeartRate)
	putOpt("blood_pressure_systolic", p.Health.BloodPressureSystolic)
	putOpt("blood_pressure_diastolic", p.Health.BloodPressureDiastolic)
	putFlag("has_asthma", p.Health.HasAsthma)
	putFlag("has_copd", p.Health.HasCOPD)
	putFlag("has_heart_disease", p.Health.HasHeartDisease)
	putFlag("has_diabetes", p.Health.HasDiabetes)
	putFlag("smoker", p.Health.Smoker)
	putFlag("exercise_frequency", p.Health.ExerciseFrequency)

	genomic := p.Genomic
	if genomic == nil {
		genomic = &GenomicData{}
	}
	putFlag("gene_variant_1", genomic.GeneVariant1)
	putFlag("gene_variant_2", genomic.GeneVariant2)
	putFlag("gene_variant_3", genomic.GeneVariant3)
	putFlag("gene_variant_4", genomic.GeneVariant4)
	putFlag("gene_variant_5", genomic.GeneVariant5)
	if genomic.GeneticRiskScore != nil {
		record["genetic_risk_score"] = *genomic.GeneticRiskScore
	} else {
		record["genetic_risk_score"] = 0
	}

	return record
}
