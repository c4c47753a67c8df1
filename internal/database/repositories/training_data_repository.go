package repositories

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"

	"github.com/climatehealth/healthrisk/internal/processor"
	"github.com/climatehealth/healthrisk/pkg/logger"
)

var ErrNoTrainingData = errors.New("no training data available")

// TrainingDataRepository loads joined environmental, health, genomic and
// outcome rows for model training.
type TrainingDataRepository struct {
	db *sqlx.DB
}

func NewTrainingDataRepository(db *sqlx.DB) *TrainingDataRepository {
	return &TrainingDataRepository{db: db}
}

type dbTrainingRow struct {
	PM25          *float64 `db:"pm25"`
	PM10          *float64 `db:"pm10"`
	AQI           *float64 `db:"aqi"`
	Temperature   *float64 `db:"temperature"`
	Humidity      *float64 `db:"humidity"`
	UVIndex       *float64 `db:"uv_index"`
	Ozone         *float64 `db:"ozone"`
	NO2           *float64 `db:"no2"`
	SO2           *float64 `db:"so2"`
	CO            *float64 `db:"co"`
	WindSpeed     *float64 `db:"wind_speed"`
	Precipitation *float64 `db:"precipitation"`

	Age                    *float64 `db:"age"`
	BMI                    *float64 `db:"bmi"`
	HeartRate              *float64 `db:"heart_rate"`
	BloodPressureSystolic  *float64 `db:"blood_pressure_systolic"`
	BloodPressureDiastolic *float64 `db:"blood_pressure_diastolic"`
	HasAsthma              *float64 `db:"has_asthma"`
	HasCOPD                *float64 `db:"has_copd"`
	HasHeartDisease        *float64 `db:"has_heart_disease"`
	HasDiabetes            *float64 `db:"has_diabetes"`
	Smoker                 *float64 `db:"smoker"`
	ExerciseFrequency      *float64 `db:"exercise_frequency"`

	GeneVariant1     *float64 `db:"gene_variant_1"`
	GeneVariant2     *float64 `db:"gene_variant_2"`
	GeneVariant3     *float64 `db:"gene_variant_3"`
	GeneVariant4     *float64 `db:"gene_variant_4"`
	GeneVariant5     *float64 `db:"gene_variant_5"`
	GeneticRiskScore *float64 `db:"genetic_risk_score"`

	AsthmaRisk         float64 `db:"asthma_risk"`
	HeatstrokeRisk     float64 `db:"heatstroke_risk"`
	CardiovascularRisk float64 `db:"cardiovascular_risk"`
	RespiratoryRisk    float64 `db:"respiratory_risk"`
}

// LoadTrainingData joins the last year of environmental readings, health
// profiles and recorded outcomes, with genomic data attached where present.
// NULL feature columns become NaN so the fitted imputer decides their values.
func (r *TrainingDataRepository) LoadTrainingData(ctx context.Context) (*processor.Frame, *processor.Frame, error) {
	query := `
		SELECT
			e.pm25, e.pm10, e.aqi, e.temperature, e.humidity, e.uv_index,
			e.ozone, e.no2, e.so2, e.co, e.wind_speed, e.precipitation,
			h.age, h.bmi, h.heart_rate,
			h.blood_pressure_systolic, h.blood_pressure_diastolic,
			h.has_asthma, h.has_copd, h.has_heart_disease, h.has_diabetes,
			h.smoker, h.exercise_frequency,
			g.gene_variant_1, g.gene_variant_2, g.gene_variant_3,
			g.gene_variant_4, g.gene_variant_5, g.genetic_risk_score,
			o.asthma_risk, o.heatstroke_risk, o.cardiovascular_risk, o.respiratory_risk
		FROM health_outcomes o
		JOIN environmental_data e
			ON e.location_id = o.location_id AND e.timestamp = o.timestamp
		JOIN user_health_profiles h
			ON h.user_id = o.user_id
		LEFT JOIN user_genomic_data g
			ON g.user_id = o.user_id
		WHERE o.timestamp > NOW() - INTERVAL '1 year'
		ORDER BY o.timestamp
	`

	var rows []dbTrainingRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, nil, fmt.Errorf("failed to load training data: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, ErrNoTrainingData
	}

	X := processor.NewFrame(len(rows))
	for _, name := range processor.RawFeatures() {
		col := make([]float64, len(rows))
		for i, row := range rows {
			col[i] = nullable(featureValue(&row, name))
		}
		if err := X.SetColumn(name, col); err != nil {
			return nil, nil, err
		}
	}

	y := processor.NewFrame(len(rows))
	targets := map[string]func(*dbTrainingRow) float64{
		"asthma_risk":         func(r *dbTrainingRow) float64 { return r.AsthmaRisk },
		"heatstroke_risk":     func(r *dbTrainingRow) float64 { return r.HeatstrokeRisk },
		"cardiovascular_risk": func(r *dbTrainingRow) float64 { return r.CardiovascularRisk },
		"respiratory_risk":    func(r *dbTrainingRow) float64 { return r.RespiratoryRisk },
	}
	for _, name := range processor.TargetConditions {
		col := make([]float64, len(rows))
		for i := range rows {
			col[i] = targets[name](&rows[i])
		}
		if err := y.SetColumn(name, col); err != nil {
			return nil, nil, err
		}
	}

	logger.WithComponent("repository").Info().
		Int("samples", len(rows)).
		Msg("Loaded training data")

	return X, y, nil
}

func featureValue(row *dbTrainingRow, name string) *float64 {
	switch name {
	case "pm25":
		return row.PM25
	case "pm10":
		return row.PM10
	case "aqi":
		return row.AQI
	case "temperature":
		return row.Temperature
	case "humidity":
		return row.Humidity
	case "uv_index":
		return row.UVIndex
	case "ozone":
		return row.Ozone
	case "no2":
		return row.NO2
	case "so2":
		return row.SO2
	case "co":
		return row.CO
	case "wind_speed":
		return row.WindSpeed
	case "precipitation":
		return row.Precipitation
	case "age":
		return row.Age
	case "bmi":
		return row.BMI
	case "heart_rate":
		return row.HeartRate
	case "blood_pressure_systolic":
		return row.BloodPressureSystolic
	case "blood_pressure_diastolic":
		return row.BloodPressureDiastolic
	case "has_asthma":
		return row.HasAsthma
	case "has_copd":
		return row.HasCOPD
	case "has_heart_disease":
		return row.HasHeartDisease
	case "has_diabetes":
		return row.HasDiabetes
	case "smoker":
		return row.Smoker
	case "exercise_frequency":
		return row.ExerciseFrequency
	case "gene_variant_1":
		return row.GeneVariant1
	case "gene_variant_2":
		return row.GeneVariant2
	case "gene_variant_3":
		return row.GeneVariant3
	case "gene_variant_4":
		return row.GeneVariant4
	case "gene_variant_5":
		return row.GeneVariant5
	case "genetic_risk_score":
		return row.GeneticRiskScore
	default:
		return nil
	}
}

func nullable(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
