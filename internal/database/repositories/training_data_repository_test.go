package repositories

import (
	"context"
	"math"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climatehealth/healthrisk/internal/processor"
)

var trainingColumns = []string{
	"pm25", "pm10", "aqi", "temperature", "humidity", "uv_index",
	"ozone", "no2", "so2", "co", "wind_speed", "precipitation",
	"age", "bmi", "heart_rate",
	"blood_pressure_systolic", "blood_pressure_diastolic",
	"has_asthma", "has_copd", "has_heart_disease", "has_diabetes",
	"smoker", "exercise_frequency",
	"gene_variant_1", "gene_variant_2", "gene_variant_3",
	"gene_variant_4", "gene_variant_5", "genetic_risk_score",
	"asthma_risk", "heatstroke_risk", "cardiovascular_risk", "respiratory_risk",
}

func newMockRepo(t *testing.T) (*TrainingDataRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTrainingDataRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestLoadTrainingData(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows(trainingColumns).
		AddRow(
			35.5, 60.0, 80.0, 28.5, 65.0, 5.0,
			0.05, 20.0, 5.0, 1.0, 10.0, 0.0,
			45.0, 24.5, 72.0,
			120.0, 80.0,
			1.0, 0.0, 0.0, 0.0,
			0.0, 3.0,
			1.0, 0.0, 2.0, 0.0, 1.0, 0.6,
			0.4, 0.3, 0.2, 0.35,
		).
		AddRow(
			nil, nil, 150.0, 38.0, 80.0, 9.0,
			nil, nil, nil, nil, 5.0, 2.0,
			70.0, 29.0, 85.0,
			145.0, 95.0,
			0.0, 1.0, 1.0, 1.0,
			1.0, 0.0,
			nil, nil, nil, nil, nil, nil,
			0.5, 0.7, 0.65, 0.6,
		)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	X, y, err := repo.LoadTrainingData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, X.Rows())
	assert.Equal(t, processor.RawFeatures(), X.Columns())
	assert.Equal(t, processor.TargetConditions, y.Columns())

	pm25, ok := X.Column("pm25")
	require.True(t, ok)
	assert.Equal(t, 35.5, pm25[0])
	assert.True(t, math.IsNaN(pm25[1]))

	// Absent genomic join rows surface as missing values.
	score, ok := X.Column("genetic_risk_score")
	require.True(t, ok)
	assert.Equal(t, 0.6, score[0])
	assert.True(t, math.IsNaN(score[1]))

	asthma, ok := y.Column("asthma_risk")
	require.True(t, ok)
	assert.Equal(t, []float64{0.4, 0.5}, asthma)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadTrainingDataEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(trainingColumns))

	_, _, err := repo.LoadTrainingData(context.Background())
	assert.ErrorIs(t, err, ErrNoTrainingData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadTrainingDataQueryError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	_, _, err := repo.LoadTrainingData(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
