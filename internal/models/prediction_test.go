package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskLevelBuckets(t *testing.T) {
	tests := []struct {
		overall float64
		want    string
	}{
		{0.0, RiskLevelLow},
		{0.29, RiskLevelLow},
		{0.3, RiskLevelModerate},
		{0.49, RiskLevelModerate},
		{0.5, RiskLevelHigh},
		{0.69, RiskLevelHigh},
		{0.7, RiskLevelCritical},
		{1.0, RiskLevelCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskLevel(tt.overall), "overall=%v", tt.overall)
	}
}

func TestFlattenDefaults(t *testing.T) {
	input := &PredictionInput{}
	record := input.Flatten()

	// Supplied nothing: no environmental or numeric health fields, but flags
	// and genomics default to zero.
	assert.NotContains(t, record, "pm25")
	assert.NotContains(t, record, "age")
	assert.Equal(t, 0.0, record["has_asthma"])
	assert.Equal(t, 0.0, record["smoker"])
	assert.Equal(t, 0.0, record["gene_variant_1"])
	assert.Equal(t, 0.0, record["genetic_risk_score"])
}

func TestFlattenValues(t *testing.T) {
	pm25, temp, age := 35.5, 28.5, 45.0
	asthma, variant := 1, 2
	score := 0.7

	input := &PredictionInput{
		Environmental: EnvironmentalData{PM25: &pm25, Temperature: &temp},
		Health:        HealthData{Age: &age, HasAsthma: &asthma},
		Genomic:       &GenomicData{GeneVariant1: &variant, GeneticRiskScore: &score},
	}
	record := input.Flatten()

	assert.Equal(t, 35.5, record["pm25"])
	assert.Equal(t, 28.5, record["temperature"])
	assert.Equal(t, 45.0, record["age"])
	assert.Equal(t, 1.0, record["has_asthma"])
	assert.Equal(t, 2.0, record["gene_variant_1"])
	assert.Equal(t, 0.7, record["genetic_risk_score"])
	assert.NotContains(t, record, "humidity")
}
