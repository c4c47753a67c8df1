package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/mat"

	"github.com/climatehealth/healthrisk/internal/models"
	"github.com/climatehealth/healthrisk/internal/monitoring/metrics"
	"github.com/climatehealth/healthrisk/internal/neural"
	"github.com/climatehealth/healthrisk/internal/processor"
	"github.com/climatehealth/healthrisk/pkg/logger"
)

const DefaultMaxBatchSize = 1000

var (
	ErrModelNotReady = errors.New("model is not loaded")
	ErrBatchTooLarge = errors.New("batch size exceeds the configured maximum")
	ErrEmptyBatch    = errors.New("batch contains no predictions")
	ErrInvalidInput  = errors.New("invalid prediction input")
)

// Cache is the prediction cache contract. A nil Cache disables caching.
type Cache interface {
	Key(input *models.PredictionInput, modelVersion string) string
	Get(ctx context.Context, key string) (*models.PredictionOutput, bool)
	Set(ctx context.Context, key string, output *models.PredictionOutput)
	Ping(ctx context.Context) bool
}

// PredictionService turns validated requests into risk scores. All
// collaborators are injected; the service itself is stateless beyond them and
// safe for concurrent use.
type PredictionService struct {
	processor    *processor.DataProcessor
	predictor    neural.Predictor
	cache        Cache
	validate     *validator.Validate
	info         models.ModelInfo
	maxBatchSize int
}

// NewPredictionService wires a fitted processor and a loaded predictor.
// cache may be nil.
func NewPredictionService(
	proc *processor.DataProcessor,
	predictor neural.Predictor,
	cache Cache,
	info models.ModelInfo,
	maxBatchSize int,
) *PredictionService {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &PredictionService{
		processor:    proc,
		predictor:    predictor,
		cache:        cache,
		validate:     validator.New(),
		info:         info,
		maxBatchSize: maxBatchSize,
	}
}

// Ready reports whether both the processor and the model are available. A
// loaded model whose output width does not match the predicted conditions is
// treated as not ready rather than risking a panic on scoring.
func (s *PredictionService) Ready() bool {
	return s.processor != nil && s.processor.IsFitted() &&
		s.predictor != nil && s.predictor.OutputSize() == len(processor.TargetConditions)
}

// Predict scores a single request, consulting the cache first.
func (s *PredictionService) Predict(ctx context.Context, input *models.PredictionInput) (*models.PredictionOutput, error) {
	if !s.Ready() {
		return nil, ErrModelNotReady
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.PredictionDuration.Observe(time.Since(start).Seconds()) }()

	var key string
	if s.cache != nil {
		key = s.cache.Key(input, s.info.Version)
		if cached, ok := s.cache.Get(ctx, key); ok {
			metrics.CacheHits.Inc()
			// Cached results still count as served predictions.
			metrics.PredictionsTotal.WithLabelValues("success").Inc()
			metrics.RiskLevelCount.WithLabelValues(cached.Risks.RiskLevel).Inc()
			cached.Cached = true
			return cached, nil
		}
		metrics.CacheMisses.Inc()
	}

	features, err := s.featureMatrix([]map[string]float64{input.Flatten()})
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	probs := s.predictor.PredictProba(features)
	output := s.buildOutput(probs, 0, input)

	if s.cache != nil {
		s.cache.Set(ctx, key, output)
	}

	metrics.PredictionsTotal.WithLabelValues("success").Inc()
	metrics.RiskLevelCount.WithLabelValues(output.Risks.RiskLevel).Inc()

	return output, nil
}

// PredictBatch scores up to maxBatchSize requests in one model pass.
func (s *PredictionService) PredictBatch(ctx context.Context, batch *models.BatchPredictionInput) (*models.BatchPredictionOutput, error) {
	if !s.Ready() {
		return nil, ErrModelNotReady
	}
	if len(batch.Predictions) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(batch.Predictions) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(batch.Predictions), s.maxBatchSize)
	}

	metrics.BatchSize.Observe(float64(len(batch.Predictions)))

	records := make([]map[string]float64, len(batch.Predictions))
	for i := range batch.Predictions {
		if err := s.validateInput(&batch.Predictions[i]); err != nil {
			return nil, fmt.Errorf("prediction %d: %w", i, err)
		}
		records[i] = batch.Predictions[i].Flatten()
	}

	features, err := s.featureMatrix(records)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	probs := s.predictor.PredictProba(features)
	outputs := make([]models.PredictionOutput, len(batch.Predictions))
	for i := range batch.Predictions {
		out := s.buildOutput(probs, i, &batch.Predictions[i])
		outputs[i] = *out
		metrics.RiskLevelCount.WithLabelValues(out.Risks.RiskLevel).Inc()
	}
	metrics.PredictionsTotal.WithLabelValues("success").Add(float64(len(outputs)))

	return &models.BatchPredictionOutput{
		Predictions: outputs,
		Count:       len(outputs),
	}, nil
}

// ModelInfo describes the loaded model.
func (s *PredictionService) ModelInfo() models.ModelInfo { return s.info }

// Health reports component readiness for the health endpoint.
func (s *PredictionService) Health(ctx context.Context) models.HealthStatus {
	status := models.HealthStatus{
		ModelLoaded:     s.predictor != nil && s.predictor.OutputSize() == len(processor.TargetConditions),
		ProcessorLoaded: s.processor != nil && s.processor.IsFitted(),
		ModelVersion:    s.info.Version,
	}
	if s.cache != nil {
		status.CacheConnected = s.cache.Ping(ctx)
	}
	if status.ModelLoaded && status.ProcessorLoaded {
		status.Status = "healthy"
	} else {
		status.Status = "degraded"
	}
	return status
}

func (s *PredictionService) validateInput(input *models.PredictionInput) error {
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *PredictionService) featureMatrix(records []map[string]float64) (*mat.Dense, error) {
	frame, err := s.processor.PrepareBatch(records)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare input: %w", err)
	}
	features, err := s.processor.Transform(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to transform input: %w", err)
	}
	return features, nil
}

func (s *PredictionService) buildOutput(probs *mat.Dense, row int, input *models.PredictionInput) *models.PredictionOutput {
	risks := models.RiskScores{
		AsthmaRisk:         probs.At(row, 0),
		HeatstrokeRisk:     probs.At(row, 1),
		CardiovascularRisk: probs.At(row, 2),
		RespiratoryRisk:    probs.At(row, 3),
	}
	risks.OverallRisk = (risks.AsthmaRisk + risks.HeatstrokeRisk + risks.CardiovascularRisk + risks.RespiratoryRisk) / 4
	risks.RiskLevel = models.RiskLevel(risks.OverallRisk)

	logger.WithComponent("prediction").Debug().
		Str("user_id", input.UserID).
		Float64("overall_risk", risks.OverallRisk).
		Str("risk_level", risks.RiskLevel).
		Msg("Prediction computed")

	return &models.PredictionOutput{
		Risks:        risks,
		Timestamp:    time.Now().UTC(),
		UserID:       input.UserID,
		LocationID:   input.LocationID,
		ModelVersion: s.info.Version,
	}
}
