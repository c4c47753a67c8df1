package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/climatehealth/healthrisk/internal/config"
	"github.com/climatehealth/healthrisk/internal/database/repositories"
	"github.com/climatehealth/healthrisk/internal/neural"
	"github.com/climatehealth/healthrisk/internal/processor"
	"github.com/climatehealth/healthrisk/internal/training"
	"github.com/climatehealth/healthrisk/pkg/database"
	"github.com/climatehealth/healthrisk/pkg/logger"
)

const syntheticSamples = 1000

// RunTrain fits the data processor and the model, optionally running k-fold
// cross-validation first, and saves both artifacts. When the database is
// unreachable or empty it falls back to synthetic data so the pipeline stays
// testable end to end.
func RunTrain(crossValidate, synthetic bool) {
	log := logger.Get()

	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	X, y := loadDataset(cfg, synthetic)

	proc, err := processor.NewDataProcessor(cfg.Training.ScalerKind, cfg.Training.ImputerKind, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create data processor")
	}

	features, err := proc.FitTransform(X, y)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fit data processor")
	}

	targets, err := y.Matrix(proc.TargetNames())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build target matrix")
	}

	fitted, err := proc.FittedFeatureNames()
	if err != nil {
		log.Fatal().Err(err).Msg("Processor reported unfitted after fit")
	}

	netCfg := neural.Config{
		InputSize:    len(fitted),
		HiddenSize:   cfg.Model.HiddenSize,
		OutputSize:   len(proc.TargetNames()),
		Dropout:      cfg.Model.Dropout,
		HiddenLayers: cfg.Model.HiddenLayers,
	}

	opts := training.Options{
		Epochs:            cfg.Training.Epochs,
		BatchSize:         cfg.Training.BatchSize,
		LearningRate:      cfg.Training.LearningRate,
		Patience:          cfg.Training.Patience,
		MinDelta:          cfg.Training.MinDelta,
		SchedulerPatience: cfg.Training.SchedulerPatience,
		SchedulerFactor:   cfg.Training.SchedulerFactor,
		ValidationSplit:   cfg.Training.ValidationSplit,
		Seed:              cfg.Training.Seed,
	}

	ctx := context.Background()

	if crossValidate {
		cvResult, err := training.CrossValidate(ctx, netCfg, features, targets, cfg.Training.CVFolds, opts)
		if err != nil {
			log.Fatal().Err(err).Msg("Cross-validation failed")
		}
		log.Info().
			Float64("mean_auc", cvResult.MeanAUC).
			Float64("std_auc", cvResult.StdAUC).
			Msg("Cross-validation results")
	}

	net := neural.NewNetwork(netCfg, cfg.Training.Seed)
	result, err := training.Train(ctx, net, features, targets, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}

	log.Info().
		Int("epochs", result.Epochs).
		Float64("best_val_loss", result.BestValLoss).
		Float64("val_auc", result.FinalValAUC).
		Bool("stopped_early", result.Stopped).
		Msg("Training complete")

	if err := os.MkdirAll(filepath.Dir(cfg.Model.Path), 0o750); err != nil {
		log.Fatal().Err(err).Msg("Failed to create model directory")
	}
	if err := proc.Save(cfg.Model.ProcessorPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to save data processor")
	}
	if err := net.Save(cfg.Model.Path); err != nil {
		log.Fatal().Err(err).Msg("Failed to save model")
	}
}

// loadDataset reads training data from the database, falling back to
// synthetic data when forced or when the database cannot serve it.
func loadDataset(cfg *config.Config, synthetic bool) (*processor.Frame, *processor.Frame) {
	log := logger.Get()

	if synthetic {
		return training.GenerateSyntheticData(syntheticSamples, cfg.Training.Seed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("Database unavailable, falling back to synthetic data")
		return training.GenerateSyntheticData(syntheticSamples, cfg.Training.Seed)
	}
	defer db.Close()

	repo := repositories.NewTrainingDataRepository(db)
	X, y, err := repo.LoadTrainingData(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load training data, falling back to synthetic data")
		return training.GenerateSyntheticData(syntheticSamples, cfg.Training.Seed)
	}
	return X, y
}
