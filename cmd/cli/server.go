package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/climatehealth/healthrisk/internal/api"
	"github.com/climatehealth/healthrisk/internal/api/handlers"
	"github.com/climatehealth/healthrisk/internal/cache"
	"github.com/climatehealth/healthrisk/internal/config"
	"github.com/climatehealth/healthrisk/internal/models"
	"github.com/climatehealth/healthrisk/internal/neural"
	"github.com/climatehealth/healthrisk/internal/processor"
	"github.com/climatehealth/healthrisk/internal/services"
	"github.com/climatehealth/healthrisk/pkg/logger"
)

// verifyPortAvailable checks if the given port is available for use.
func verifyPortAvailable(host, port string) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return fmt.Errorf("port %s is not available: %w", port, err)
	}
	ln.Close()
	return nil
}

// loadPredictor loads the configured model artifacts: an ensemble when
// ensemble paths are set, a single network otherwise.
func loadPredictor(cfg *config.Config) (neural.Predictor, models.ModelInfo, error) {
	if len(cfg.Model.EnsemblePaths) > 0 {
		ens, err := neural.LoadEnsemble(cfg.Model.EnsemblePaths)
		if err != nil {
			return nil, models.ModelInfo{}, err
		}
		info := models.ModelInfo{
			Version:      cfg.Model.Version,
			OutputSize:   ens.OutputSize(),
			EnsembleSize: ens.Size(),
		}
		return ens, info, nil
	}

	net, err := neural.LoadNetwork(cfg.Model.Path)
	if err != nil {
		return nil, models.ModelInfo{}, err
	}
	netCfg := net.Config()
	info := models.ModelInfo{
		Version:        cfg.Model.Version,
		InputSize:      netCfg.InputSize,
		HiddenSize:     netCfg.HiddenSize,
		OutputSize:     netCfg.OutputSize,
		HiddenLayers:   netCfg.HiddenLayers,
		ParameterCount: net.ParameterCount(),
	}
	return net, info, nil
}

func RunServer() {
	log := logger.Get()

	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	proc, err := processor.LoadDataProcessor(cfg.Model.ProcessorPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Model.ProcessorPath).Msg("Failed to load data processor")
	}

	predictor, info, err := loadPredictor(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load model")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The cache is optional: serving continues without it.
	var predictionCache services.Cache
	redisCache, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, serving without cache")
	} else {
		predictionCache = redisCache
		defer redisCache.Close()
	}

	service := services.NewPredictionService(proc, predictor, predictionCache, info, cfg.Server.MaxBatchSize)
	predictionHandler := handlers.NewPredictionHandler(service)
	router := api.NewRouter(predictionHandler, cfg.Server.Endpoint)

	if err := verifyPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatal().
			Err(err).
			Str("host", cfg.Server.Host).
			Str("port", cfg.Server.Port).
			Msg("Server port is not available")
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Info().
			Str("address", server.Addr).
			Str("model_version", info.Version).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-stopChan
	log.Info().Msg("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	} else {
		log.Info().Msg("Server HTTP connections gracefully closed")
	}

	log.Info().Msg("Shutdown complete")
}
