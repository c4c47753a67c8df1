package cli

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/climatehealth/healthrisk/internal/config"
	"github.com/climatehealth/healthrisk/pkg/logger"
)

const migrationDir = "migrations"

// GetMigrationFiles lists the migration scripts of the given direction. Up
// migrations apply in ascending version order, down migrations unwind in
// descending order.
func GetMigrationFiles(dir, migrationType string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*."+migrationType+".sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		versionI := strings.Split(filepath.Base(files[i]), "_")[0]
		versionJ := strings.Split(filepath.Base(files[j]), "_")[0]
		if migrationType == "down" {
			return versionI > versionJ
		}
		return versionI < versionJ
	})

	return files, nil
}

func RunMigrate(down bool) {
	log := logger.Get()

	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Error().Err(err).Msg("Failed to load config")
		return
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return
	}
	defer db.Close()

	migrationType := "up"
	if down {
		migrationType = "down"
	}

	migrationFiles, err := GetMigrationFiles(migrationDir, migrationType)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get migration files")
		return
	}

	if len(migrationFiles) == 0 {
		log.Error().Msgf("No %s migration files found", migrationType)
		return
	}

	for _, sqlFile := range migrationFiles {
		log.Info().Str("file", filepath.Base(sqlFile)).Msgf("Executing %s migration", migrationType)

		migrationSQL, err := os.ReadFile(sqlFile)
		if err != nil {
			log.Error().Err(err).Msg("Failed to read migration file")
			return
		}

		if _, err := db.Exec(string(migrationSQL)); err != nil {
			log.Error().Err(err).Msg("Failed to execute migration")
			return
		}

		log.Info().Str("file", filepath.Base(sqlFile)).Msg("Migration completed successfully")
	}
}
