package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/debemdeboas/draftroom/internal/config"
	"github.com/debemdeboas/draftroom/internal/logger"
	"github.com/debemdeboas/draftroom/internal/model"
	"github.com/debemdeboas/draftroom/internal/repository"
	"github.com/debemdeboas/draftroom/internal/repository/editor"
)

type platformsFlag []model.PlatformID

func (f *platformsFlag) String() string {
	parts := make([]string, len(*f))
	for i, p := range *f {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

func (f *platformsFlag) Set(v string) error {
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*f = append(*f, model.PlatformID(p))
		}
	}
	return nil
}

// main copies autosave slots from one storage backend to another.
func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	from := flag.String("from", "", "Source storage backend")
	fromPath := flag.String("from-path", "", "Source path for sqlite/file backends")
	to := flag.String("to", "", "Destination storage backend")
	toPath := flag.String("to-path", "", "Destination path for sqlite/file backends")
	deleteSource := flag.Bool("delete", false, "Delete each slot from the source after copying")
	var platforms platformsFlag
	flag.Var(&platforms, "platform", "Platform slot to copy, repeatable or comma separated")
	flag.Parse()

	log := logger.New("info", logger.FormatConsole)
	repository.SetLogger(log)

	if *from == "" || *to == "" || len(platforms) == 0 {
		log.Fatal().Msg("-from, -to and at least one -platform are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()
	src, err := repository.Open(ctx, storageFor(cfg.Storage, *from, *fromPath))
	if err != nil {
		log.Fatal().Err(err).Str("backend", *from).Msg("Error opening source")
	}
	defer src.Close()

	dst, err := repository.Open(ctx, storageFor(cfg.Storage, *to, *toPath))
	if err != nil {
		log.Fatal().Err(err).Str("backend", *to).Msg("Error opening destination")
	}
	defer dst.Close()

	copied, err := migrate(ctx, src, dst, cfg.Autosave.Namespace, platforms, *deleteSource)
	if err != nil {
		log.Error().Err(err).Int("copied", copied).Msg("Migration finished with errors")
		os.Exit(1)
	}
	log.Info().Int("copied", copied).Msg("Migration finished")
}

func storageFor(base config.StorageConfig, backend, path string) config.StorageConfig {
	base.Backend = backend
	if path != "" {
		base.Path = path
	}
	return base
}

// migrate copies each platform slot verbatim, keeping its lastModified.
// Missing slots are skipped.
func migrate(ctx context.Context, src, dst repository.Repository, namespace string, platforms []model.PlatformID, deleteSource bool) (int, error) {
	var errs []error
	copied := 0
	for _, p := range platforms {
		key := editor.Key(namespace, p)

		value, err := src.Get(ctx, key)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", p, err))
			continue
		}
		if err := dst.Set(ctx, key, value); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", p, err))
			continue
		}
		copied++

		if deleteSource {
			if err := src.Delete(ctx, key); err != nil {
				errs = append(errs, fmt.Errorf("delete %s: %w", p, err))
			}
		}
	}
	return copied, errors.Join(errs...)
}
