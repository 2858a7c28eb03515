package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"nexus-terminal-go/internal/models"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// LoadProviderProfile reads the provider profile YAML. A missing file is only
// an error when required is set; otherwise built-in defaults are returned.
func LoadProviderProfile(profileFile string, required bool) (models.ProviderProfile, error) {
	var profilePath string
	if filepath.IsAbs(profileFile) {
		profilePath = profileFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return models.ProviderProfile{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		profilePath = filepath.Join(wd, profileFile)
	}

	data, err := os.ReadFile(profilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			zap.L().Debug("No provider profile, using defaults", zap.String("file", profileFile))
			return models.DefaultProviderProfile(), nil
		}
		return models.ProviderProfile{}, fmt.Errorf("unable to read %s: %w", profileFile, err)
	}

	var profile models.ProviderProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return models.ProviderProfile{}, fmt.Errorf("unable to parse %s: %w", profileFile, err)
	}

	if profile.CardProduct.ExpirationYears < 0 {
		return models.ProviderProfile{}, fmt.Errorf("card_product.expiration_years must not be negative in %s", profileFile)
	}
	for i, product := range profile.Link.Products {
		if product == "" {
			return models.ProviderProfile{}, fmt.Errorf("link product at index %d is empty in %s", i, profileFile)
		}
	}

	zap.L().Info("Loaded provider profile", zap.String("file", profilePath))
	return profile.WithDefaults(), nil
}
