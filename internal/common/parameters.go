package common

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type parametersFile struct {
	Parameters models.ParametersDocument `yaml:"parameters"`
}

// LoadParameters reads and validates the bootstrap parameters file
func LoadParameters(parametersFile string) (*models.Parameters, error) {
	path, err := resolvePath(parametersFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", parametersFile, err)
	}

	var doc parametersFile
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", parametersFile, err)
	}

	params, err := doc.Parameters.ToParameters()
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", parametersFile, err)
	}
	if err := pool.ValidateParameters(params); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", parametersFile, err)
	}

	return params, nil
}

// BootstrapParameters stores the file's parameters on first start. Once the
// pool has parameters the file is ignored. A missing file is not an error.
func BootstrapParameters(ctx context.Context, p *pool.Service, parametersFile string) error {
	params, err := LoadParameters(parametersFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if _, err := p.Parameters(ctx); err != nil {
				zap.L().Warn("No parameters file and pool is not initialized",
					zap.String("file", parametersFile),
					zap.Error(err))
			}
			return nil
		}
		return err
	}

	created, err := p.InitializeParameters(ctx, params)
	if err != nil {
		return err
	}
	if !created {
		zap.L().Debug("Pool parameters already stored, ignoring file",
			zap.String("file", parametersFile))
	}
	return nil
}

func resolvePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(wd, file), nil
}
