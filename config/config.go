package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Dataset struct {
		Path         string `yaml:"path"`
		TargetColumn string `yaml:"target_column"`
	} `yaml:"dataset"`
	Training struct {
		Seed            int64   `yaml:"seed"`
		TestRatio       float64 `yaml:"test_ratio"`
		SmoteNeighbors  int     `yaml:"smote_neighbors"`
		Trees           int     `yaml:"trees"`
		MaxDepth        int     `yaml:"max_depth"`
		MinSamplesSplit int     `yaml:"min_samples_split"`
		MaxFeatures     int     `yaml:"max_features"`
	} `yaml:"training"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	UI struct {
		Title           string `yaml:"title"`
		BackgroundImage string `yaml:"background_image"`
		LogoImage       string `yaml:"logo_image"`
	} `yaml:"ui"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Log Log `yaml:"log"`
}

type Log struct {
	Level      string `yaml:"level"`
	Encoding   string `yaml:"encoding"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default holds the values used for anything config.yaml leaves out.
func Default() *Config {
	var c Config
	c.Dataset.Path = "heart.csv"
	c.Dataset.TargetColumn = "target"
	c.Training.Seed = 2
	c.Training.TestRatio = 0.2
	c.Training.SmoteNeighbors = 5
	c.Training.Trees = 100
	c.Training.MinSamplesSplit = 2
	c.Database.Path = "heart_predictions.db"
	c.Http.Port = 8080
	c.Http.Timeout = 30 * time.Second
	c.Http.AllowedOrigins = []string{"*"}
	c.UI.Title = "Heart Disease Prediction System"
	c.UI.BackgroundImage = "background.png"
	c.UI.LogoImage = "heart.png"
	c.Cache.Size = 256
	c.Log.Level = "info"
	c.Log.Encoding = "console"
	c.Log.MaxSizeMB = 50
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 28
	return &c
}

// Load decodes path over Default. A missing file is not an error.
func Load(path string) (*Config, error) {
	config := Default()

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Dataset.Path == "":
		return errors.New("dataset.path is required")
	case c.Database.Path == "":
		return errors.New("database.path is required")
	case c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1:
		return fmt.Errorf("training.test_ratio must be in (0,1), got %v", c.Training.TestRatio)
	case c.Training.Trees < 1:
		return fmt.Errorf("training.trees must be positive, got %d", c.Training.Trees)
	case c.Training.SmoteNeighbors < 1:
		return fmt.Errorf("training.smote_neighbors must be positive, got %d", c.Training.SmoteNeighbors)
	case c.Training.MaxDepth < 0 || c.Training.MaxFeatures < 0:
		return errors.New("training.max_depth and training.max_features cannot be negative")
	case c.Http.Port <= 0 || c.Http.Port > 65535:
		return fmt.Errorf("http.port out of range: %d", c.Http.Port)
	}
	return nil
}
