// Package config - YAML configuration of the detector process.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/logger"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/models/yolov5"
)

// Model describes the model file and its input and output layout.
type Model struct {
	Name        model.Name   `yaml:"name"`
	Family      model.Family `yaml:"family"`
	Path        string       `yaml:"path"`
	InputWidth  int          `yaml:"input_width"`
	InputHeight int          `yaml:"input_height"`
	Classes     int          `yaml:"classes"`
	InputName   string       `yaml:"input_name"`
	OutputName  string       `yaml:"output_name"`
	// Labels overrides the family's class names.
	Labels []string `yaml:"labels"`
	// Library is the ONNX Runtime shared library path.
	Library string `yaml:"library"`
}

// Thresholds holds the post-processing thresholds.
type Thresholds struct {
	Objectness      float32 `yaml:"objectness"`
	ClassConfidence float32 `yaml:"class_confidence"`
	IoU             float32 `yaml:"iou"`
	MaxResults      int     `yaml:"max_results"`
	ClassAware      bool    `yaml:"class_aware"`
}

// Server configures the HTTP API.
type Server struct {
	Address string `yaml:"address"`
	// MaxBodyBytes bounds uploaded images.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// MaxPixels bounds the decoded size of uploaded images.
	MaxPixels int64 `yaml:"max_pixels"`
}

// Config is the process configuration.
type Config struct {
	Model      Model            `yaml:"model"`
	Provider   providers.Config `yaml:"provider"`
	Thresholds Thresholds       `yaml:"thresholds"`
	Workers    int              `yaml:"workers"`
	Logging    logger.Config    `yaml:"logging"`
	Server     Server           `yaml:"server"`
}

// Default returns the configuration of a stock YOLOv5 640x640 COCO export.
func Default() Config {
	opts := yolov5.DefaultOptions()
	return Config{
		Model: Model{
			Name:        opts.Name,
			Family:      opts.Family,
			Path:        "yolov5s.onnx",
			InputWidth:  opts.InputWidth,
			InputHeight: opts.InputHeight,
			Classes:     opts.Classes,
			InputName:   opts.Inputs[0],
			OutputName:  opts.Outputs[0],
		},
		Provider: providers.DefaultConfig(),
		Thresholds: Thresholds{
			Objectness:      opts.ObjectnessThreshold,
			ClassConfidence: opts.ClassConfidenceThreshold,
			IoU:             opts.NMS.IoUThreshold,
			MaxResults:      opts.NMS.MaxResults,
			ClassAware:      opts.NMS.ClassAware,
		},
		Server: Server{
			Address:      ":8080",
			MaxBodyBytes: 32 << 20,
			MaxPixels:    40_000_000,
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep their
// default values.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The validated configuration.
//   - error: A read, parse or validation error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
//
// Returns:
//   - error: postprocess.ErrInvalidThreshold (wrapped) for an out-of-range
//     threshold, providers.ErrUnknownBackend (wrapped) for an unknown provider, or
//     an error describing another invalid value.
func (c Config) Validate() error {
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if c.Model.Labels != nil && len(c.Model.Labels) != c.Model.Classes {
		return errors.Errorf("model.labels has %d entries, model.classes is %d",
			len(c.Model.Labels), c.Model.Classes)
	}
	if c.Workers < 0 {
		return errors.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Server.MaxPixels <= 0 {
		return errors.Errorf("server.max_pixels must be positive, got %d", c.Server.MaxPixels)
	}
	if err := c.Provider.Validate(); err != nil {
		return errors.Wrap(err, "provider")
	}
	if _, err := models.NewModel(c.ModelOptions()); err != nil {
		return err
	}
	return nil
}

// ModelOptions converts the configuration into model options.
func (c Config) ModelOptions() model.Options {
	return model.Options{
		Name:                     c.Model.Name,
		Family:                   c.Model.Family,
		Path:                     c.Model.Path,
		InputWidth:               c.Model.InputWidth,
		InputHeight:              c.Model.InputHeight,
		Classes:                  c.Model.Classes,
		Inputs:                   []string{c.Model.InputName},
		Outputs:                  []string{c.Model.OutputName},
		ObjectnessThreshold:      c.Thresholds.Objectness,
		ClassConfidenceThreshold: c.Thresholds.ClassConfidence,
		NMS: postprocess.NMSConfig{
			IoUThreshold: c.Thresholds.IoU,
			MaxResults:   c.Thresholds.MaxResults,
			ClassAware:   c.Thresholds.ClassAware,
		},
		Workers: c.Workers,
	}
}
