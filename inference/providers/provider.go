// Package providers - execution providers for the ONNX Runtime session.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Backend represents an ONNX Runtime execution provider.
type Backend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend Backend = "cpu"
	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend Backend = "cuda"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend Backend = "coreml"
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend Backend = "openvino"
)

// ErrUnknownBackend is returned for a backend that is not one of the constants above.
var ErrUnknownBackend = errors.New("unknown execution provider backend")

// Config selects and configures the execution provider of a session.
type Config struct {
	// Backend specifies the execution provider to use.
	Backend Backend `json:"backend" yaml:"backend"`

	// IntraOpThreads parallelizes execution within graph nodes. Zero uses the runtime default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`

	// InterOpThreads parallelizes execution across independent graph nodes. Zero uses the
	// runtime default.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`

	// Sequential disables parallel execution of independent graph nodes.
	Sequential bool `json:"sequential" yaml:"sequential"`

	CUDA     CUDAOptions     `json:"cuda"     yaml:"cuda"`
	CoreML   CoreMLOptions   `json:"coreml"   yaml:"coreml"`
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
}

// DefaultConfig returns a CPU configuration with runtime-chosen thread counts.
func DefaultConfig() Config {
	return Config{
		Backend:  CPUProviderBackend,
		OpenVINO: DefaultOpenVINOOptions(),
	}
}

// Validate checks the configuration.
//
// Returns:
//   - error: ErrUnknownBackend (wrapped) or an error for negative thread counts.
func (c Config) Validate() error {
	switch c.Backend {
	case CPUProviderBackend, CUDAProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend:
	default:
		return errors.Wrapf(ErrUnknownBackend, "%q", c.Backend)
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return errors.Errorf("thread counts must not be negative, got intra=%d inter=%d",
			c.IntraOpThreads, c.InterOpThreads)
	}
	return nil
}

// SessionOptions builds native session options and appends the configured
// execution provider.
//
// The ONNX Runtime environment must be initialized. The caller owns the returned
// options and must Destroy them.
//
// Returns:
//   - *ort.SessionOptions: The session options.
//   - error: An error if the options cannot be created or the provider cannot be enabled.
func (c Config) SessionOptions() (*ort.SessionOptions, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := c.apply(options); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func (c Config) apply(options *ort.SessionOptions) error {
	if err := options.SetIntraOpNumThreads(c.IntraOpThreads); err != nil {
		return errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(c.InterOpThreads); err != nil {
		return errors.Wrap(err, "error setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "error setting graph optimization level")
	}
	if err := options.SetExecutionMode(c.executionMode()); err != nil {
		return errors.Wrap(err, "error setting execution mode")
	}

	switch c.Backend {
	case CUDAProviderBackend:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(c.CUDA.ProviderOptions()); err != nil {
			return errors.Wrap(err, "error converting CUDA options")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(c.CoreML.Flags()); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case OpenVINOProviderBackend:
		if err := options.AppendExecutionProviderOpenVINO(c.OpenVINO.ProviderOptions()); err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	}
	return nil
}

// executionMode maps Sequential onto the runtime's execution mode.
func (c Config) executionMode() ort.ExecutionMode {
	if c.Sequential {
		return ort.ExecutionMode(ort.ExecutionModeSequential)
	}
	return ort.ExecutionMode(ort.ExecutionModeParallel)
}
