package providers

import "strconv"

// Precision represents the inference precision requested from OpenVINO.
type Precision string

const (
	// PrecisionAccuracy executes with the model's own input precision.
	PrecisionAccuracy Precision = "ACCURACY"
	// PrecisionFP32 represents 32-bit floating point precision.
	PrecisionFP32 Precision = "FP32"
	// PrecisionFP16 represents 16-bit floating point precision.
	PrecisionFP16 Precision = "FP16"
)

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type (CPU, GPU, NPU).
	DeviceType string `json:"device_type" yaml:"device_type"`
	// Supported precisions for HW {CPU:FP32, GPU:[FP32, FP16, ACCURACY], NPU:FP16}.
	Precision Precision `json:"precision" yaml:"precision"`
	// Overrides the accelerator default number of threads. Zero leaves the default.
	NumOfThreads int `json:"num_of_threads" yaml:"num_of_threads"`
	// Overrides the accelerator default streams. Zero leaves the default.
	NumStreams int `json:"num_streams" yaml:"num_streams"`
	// Directory for the compiled model cache. Empty disables caching.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`
}

// DefaultOpenVINOOptions targets the CPU at FP32.
func DefaultOpenVINOOptions() OpenVINOOptions {
	return OpenVINOOptions{DeviceType: "CPU", Precision: PrecisionFP32}
}

// ProviderOptions returns the key/value form accepted by the OpenVINO provider.
func (o OpenVINOOptions) ProviderOptions() map[string]string {
	opts := map[string]string{}
	if o.DeviceType != "" {
		opts["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		opts["precision"] = string(o.Precision)
	}
	if o.NumOfThreads > 0 {
		opts["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	if o.NumStreams > 0 {
		opts["num_streams"] = strconv.Itoa(o.NumStreams)
	}
	if o.CacheDir != "" {
		opts["cache_dir"] = o.CacheDir
	}
	return opts
}
