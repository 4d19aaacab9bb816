package providers

import (
	"os"
	"runtime"
)

// SharedLibraryEnv overrides the location of the ONNX Runtime shared library.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// SharedLibraryPath returns the path to the ONNX Runtime shared library for the
// current platform.
//
// Arguments:
//   - configured: A path from configuration. Empty falls back to the environment and
//     then to the platform default.
//
// Returns:
//   - string: The path to the shared library.
func SharedLibraryPath(configured string) string {
	if configured != "" {
		return configured
	}
	if p := os.Getenv(SharedLibraryEnv); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}
