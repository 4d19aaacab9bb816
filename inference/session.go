package inference

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/logger"
)

var (
	environmentOnce sync.Once
	environmentErr  error
)

// InitializeEnvironment loads the ONNX Runtime shared library. It runs once per
// process; later calls return the first result.
//
// Arguments:
//   - libraryPath: The shared library path. Empty resolves through
//     providers.SharedLibraryPath.
//
// Returns:
//   - error: An error if the library is missing or fails to initialize.
func InitializeEnvironment(libraryPath string) error {
	environmentOnce.Do(func() {
		path := providers.SharedLibraryPath(libraryPath)
		if _, err := os.Stat(path); err != nil {
			environmentErr = errors.Wrapf(err, "ONNX Runtime library not found at %s", path)
			return
		}
		ort.SetSharedLibraryPath(path)
		if err := ort.InitializeEnvironment(); err != nil {
			environmentErr = errors.Wrap(err, "error initializing ORT environment")
			return
		}
		logger.Log().Info("onnxruntime initialized", zap.String("library", path))
	})
	return environmentErr
}

// NewONNXSessionArgs represents the arguments for creating an ONNX Runtime session.
type NewONNXSessionArgs struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// InputName and OutputName are the graph node names. Empty defaults to
	// "images" and "output0".
	InputName, OutputName string
	// InputWidth and InputHeight are the model input size.
	InputWidth, InputHeight int
	// Anchors and Dimensions give the output shape [1, Anchors, Dimensions].
	Anchors, Dimensions int
	// Provider selects the execution provider.
	Provider providers.Config
}

// ONNXSession is an Inferer backed by an onnxruntime AdvancedSession with
// preallocated input [1, 3, H, W] and output [1, anchors, dimensions] tensors.
type ONNXSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNXSession creates a session. InitializeEnvironment must have succeeded.
//
// Arguments:
//   - args: The session arguments.
//
// Returns:
//   - *ONNXSession: The session.
//   - error: An error if tensors, options or the session cannot be created.
func NewONNXSession(args NewONNXSessionArgs) (*ONNXSession, error) {
	if args.InputWidth <= 0 || args.InputHeight <= 0 {
		return nil, errors.Errorf("invalid input size: %dx%d", args.InputWidth, args.InputHeight)
	}
	if args.Anchors <= 0 || args.Dimensions <= 0 {
		return nil, errors.Errorf("invalid output shape: [1, %d, %d]", args.Anchors, args.Dimensions)
	}
	if args.InputName == "" {
		args.InputName = "images"
	}
	if args.OutputName == "" {
		args.OutputName = "output0"
	}

	input, err := ort.NewEmptyTensor[float32](
		ort.NewShape(1, 3, int64(args.InputHeight), int64(args.InputWidth)))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}

	output, err := ort.NewEmptyTensor[float32](
		ort.NewShape(1, int64(args.Anchors), int64(args.Dimensions)))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := args.Provider.SessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.InputName},
		[]string{args.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	logger.Log().Info("model loaded",
		zap.String("path", args.ModelPath),
		zap.String("provider", string(args.Provider.Backend)),
		zap.Int("anchors", args.Anchors),
		zap.Int("dimensions", args.Dimensions),
	)

	return &ONNXSession{session: session, input: input, output: output}, nil
}

// Infer implements Inferer. The returned slice aliases the output tensor.
func (s *ONNXSession) Infer(input []float32) ([]float32, error) {
	if s.session == nil {
		return nil, errors.New("session closed")
	}
	dst := s.input.GetData()
	if len(input) != len(dst) {
		return nil, errors.Errorf("input holds %d floats, model needs %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}
	return s.output.GetData(), nil
}

// Close releases the resources associated with the session.
func (s *ONNXSession) Close() error {
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		if err != nil {
			return errors.Wrap(err, "error destroying ORT session")
		}
		logger.Log().Info("session closed")
	}
	return nil
}
