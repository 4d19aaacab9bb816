//go:build gocv

package inference

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolo/logger"
)

// DNNSession is an Inferer backed by the OpenCV DNN module. It takes the same
// planar [1, 3, H, W] input as ONNXSession.
type DNNSession struct {
	mu     sync.Mutex
	net    gocv.Net
	width  int
	height int
	output []float32
	closed bool
}

// NewDNNSession loads an ONNX model into OpenCV.
//
// Arguments:
//   - modelPath: The path to the ONNX model file.
//   - width: The model input width.
//   - height: The model input height.
//
// Returns:
//   - *DNNSession: The session.
//   - error: An error if the model cannot be loaded.
func NewDNNSession(modelPath string, width, height int) (*DNNSession, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid input size: %dx%d", width, height)
	}
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, errors.Errorf("error reading network model from %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendOpenCV); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "error setting DNN backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "error setting DNN target")
	}

	logger.Log().Info("model loaded", zap.String("path", modelPath), zap.String("provider", "opencv"))
	return &DNNSession{net: net, width: width, height: height}, nil
}

// Infer implements Inferer.
func (s *DNNSession) Infer(input []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("session closed")
	}
	if want := 3 * s.width * s.height; len(input) != want {
		return nil, errors.Errorf("input holds %d floats, model needs %d", len(input), want)
	}

	raw := unsafe.Slice((*byte)(unsafe.Pointer(&input[0])), len(input)*4)
	blob, err := gocv.NewMatWithSizesFromBytes([]int{1, 3, s.height, s.width}, gocv.MatTypeCV32F, raw)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input blob")
	}
	defer blob.Close()

	s.net.SetInput(blob, "")
	out := s.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "error reading network output")
	}
	s.output = append(s.output[:0], data...)
	return s.output, nil
}

// Close releases the network.
func (s *DNNSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.net.Close()
}
