package providers

// CoreML provider flags.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
const (
	coreMLUseCPUOnly           uint32 = 0x001
	coreMLEnableOnSubgraph     uint32 = 0x002
	coreMLOnlyDeviceWithANE    uint32 = 0x004
	coreMLOnlyStaticInputShape uint32 = 0x008
)

// CoreMLOptions contains arguments for the CoreML provider.
type CoreMLOptions struct {
	// Limit CoreML to running on CPU only.
	CPUOnly bool `json:"cpu_only" yaml:"cpu_only"`
	// Enable CoreML on subgraphs in the body of control flow operators.
	EnableOnSubgraphs bool `json:"enable_on_subgraphs" yaml:"enable_on_subgraphs"`
	// Only enable CoreML on devices with an Apple Neural Engine.
	RequireANE bool `json:"require_ane" yaml:"require_ane"`
	// Only take nodes whose inputs have static shapes.
	RequireStaticInputShapes bool `json:"require_static_input_shapes" yaml:"require_static_input_shapes"`
}

// Flags returns the bit flags accepted by the CoreML provider.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	if o.CPUOnly {
		flags |= coreMLUseCPUOnly
	}
	if o.EnableOnSubgraphs {
		flags |= coreMLEnableOnSubgraph
	}
	if o.RequireANE {
		flags |= coreMLOnlyDeviceWithANE
	}
	if o.RequireStaticInputShapes {
		flags |= coreMLOnlyStaticInputShape
	}
	return flags
}
