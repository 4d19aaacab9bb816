package postprocess

import (
	"fmt"
	"math/rand"
	"testing"
)

// 25200 anchors x 85 floats is the YOLOv5 640x640 COCO output.
func BenchmarkDecode(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	output := randomOutput(r, 25200, 85)

	for _, workers := range []int{1, 4, 0} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			args := square640(85)
			args.ImageWidth = 1920
			args.ImageHeight = 1080
			args.Workers = workers

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := Decode(output, args); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSuppress(b *testing.B) {
	r := rand.New(rand.NewSource(2))

	for _, n := range []int{32, 256, 2048} {
		input := randomDetections(r, n)
		config := NMSConfig{IoUThreshold: 0.45}

		b.Run(fmt.Sprintf("linear/n=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = suppress(input, config, false)
			}
		})
		b.Run(fmt.Sprintf("indexed/n=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = suppress(input, config, true)
			}
		})
	}
}
