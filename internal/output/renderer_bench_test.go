package output

import (
	"bytes"
	"testing"
)

// Benchmark rendering performance

func BenchmarkTextRenderer_RenderStatus(b *testing.B) {
	snap := sampleSnapshot()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		r := &TextRenderer{w: &buf}
		r.RenderStatus("prod", snap)
	}
}

func BenchmarkJSONRenderer_RenderStatus(b *testing.B) {
	snap := sampleSnapshot()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		r := &JSONRenderer{w: &buf}
		r.RenderStatus("prod", snap)
	}
}
