//go:build !onnx

package provider

import "fmt"

// newONNXEmbedder reports that local inference was not compiled in.
// Build with -tags onnx to enable it.
func newONNXEmbedder(opts map[string]string) (Embedder, error) {
	return nil, fmt.Errorf("onnx provider requires building with -tags onnx")
}
