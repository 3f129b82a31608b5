//go:build onnx

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

const onnxMaxSeqLen = 128

// onnxEmbedder runs a sentence-transformer ONNX model in-process.
// Holding one keeps the model weights resident, so callers wrap it in
// the model lifecycle lock and Release it when done.
type onnxEmbedder struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *wordPieceTokenizer
	model     string
	dims      int
}

// newONNXEmbedder loads an ONNX model. Options: model_path (required),
// tokenizer_path, library_path, model (display name), dimension
// (default 384, all-MiniLM-L6-v2).
func newONNXEmbedder(opts map[string]string) (Embedder, error) {
	modelPath := opts["model_path"]
	if modelPath == "" {
		return nil, fmt.Errorf("onnx provider requires model_path")
	}
	dims := 384
	if d, err := strconv.Atoi(opts["dimension"]); err == nil && d > 0 {
		dims = d
	}
	name := opts["model"]
	if name == "" {
		name = "all-MiniLM-L6-v2"
	}

	if lib := opts["library_path"]; lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	tokenizerPath := opts["tokenizer_path"]
	if tokenizerPath == "" {
		tokenizerPath = strings.TrimSuffix(modelPath, ".onnx") + ".tokenizer.json"
	}
	tokenizer, err := loadWordPieceTokenizer(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &onnxEmbedder{
		session:   session,
		tokenizer: tokenizer,
		model:     name,
		dims:      dims,
	}, nil
}

func (e *onnxEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	tokens := e.tokenizer.tokenize(text)
	if len(tokens) > onnxMaxSeqLen-2 {
		tokens = tokens[:onnxMaxSeqLen-2]
	}

	inputIDs := make([]int64, onnxMaxSeqLen)
	attention := make([]int64, onnxMaxSeqLen)
	tokenTypes := make([]int64, onnxMaxSeqLen)

	inputIDs[0] = clsTokenID
	attention[0] = 1
	for i, tok := range tokens {
		inputIDs[i+1] = tok
		attention[i+1] = 1
	}
	inputIDs[len(tokens)+1] = sepTokenID
	attention[len(tokens)+1] = 1

	shape := ort.NewShape(1, int64(onnxMaxSeqLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, err
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attention)
	if err != nil {
		return nil, err
	}
	defer maskTensor.Destroy()
	typesTensor, err := ort.NewTensor(shape, tokenTypes)
	if err != nil {
		return nil, err
	}
	defer typesTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsTensor, maskTensor, typesTensor}, outputs); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}
	return e.pool(tensor, attention)
}

// pool mean-pools the hidden states over attended tokens and
// normalizes the result. Pre-pooled [1, dims] outputs pass through.
func (e *onnxEmbedder) pool(tensor *ort.Tensor[float32], attention []int64) (Vector, error) {
	data := tensor.GetData()
	shape := tensor.GetShape()

	switch len(shape) {
	case 2:
		if len(data) < e.dims {
			return nil, fmt.Errorf("output has %d values, want %d", len(data), e.dims)
		}
		out := make(Vector, e.dims)
		copy(out, data[:e.dims])
		return normalize(out), nil
	case 3:
		seqLen, hidden := int(shape[1]), int(shape[2])
		if hidden != e.dims {
			return nil, fmt.Errorf("hidden size %d, want %d", hidden, e.dims)
		}
		out := make(Vector, e.dims)
		var attended float32
		for i := 0; i < seqLen; i++ {
			if attention[i] == 0 {
				continue
			}
			attended++
			base := i * hidden
			for j := 0; j < hidden; j++ {
				out[j] += data[base+j]
			}
		}
		if attended == 0 {
			return nil, fmt.Errorf("no attended tokens")
		}
		for j := range out {
			out[j] /= attended
		}
		return normalize(out), nil
	default:
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
}

func (e *onnxEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	return embedSequential(ctx, e, texts)
}

func (e *onnxEmbedder) ModelName() string { return e.model }
func (e *onnxEmbedder) Dimension() int    { return e.dims }

// Release destroys the session, dropping the model weights.
func (e *onnxEmbedder) Release() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}

const (
	unkTokenID = 100
	clsTokenID = 101
	sepTokenID = 102
)

type wordPieceTokenizer struct {
	vocab map[string]int
}

func loadWordPieceTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer %s has no vocabulary", path)
	}
	return &wordPieceTokenizer{vocab: parsed.Model.Vocab}, nil
}

func (t *wordPieceTokenizer) tokenize(text string) []int64 {
	var tokens []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}
		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}
		tokens = append(tokens, t.subwords(word)...)
	}
	return tokens
}

// subwords greedily matches the longest vocab prefix, tagging
// continuations with the ## prefix per WordPiece.
func (t *wordPieceTokenizer) subwords(word string) []int64 {
	var out []int64
	start := 0
	for start < len(word) {
		matched := false
		for end := len(word); end > start; end-- {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				out = append(out, int64(id))
				start = end
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, unkTokenID)
			start++
		}
	}
	return out
}
