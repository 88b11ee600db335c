//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/ytrag/pkg/utils"
)

var ortInit sync.Once
var ortInitErr error

// ONNXEmbedder runs a local sentence-transformer model with ONNX Runtime and mean-pools
// the last hidden state into one vector per text. It requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  Tokenizer
	dimensions int
	maxTokens  int
	mu         sync.Mutex
}

// ONNXOptions configures NewONNXEmbedder.
type ONNXOptions struct {
	ModelPath     string
	TokenizerPath string // tokenizer.json; empty uses SimpleTokenizer
	LibraryPath   string // onnxruntime shared library; empty uses the runtime default
	Dimensions    int
	MaxTokens     int
}

// NewONNXEmbedder loads the model and tokenizer. The ONNX environment is initialized once per process.
func NewONNXEmbedder(opts ONNXOptions) (*ONNXEmbedder, error) {
	if opts.ModelPath == "" {
		return nil, errors.New("onnx model path is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 256
	}
	ortInit.Do(func() {
		if opts.LibraryPath != "" {
			ort.SetSharedLibraryPath(opts.LibraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", ortInitErr)
	}

	var tk Tokenizer = &SimpleTokenizer{}
	if opts.TokenizerPath != "" {
		hf, err := LoadHFTokenizer(opts.TokenizerPath)
		if err != nil {
			return nil, err
		}
		tk = hf
	}

	session, err := ort.NewDynamicAdvancedSession(
		opts.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:    session,
		tokenizer:  tk,
		dimensions: opts.Dimensions,
		maxTokens:  opts.MaxTokens,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch tokenizes texts as one padded batch and runs a single inference.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, mask, err := e.tokenizer.EncodeBatch(texts, e.maxTokens)
	if err != nil {
		return nil, err
	}
	batch := int64(len(ids))
	seqLen := int64(len(ids[0]))
	shape := ort.NewShape(batch, seqLen)

	flatIDs := make([]int64, 0, batch*seqLen)
	flatMask := make([]int64, 0, batch*seqLen)
	for i := range ids {
		flatIDs = append(flatIDs, ids[i]...)
		flatMask = append(flatMask, mask[i]...)
	}
	typeIDs := make([]int64, batch*seqLen)

	idsT, err := ort.NewTensor(shape, flatIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, flatMask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskT.Destroy()
	typeT, err := ort.NewTensor(shape, typeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer typeT.Destroy()

	outputs := []ort.Value{nil}
	e.mu.Lock()
	err = e.session.Run([]ort.Value{idsT, maskT, typeT}, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("unexpected ONNX output type")
	}
	dims := hidden.GetShape()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected ONNX output shape %v", dims)
	}
	hiddenSize := int(dims[2])
	if e.dimensions == 0 {
		e.dimensions = hiddenSize
	}
	return meanPool(hidden.GetData(), flatMask, int(batch), int(seqLen), hiddenSize), nil
}

// meanPool averages token vectors weighted by the attention mask and L2-normalizes the result.
func meanPool(data []float32, mask []int64, batch, seqLen, hidden int) [][]float32 {
	out := make([][]float32, batch)
	for b := 0; b < batch; b++ {
		vec := make([]float32, hidden)
		var count float32
		for s := 0; s < seqLen; s++ {
			if mask[b*seqLen+s] == 0 {
				continue
			}
			count++
			base := (b*seqLen + s) * hidden
			for h := 0; h < hidden; h++ {
				vec[h] += data[base+h]
			}
		}
		if count > 0 {
			for h := range vec {
				vec[h] /= count
			}
		}
		utils.NormalizeL2(vec)
		out[b] = vec
	}
	return out
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session.
func (e *ONNXEmbedder) Close() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}
