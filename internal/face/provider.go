package face

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider talks to an embedding model service over HTTP. The service
// accepts a raw image and answers with the best face's normalized embedding
// and a quality score, or detected=false when it finds no face.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type embedResponse struct {
	Detected  bool      `json:"detected"`
	Embedding []float32 `json:"embedding"`
	Quality   float64   `json:"quality"`
}

func (p *HTTPProvider) Embed(ctx context.Context, image []byte) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed", bytes.NewReader(image))
	if err != nil {
		return Frame{}, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Frame{}, fmt.Errorf("read embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, body)
	}

	var out embedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Frame{}, fmt.Errorf("decode embed response: %w", err)
	}
	if !out.Detected || len(out.Embedding) == 0 {
		return Frame{}, ErrNoFaceDetected
	}
	return Frame{Vector: out.Embedding, Quality: out.Quality}, nil
}

// StubProvider derives a deterministic pseudo-embedding from the image
// bytes. It keeps the enrollment and identification flows testable without
// a model service; identical images always map to identical vectors.
type StubProvider struct {
	Dim int
}

func (s StubProvider) Embed(ctx context.Context, image []byte) (Frame, error) {
	if len(image) == 0 {
		return Frame{}, ErrNoFaceDetected
	}
	dim := s.Dim
	if dim <= 0 {
		dim = 32
	}
	raw := make([]float64, dim)
	seed := sha256.Sum256(image)
	for i := 0; i < dim; i++ {
		if i%len(seed) == 0 && i > 0 {
			seed = sha256.Sum256(seed[:])
		}
		raw[i] = float64(seed[i%len(seed)]) - 127.5
	}
	return Frame{Vector: normalize(raw), Quality: 1}, nil
}
