package faces

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	"media-catalog/internal/embedding"
	"media-catalog/internal/logging"
)

// ArcFace input and output layout.
const (
	modelInputSide = 112
	modelEmbedDim  = 512
	modelInputName = "input.1"
	modelOutput    = "683"
)

// modelBackend proposes regions with the cascade and describes each one
// with an ONNX face-embedding model. The session lives on a pinned thread.
type modelBackend struct {
	thread  *lockedThread
	cascade *Cascade
	maxDim  int

	// Owned by the pinned thread.
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func newModelBackend(modelPath, runtimeLib string, maxDim int) (*modelBackend, error) {
	m := &modelBackend{cascade: NewCascade(), maxDim: maxDim}

	thread, err := startLockedThread(func() error {
		if runtimeLib != "" {
			ort.SetSharedLibraryPath(runtimeLib)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("init onnx runtime: %w", err)
		}
		if err := m.open(modelPath); err != nil {
			m.release()
			_ = ort.DestroyEnvironment()
			return err
		}
		return nil
	}, func() {
		m.release()
		if err := ort.DestroyEnvironment(); err != nil {
			logging.Warn("failed to destroy onnx runtime: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	m.thread = thread
	logging.Info("Face embedding model loaded from %s", modelPath)
	return m, nil
}

func (m *modelBackend) open(modelPath string) error {
	var err error
	m.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, modelInputSide, modelInputSide))
	if err != nil {
		return fmt.Errorf("create input tensor: %w", err)
	}
	m.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, modelEmbedDim))
	if err != nil {
		return fmt.Errorf("create output tensor: %w", err)
	}
	m.session, err = ort.NewAdvancedSession(modelPath,
		[]string{modelInputName}, []string{modelOutput},
		[]ort.Value{m.input}, []ort.Value{m.output}, nil)
	if err != nil {
		return fmt.Errorf("create embedder session: %w", err)
	}
	return nil
}

func (m *modelBackend) release() {
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	if m.input != nil {
		m.input.Destroy()
		m.input = nil
	}
	if m.output != nil {
		m.output.Destroy()
		m.output = nil
	}
}

func (m *modelBackend) detect(ctx context.Context, path string) (*frame, []Detection, error) {
	img, f, err := loadFrame(path, m.maxDim)
	if err != nil {
		return nil, nil, err
	}

	dets := m.cascade.Detect(f.plane)
	for i := range dets {
		b := dets[i].Box
		crop := imaging.Crop(img, image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height))
		data := chwNormalized(imaging.Resize(crop, modelInputSide, modelInputSide, imaging.Linear))

		var vec embedding.Vector
		err := m.thread.do(ctx, func() error {
			copy(m.input.GetData(), data)
			if err := m.session.Run(); err != nil {
				return fmt.Errorf("run embedding: %w", err)
			}
			vec = make(embedding.Vector, modelEmbedDim)
			copy(vec, m.output.GetData())
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		embedding.Normalize(vec)
		dets[i].Embedding = vec
	}
	return f, dets, nil
}

// chwNormalized lays img out as planar RGB scaled to [-1, 1].
func chwNormalized(img *image.NRGBA) []float32 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := make([]float32, 3*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := img.Pix[y*img.Stride+x*4:]
			idx := y*w + x
			out[idx] = (float32(p[0]) - 127.5) / 127.5
			out[w*h+idx] = (float32(p[1]) - 127.5) / 127.5
			out[2*w*h+idx] = (float32(p[2]) - 127.5) / 127.5
		}
	}
	return out
}

func (m *modelBackend) close() {
	m.thread.stop()
}
