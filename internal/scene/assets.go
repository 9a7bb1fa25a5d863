package scene

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrAssetsNotReady is returned when playback is requested before the
// initial asset barrier has cleared.
var ErrAssetsNotReady = errors.New("assets not ready")

// Model is a resolved renderable handle.
type Model struct {
	Name    string
	Path    string
	Version string // glTF asset version, empty for builtin models
	Nodes   int
	Meshes  int
}

// ModelLoader resolves a named model file into a renderable handle.
type ModelLoader interface {
	LoadModel(ctx context.Context, url string) (*Model, error)
}

// Manifest names the model files of the initial scene.
type Manifest struct {
	Field       string
	Ball        string
	LeftPlayer  string
	RightPlayer string
}

// DefaultManifest matches the asset layout shipped with the viewer.
func DefaultManifest() Manifest {
	return Manifest{
		Field:       "soccer_field/scene.gltf",
		Ball:        "soccer_ball/scene.gltf",
		LeftPlayer:  "player_blue/player_blue.gltf",
		RightPlayer: "player_red/player_red.gltf",
	}
}

// GLTFLoader reads glTF JSON headers from a directory on disk.
type GLTFLoader struct {
	Root string
}

type gltfHeader struct {
	Asset struct {
		Version string `json:"version"`
	} `json:"asset"`
	Nodes  []json.RawMessage `json:"nodes"`
	Meshes []json.RawMessage `json:"meshes"`
}

// LoadModel implements ModelLoader.
func (l GLTFLoader) LoadModel(ctx context.Context, url string) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(l.Root, filepath.FromSlash(strings.TrimPrefix(url, "/")))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	var hdr gltfHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, fmt.Errorf("parse gltf %s: %w", url, err)
	}
	if hdr.Asset.Version == "" {
		return nil, fmt.Errorf("parse gltf %s: missing asset.version", url)
	}

	return &Model{
		Name:    modelName(url),
		Path:    path,
		Version: hdr.Asset.Version,
		Nodes:   len(hdr.Nodes),
		Meshes:  len(hdr.Meshes),
	}, nil
}

// BuiltinLoader resolves every url to a primitive model drawn by the
// rasterizer. Used when no asset directory is configured.
type BuiltinLoader struct{}

// LoadModel implements ModelLoader.
func (BuiltinLoader) LoadModel(ctx context.Context, url string) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Model{Name: modelName(url), Path: "builtin:" + url}, nil
}

func modelName(url string) string {
	return strings.TrimSuffix(filepath.Base(url), filepath.Ext(url))
}

// AssetFuture is the pending result of one model load.
type AssetFuture struct {
	URL   string
	done  chan struct{}
	model *Model
	err   error
}

// Done is closed when the load finishes.
func (f *AssetFuture) Done() <-chan struct{} { return f.done }

// Await blocks until the load finishes or ctx is cancelled.
func (f *AssetFuture) Await(ctx context.Context) (*Model, error) {
	select {
	case <-f.done:
		return f.model, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LoadingManager tracks every issued load and exposes a single readiness
// flag. Failures are logged and keep the manager permanently not ready.
type LoadingManager struct {
	loader ModelLoader

	mu     sync.Mutex
	total  int
	loaded int
	failed int
	closed bool // no more initial loads will be issued
}

// NewLoadingManager wraps a loader.
func NewLoadingManager(loader ModelLoader) *LoadingManager {
	return &LoadingManager{loader: loader}
}

// Load starts resolving url in the background.
func (m *LoadingManager) Load(ctx context.Context, url string) *AssetFuture {
	f := &AssetFuture{URL: url, done: make(chan struct{})}

	m.mu.Lock()
	m.total++
	m.mu.Unlock()

	go func() {
		defer close(f.done)
		f.model, f.err = m.loader.LoadModel(ctx, url)

		m.mu.Lock()
		defer m.mu.Unlock()
		if f.err != nil {
			m.failed++
			log.Error().Err(f.err).Str("url", url).Msg("❌ Error loading asset")
			return
		}
		m.loaded++
		log.Debug().Msgf("Loading %s: %d / %d", url, m.loaded, m.total)
	}()
	return f
}

// Seal marks the initial asset set as complete. Ready can only become true
// after Seal.
func (m *LoadingManager) Seal() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Ready reports whether every initial asset loaded successfully.
func (m *LoadingManager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed && m.failed == 0 && m.loaded == m.total
}

// Progress returns loaded, failed and total counts.
func (m *LoadingManager) Progress() (loaded, failed, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded, m.failed, m.total
}

// Build issues the initial loads for the manifest and joins them. Each team
// model is loaded once and instantiated rosterSize times.
func Build(ctx context.Context, m *LoadingManager, manifest Manifest, rosterSize int) (*Registry, error) {
	futures := []*AssetFuture{
		m.Load(ctx, manifest.Field),
		m.Load(ctx, manifest.Ball),
		m.Load(ctx, manifest.LeftPlayer),
		m.Load(ctx, manifest.RightPlayer),
	}
	m.Seal()

	models := make([]*Model, len(futures))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range futures {
		i, f := i, f
		g.Go(func() error {
			model, err := f.Await(gctx)
			if err != nil {
				return fmt.Errorf("load %s: %w", f.URL, err)
			}
			models[i] = model
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reg := NewRegistry(models[0], models[1], models[2], models[3], rosterSize)
	log.Info().Int("players", 2*rosterSize).Msg("✅ Scene assets loaded")
	return reg, nil
}
