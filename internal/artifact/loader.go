package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/budgetopt/budgetopt/internal/model"
	"github.com/budgetopt/budgetopt/internal/store"
)

// ArtifactName returns the object name for area in format f, e.g. "rural_model.json".
func ArtifactName(area model.AreaType, f Format) string {
	return area.Key() + "_model" + f.Extension()
}

type entry struct {
	info  Info
	model *LinearModel
}

// Loader resolves area types to predictors. Decoded models are kept per
// area for the loader's lifetime and reloaded when the artifact changes.
type Loader struct {
	src   Source
	cache *store.Cache
	log   zerolog.Logger

	mu     sync.Mutex
	loaded map[model.AreaType]entry
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache enables the persistent decoded-artifact cache.
func WithCache(c *store.Cache) Option {
	return func(l *Loader) { l.cache = c }
}

// WithLogger sets the loader's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// NewLoader returns a loader reading from src.
func NewLoader(src Source, opts ...Option) *Loader {
	l := &Loader{
		src:    src,
		log:    zerolog.Nop(),
		loaded: make(map[model.AreaType]entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Source returns the loader's artifact source.
func (l *Loader) Source() Source {
	return l.src
}

// Resolve finds the artifact that Load would use for area.
func (l *Loader) Resolve(ctx context.Context, area model.AreaType) (Info, Format, error) {
	for _, f := range formats {
		info, err := l.src.Stat(ctx, ArtifactName(area, f))
		if err == nil {
			return info, f, nil
		}
		if !errors.Is(err, ErrArtifactNotFound) {
			return Info{}, "", err
		}
	}

	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = ArtifactName(area, f)
	}
	return Info{}, "", fmt.Errorf("%w: no %s model at %s (looked for %s)",
		ErrArtifactNotFound, area, l.src, strings.Join(names, ", "))
}

// Load returns the predictor for area.
func (l *Loader) Load(ctx context.Context, area model.AreaType) (model.Predictor, error) {
	info, f, err := l.Resolve(ctx, area)
	if err != nil {
		l.Invalidate(area)
		return nil, err
	}

	l.mu.Lock()
	cached, ok := l.loaded[area]
	l.mu.Unlock()
	if ok && cached.info.sameVersion(info) {
		return cached.model, nil
	}

	m, err := l.decode(ctx, area, info, f)
	if err != nil {
		l.Invalidate(area)
		return nil, err
	}

	l.mu.Lock()
	l.loaded[area] = entry{info: info, model: m}
	l.mu.Unlock()

	l.log.Debug().
		Str("area", area.Key()).
		Str("location", info.Location).
		Int64("size", info.Size).
		Msg("model loaded")
	return m, nil
}

// Invalidate drops the model held for area, including its persistent
// cache row when one was written.
func (l *Loader) Invalidate(area model.AreaType) {
	l.mu.Lock()
	e, ok := l.loaded[area]
	delete(l.loaded, area)
	l.mu.Unlock()
	if ok {
		l.evict(e.info.Location)
	}
}

func (l *Loader) evict(location string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.DeleteArtifact(location); err != nil {
		l.log.Debug().Err(err).Str("location", location).Msg("artifact cache delete failed")
	}
}

// Warm loads every area type, returning the failures by area.
func (l *Loader) Warm(ctx context.Context) map[model.AreaType]error {
	failed := make(map[model.AreaType]error)
	for _, area := range model.AreaTypes() {
		if _, err := l.Load(ctx, area); err != nil {
			failed[area] = err
		}
	}
	return failed
}

func (l *Loader) decode(ctx context.Context, area model.AreaType, info Info, f Format) (*LinearModel, error) {
	if doc, ok := l.fromCache(info); ok {
		m, err := NewLinearModel(doc)
		if err == nil {
			return m, nil
		}
		l.log.Debug().Err(err).Str("location", info.Location).Msg("cached artifact rejected")
		l.evict(info.Location)
	}

	doc, err := l.read(ctx, info, f)
	if err != nil {
		return nil, err
	}
	m, err := NewLinearModel(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", info.Location, err)
	}
	l.toCache(area, info, f, doc)
	return m, nil
}

func (l *Loader) read(ctx context.Context, info Info, f Format) (*Document, error) {
	rc, err := l.src.Open(ctx, info.Name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	doc, err := Decode(rc, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", info.Location, err)
	}
	return doc, nil
}

func (l *Loader) fromCache(info Info) (*Document, bool) {
	if l.cache == nil {
		return nil, false
	}
	rec, ok, err := l.cache.GetArtifact(info.Location)
	if err != nil {
		l.log.Debug().Err(err).Str("location", info.Location).Msg("artifact cache read failed")
		return nil, false
	}
	if !ok || !rec.Matches(info.Size, info.ModTime.UnixNano(), info.ETag) {
		return nil, false
	}

	var doc Document
	if err := msgpack.Unmarshal(rec.Blob, &doc); err != nil {
		l.evict(info.Location)
		return nil, false
	}
	return &doc, true
}

func (l *Loader) toCache(area model.AreaType, info Info, f Format, doc *Document) {
	if l.cache == nil {
		return
	}
	blob, err := msgpack.Marshal(doc)
	if err != nil {
		return
	}
	err = l.cache.SaveArtifact(store.ArtifactRecord{
		Location:  info.Location,
		Area:      area.Key(),
		Format:    string(f),
		SizeBytes: info.Size,
		MtimeNs:   info.ModTime.UnixNano(),
		ETag:      info.ETag,
		Blob:      blob,
	})
	if err != nil {
		l.log.Debug().Err(err).Str("location", info.Location).Msg("artifact cache write failed")
	}
}
