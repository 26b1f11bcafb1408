package fileicon

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tevino/abool"
)

// Loader extracts icons from the OS and encodes them as images.
// A Loader holds no per-run state and is safe for concurrent use if its
// IconSource and Surface are.
type Loader struct {
	source  IconSource
	surface Surface
	decoder Decoder
	encoder Encoder
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithPlatform sets both the icon source and the drawing surface.
func WithPlatform(p Platform) Option {
	return func(l *Loader) {
		l.source = p
		l.surface = p
	}
}

// WithSource sets the icon source.
func WithSource(s IconSource) Option {
	return func(l *Loader) { l.source = s }
}

// WithSurface sets the drawing surface used to read bitmaps.
func WithSurface(s Surface) Option {
	return func(l *Loader) { l.surface = s }
}

// WithDecoder replaces the default BMP decoder.
func WithDecoder(d Decoder) Option {
	return func(l *Loader) { l.decoder = d }
}

// WithEncoder sets the output encoder. Defaults to PNG.
func WithEncoder(e Encoder) Option {
	return func(l *Loader) { l.encoder = e }
}

// WithLogger sets the logger. Defaults to discarding all output.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader. Without WithPlatform, or both WithSource and
// WithSurface, the OS binding is used.
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{
		decoder: BMPDecoder{},
		encoder: PNGEncoder{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.source == nil || l.surface == nil {
		p, err := NewSystemSource()
		if err != nil {
			return nil, err
		}
		if l.source == nil {
			l.source = p
		}
		if l.surface == nil {
			l.surface = p
		}
	}
	return l, nil
}

// Encoder returns the encoder the loader produces output with.
func (l *Loader) Encoder() Encoder {
	return l.encoder
}

// Load extracts and encodes the icon of path. Any failure is returned as an
// *Error and no partial output is produced.
func (l *Loader) Load(path string) ([]byte, error) {
	r := &run{loader: l, path: path, stage: StageStart}
	return r.execute()
}

// LoadIcon starts loading the icon of path in the background.
func (l *Loader) LoadIcon(path string) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.data, p.err = l.Load(path)
	}()
	return p
}

var defaultLoader = sync.OnceValues(func() (*Loader, error) {
	return NewLoader()
})

// LoadIcon starts loading the icon of path with the OS binding and PNG output.
func LoadIcon(path string) *Pending {
	l, err := defaultLoader()
	if err != nil {
		p := &Pending{done: make(chan struct{})}
		p.err = &Error{
			Kind:  kindOf(err, ErrUnsupportedPlatform),
			Stage: StageHandleAcquired,
			Path:  path,
			Err:   err,
		}
		close(p.done)
		return p
	}
	return l.LoadIcon(path)
}

// Pending is the result of a single icon load. It completes exactly once and
// cannot be restarted or canceled.
type Pending struct {
	done chan struct{}
	data []byte
	err  error
}

// Done is closed when the load has completed.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the load completes or ctx is done. Giving up on ctx does
// not stop the load itself.
func (p *Pending) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-p.done:
		return p.data, p.err
	default:
	}

	select {
	case <-p.done:
		return p.data, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// iconGuard releases an icon handle exactly once.
type iconGuard struct {
	source   IconSource
	icon     IconHandle
	released *abool.AtomicBool
}

func newIconGuard(source IconSource, icon IconHandle) *iconGuard {
	return &iconGuard{
		source:   source,
		icon:     icon,
		released: abool.New(),
	}
}

// release frees the handle. Later calls do nothing.
func (g *iconGuard) release() bool {
	if !g.released.SetToIf(false, true) {
		return false
	}
	g.source.ReleaseIcon(g.icon)
	return true
}

// run is one pass through the pipeline.
type run struct {
	loader *Loader
	path   string
	stage  Stage
}

func (r *run) advance(s Stage) {
	r.stage = s
	r.loader.logger.Debug("icon stage reached", "path", r.path, "stage", s.String())
}

// fail builds the error for a failure while moving to stage target.
func (r *run) fail(target Stage, plane Plane, kind, err error) error {
	e := &Error{
		Kind:  kindOf(err, kind),
		Stage: target,
		Plane: plane,
		Path:  r.path,
		Err:   err,
	}
	r.loader.logger.Warn("icon load failed",
		"path", r.path,
		"stage", target.String(),
		"plane", string(plane),
		"err", err,
	)
	return e
}

func (r *run) execute() ([]byte, error) {
	l := r.loader

	icon, err := l.source.ExtractIcon(r.path)
	if err != nil {
		return nil, r.fail(StageHandleAcquired, PlaneNone, ErrNotFound, err)
	}
	guard := newIconGuard(l.source, icon)
	defer func() {
		if guard.release() {
			r.advance(StageReleased)
		}
	}()
	r.advance(StageHandleAcquired)

	colorBmp, maskBmp, err := l.source.SplitIcon(icon)
	if err != nil {
		return nil, r.fail(StageColorDIBRead, PlaneNone, ErrQuery, err)
	}

	colorDIB, err := ReadBitmap(l.surface, colorBmp)
	if err != nil {
		return nil, r.fail(StageColorDIBRead, PlaneColor, ErrQuery, err)
	}
	r.advance(StageColorDIBRead)

	maskDIB, err := ReadBitmap(l.surface, maskBmp)
	if err != nil {
		return nil, r.fail(StageMaskDIBRead, PlaneMask, ErrQuery, err)
	}
	r.advance(StageMaskDIBRead)

	colorFile := colorDIB.Bitmap()
	r.advance(StageColorAssembled)
	maskFile := maskDIB.Bitmap()
	r.advance(StageMaskAssembled)

	colorGrid, err := l.decoder.Decode(colorFile)
	if err != nil {
		return nil, r.fail(StageColorDecoded, PlaneColor, ErrDecode, err)
	}
	r.advance(StageColorDecoded)

	maskGrid, err := l.decoder.Decode(maskFile)
	if err != nil {
		return nil, r.fail(StageMaskDecoded, PlaneMask, ErrDecode, err)
	}
	r.advance(StageMaskDecoded)

	img, err := Resolve(colorGrid, colorDIB.BitDepth(), maskGrid)
	if err != nil {
		return nil, r.fail(StageAlphaResolved, PlaneNone, ErrGeometryMismatch, err)
	}
	r.advance(StageAlphaResolved)

	data, err := l.encoder.Encode(img)
	if err != nil {
		return nil, r.fail(StageEncoded, PlaneNone, ErrEncode, err)
	}
	if len(data) == 0 {
		return nil, r.fail(StageEncoded, PlaneNone, ErrEncode, errors.New("encoder produced no data"))
	}
	r.advance(StageEncoded)

	return data, nil
}
