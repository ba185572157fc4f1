package scaling

import (
	"context"
	"fmt"
	"log"
)

// Variant is one entry in the ordered derivation list: static metadata plus
// a lazy producer for the actual bytes. Descriptors hold no rendering
// resources until the producer is invoked.
type Variant struct {
	UUID     string
	Name     string
	Producer *Producer
}

// BuilderConfig wires a Builder. Renderer and NewID are required; Exif may
// be nil when EXIF preservation is disabled, Detector defaults to the
// filetype-backed implementation.
type BuilderConfig struct {
	Options  Options
	Caps     Capabilities
	Renderer Renderer
	Exif     ExifRestorer
	Detector Detector
	NewID    func() string
	Logger   *log.Logger
}

// Builder enumerates variant descriptors for a reference image. It never
// evaluates a producer itself.
type Builder struct {
	opts     Options
	caps     Capabilities
	detector Detector
	newID    func() string
	gen      Generator
}

func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if cfg.NewID == nil {
		return nil, fmt.Errorf("id allocator is required")
	}
	if cfg.Detector == nil {
		cfg.Detector = NewFiletypeDetector(cfg.Caps)
	}

	return &Builder{
		opts:     cfg.Options,
		caps:     cfg.Caps,
		detector: cfg.Detector,
		newID:    cfg.NewID,
		gen: Generator{
			Renderer:    cfg.Renderer,
			Exif:        cfg.Exif,
			IncludeExif: cfg.Options.IncludeExif,
			FailureText: cfg.Options.FailureText,
			Logger:      cfg.Logger,
		},
	}, nil
}

// BuildVariants returns the variant descriptors for ref, ascending by max
// size, with the untouched reference appended last when SendOriginal is
// set. A reference that cannot be rendered natively yields no size-derived
// variants, only the optional passthrough.
func (b *Builder) BuildVariants(ref Reference) []Variant {
	variants := make([]Variant, 0, len(b.opts.Sizes)+1)

	if b.detector.IsPreviewable(ref.Blob) {
		for _, size := range OrderSizes(b.opts.Sizes) {
			negotiated := NegotiateType(b.opts.DefaultType, size.Type, ref.Blob.MIME, b.caps)
			opts := RenderOptions{
				MaxSize: size.MaxSize,
				Orient:  b.opts.Orient,
				Type:    negotiated,
				Quality: b.opts.DefaultQuality,
			}

			variants = append(variants, Variant{
				UUID: b.newID(),
				Name: DeriveName(ref.Name, size.Name, negotiated, ref.Blob.MIME),
				Producer: NewProducer(func(ctx context.Context) (Blob, error) {
					return b.gen.Generate(ctx, ref, opts)
				}),
			})
		}
	}

	if b.opts.SendOriginal {
		variants = append(variants, Variant{
			UUID:     ref.UUID,
			Name:     ref.Name,
			Producer: Resolved(ref.Blob),
		})
	}

	return variants
}
