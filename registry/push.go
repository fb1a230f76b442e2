package registry

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	orasregistry "oras.land/oras-go/v2/registry"

	"github.com/meigma/zipstream/sink"
)

// Pusher publishes archives to an OCI target under a tag.
type Pusher struct {
	target      oras.Target
	tag         string
	tags        []string
	annotations map[string]string
	title       string
	tempDir     string
	logger      *slog.Logger
}

// NewPusher returns a Pusher that tags manifests in target with tag.
// The tag must not be a digest.
func NewPusher(target oras.Target, tag string, opts ...PushOption) (*Pusher, error) {
	if tag == "" {
		return nil, fmt.Errorf("%w: reference must include a tag", ErrInvalidReference)
	}
	if err := (orasregistry.Reference{Reference: tag}).ValidateReferenceAsTag(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}

	p := &Pusher{target: target, tag: tag}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p, nil
}

// Result describes a published archive.
type Result struct {
	// Manifest is the descriptor of the tagged artifact manifest.
	Manifest ocispec.Descriptor

	// Layer is the descriptor of the archive blob.
	Layer ocispec.Descriptor
}

// Push consumes seq and publishes it.
//
// The archive is spooled to a temporary file first, because registries
// need the digest before the upload completes. If seq fails nothing is
// uploaded and the error is returned unchanged.
func (p *Pusher) Push(ctx context.Context, seq iter.Seq2[[]byte, error]) (Result, error) {
	start := time.Now()

	spool, err := os.CreateTemp(p.tempDir, "zipstream-push-*")
	if err != nil {
		return Result{}, fmt.Errorf("create spool file: %w", err)
	}
	defer func() {
		_ = spool.Close()           //nolint:errcheck // read-only at this point
		_ = os.Remove(spool.Name()) //nolint:errcheck // best-effort cleanup
	}()

	res, err := sink.Drain(ctx, seq, spool)
	if err != nil {
		return Result{}, err
	}
	if res.Size == 0 {
		return Result{}, ErrEmptyArchive
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("rewind spool file: %w", err)
	}

	layer := ocispec.Descriptor{
		MediaType: MediaTypeArchive,
		Digest:    res.Digest,
		Size:      res.Size,
	}
	if p.title != "" {
		layer.Annotations = map[string]string{ocispec.AnnotationTitle: p.title}
	}
	if err := p.pushLayer(ctx, layer, spool); err != nil {
		return Result{}, err
	}

	manifest, err := oras.PackManifest(ctx, p.target, oras.PackManifestVersion1_1, ArtifactType,
		oras.PackManifestOptions{
			Layers:              []ocispec.Descriptor{layer},
			ManifestAnnotations: p.manifestAnnotations(),
		})
	if err != nil {
		return Result{}, fmt.Errorf("push manifest: %w", err)
	}

	for _, tag := range append([]string{p.tag}, p.tags...) {
		if err := p.target.Tag(ctx, manifest, tag); err != nil {
			return Result{}, fmt.Errorf("tag %q: %w", tag, err)
		}
	}

	p.logger.Info("archive pushed",
		"tag", p.tag, "manifest", manifest.Digest, "layer", layer.Digest,
		"bytes", layer.Size, "duration", time.Since(start))
	return Result{Manifest: manifest, Layer: layer}, nil
}

// pushLayer uploads the archive blob unless the target already has it.
func (p *Pusher) pushLayer(ctx context.Context, layer ocispec.Descriptor, r io.Reader) error {
	exists, err := p.target.Exists(ctx, layer)
	if err != nil {
		return fmt.Errorf("check layer: %w", err)
	}
	if exists {
		p.logger.Debug("archive layer already present", "digest", layer.Digest)
		return nil
	}
	if err := p.target.Push(ctx, layer, r); err != nil {
		return fmt.Errorf("push layer: %w", err)
	}
	return nil
}

func (p *Pusher) manifestAnnotations() map[string]string {
	annotations := make(map[string]string, len(p.annotations)+1)
	for k, v := range p.annotations {
		annotations[k] = v
	}
	if _, ok := annotations[ocispec.AnnotationCreated]; !ok {
		annotations[ocispec.AnnotationCreated] = time.Now().UTC().Format(time.RFC3339)
	}
	return annotations
}
