package registry

import "log/slog"

// PushOption configures a Pusher.
type PushOption func(*Pusher)

// WithTags applies additional tags to the pushed manifest.
//
// The primary tag is always applied first. These tags are applied after
// the manifest was pushed.
func WithTags(tags ...string) PushOption {
	return func(p *Pusher) {
		p.tags = append(p.tags, tags...)
	}
}

// WithAnnotations sets custom annotations on the manifest.
//
// org.opencontainers.image.created is set automatically and can be
// overridden.
func WithAnnotations(annotations map[string]string) PushOption {
	return func(p *Pusher) {
		if p.annotations == nil {
			p.annotations = make(map[string]string)
		}
		for k, v := range annotations {
			p.annotations[k] = v
		}
	}
}

// WithTitle sets the org.opencontainers.image.title annotation of the
// archive layer, typically a file name such as "bundle.zip".
func WithTitle(title string) PushOption {
	return func(p *Pusher) {
		p.title = title
	}
}

// WithTempDir sets the directory used to spool the archive before upload.
// Default is os.TempDir.
func WithTempDir(dir string) PushOption {
	return func(p *Pusher) {
		p.tempDir = dir
	}
}

// WithLogger sets the logger for push diagnostics.
func WithLogger(logger *slog.Logger) PushOption {
	return func(p *Pusher) {
		p.logger = logger
	}
}
