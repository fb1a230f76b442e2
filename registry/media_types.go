package registry

// Media types for archives in OCI registries.
const (
	// ArtifactType identifies zipstream archives as an OCI 1.1 artifact type.
	ArtifactType = "application/vnd.meigma.zipstream.v1"

	// MediaTypeArchive is the media type of the archive layer.
	MediaTypeArchive = "application/zip"
)
