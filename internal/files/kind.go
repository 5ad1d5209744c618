package files

import (
	"path/filepath"
	"strings"

	"github.com/Zenkai92/Modelify/internal/projects/domain"
)

// kindByExt is the closed set of accepted reference files. The kind is
// decided here, once, when the file enters the system.
var kindByExt = map[string]domain.AttachmentKind{
	".jpg":  domain.AttachmentImage,
	".jpeg": domain.AttachmentImage,
	".png":  domain.AttachmentImage,
	".gif":  domain.AttachmentImage,
	".webp": domain.AttachmentImage,
	".stl":  domain.AttachmentModel,
	".obj":  domain.AttachmentModel,
	".f3d":  domain.AttachmentModel,
	".gltf": domain.AttachmentModel,
	".glb":  domain.AttachmentModel,
	".pdf":  domain.AttachmentDocument,
}

// KindForFilename maps a file name to its attachment kind. Unsupported
// extensions are a validation problem, not an upstream one.
func KindForFilename(name string) (domain.AttachmentKind, error) {
	ext := strings.ToLower(filepath.Ext(name))
	kind, ok := kindByExt[ext]
	if !ok {
		return "", &domain.ValidationError{Field: "files", Reason: "unsupported file type " + ext}
	}
	return kind, nil
}
