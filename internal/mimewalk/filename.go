package mimewalk

import (
	"strings"

	"github.com/google/uuid"
)

var extensionBySubtype = map[string]string{
	"jpeg":         "jpg",
	"jpg":          "jpg",
	"pjpeg":        "jpg",
	"png":          "png",
	"gif":          "gif",
	"bmp":          "bmp",
	"webp":         "webp",
	"svg+xml":      "svg",
	"tiff":         "tiff",
	"heic":         "heic",
	"pdf":          "pdf",
	"msword":       "doc",
	"vnd.ms-excel": "xls",
	"zip":          "zip",
	"plain":        "txt",
	"html":         "html",
	"csv":          "csv",
	"calendar":     "ics",
	"rfc822":       "eml",
	"octet-stream": "bin",

	"vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"vnd.openxmlformats-officedocument.spreadsheetml.sheet":       "xlsx",
}

// imageSubtypes lists subtypes that are images even when sent as text/<subtype>.
var imageSubtypes = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
	"webp": true,
	"tiff": true,
	"tif":  true,
}

// ExtensionFor maps a MIME subtype to a file extension, defaulting to "bin".
func ExtensionFor(subtype string) string {
	if ext, ok := extensionBySubtype[strings.ToLower(subtype)]; ok {
		return ext
	}
	return "bin"
}

// Filename resolves the name an attachment part is stored under: the
// content-disposition filename, then the content-type name, then a
// generated attachment_<uuid>.<ext>.
func Filename(h *Header) string {
	if name := strings.TrimSpace(h.DispositionParam("filename")); name != "" {
		return name
	}
	if name := strings.TrimSpace(h.Param("name")); name != "" {
		return name
	}
	return "attachment_" + uuid.NewString() + "." + ExtensionFor(h.Subtype)
}

func isImage(h *Header) bool {
	switch h.Type {
	case "image":
		return true
	case "text":
		return imageSubtypes[h.Subtype]
	default:
		return false
	}
}
