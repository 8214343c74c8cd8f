package drift

import (
	gopath "path"
	"strings"
)

// mimeByExt maps lowercase file extensions to mime types. Unknown
// extensions yield no mime type; callers may still supply one explicitly.
var mimeByExt = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".html": "text/html",
	".htm":  "text/html",
	".xml":  "application/xml",
	".json": "application/json",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".ts":   "application/typescript",
	".css":  "text/css",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".bmp":  "image/bmp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".wasm": "application/wasm",
}

// MimeFromPath infers a mime type from the path's extension.
// Returns "" for unknown extensions.
func MimeFromPath(p string) string {
	ext := strings.ToLower(gopath.Ext(p))
	return mimeByExt[ext]
}
