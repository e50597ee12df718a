// Package iconclass derives an icon's IconKind from its backing path,
// following the fixed precedence rules in the protocol's data model:
// symlink, then directory, then extension table, then executable bit,
// else plain file.
package iconclass

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/banksean/deskicond/internal/wire"
)

// extensionTable maps a lowercased, dot-free extension to the IconKind it
// implies. Fixed and case-insensitive per the glossary.
var extensionTable = map[string]wire.IconKind{
	"sh": wire.KindExecutable, "bash": wire.KindExecutable, "zsh": wire.KindExecutable,
	"fish": wire.KindExecutable, "py": wire.KindExecutable, "rb": wire.KindExecutable, "pl": wire.KindExecutable,

	"png": wire.KindImage, "jpg": wire.KindImage, "jpeg": wire.KindImage, "gif": wire.KindImage,
	"bmp": wire.KindImage, "svg": wire.KindImage, "webp": wire.KindImage, "ico": wire.KindImage,

	"pdf": wire.KindDocument, "doc": wire.KindDocument, "docx": wire.KindDocument, "odt": wire.KindDocument,
	"txt": wire.KindDocument, "md": wire.KindDocument, "rst": wire.KindDocument,

	"zip": wire.KindArchive, "tar": wire.KindArchive, "gz": wire.KindArchive, "bz2": wire.KindArchive,
	"xz": wire.KindArchive, "7z": wire.KindArchive, "rar": wire.KindArchive, "zst": wire.KindArchive,

	"mp4": wire.KindVideo, "mkv": wire.KindVideo, "avi": wire.KindVideo, "mov": wire.KindVideo,
	"webm": wire.KindVideo, "flv": wire.KindVideo,

	"mp3": wire.KindAudio, "flac": wire.KindAudio, "wav": wire.KindAudio, "ogg": wire.KindAudio,
	"m4a": wire.KindAudio, "opus": wire.KindAudio,
}

// Classify derives the IconKind for path, given lstat info (which must not
// follow the final symlink) and, if path is not itself a symlink, the
// stat'd info of the resolved target (used only for the executable-bit
// test; may be nil if the target could not be stat'd).
func Classify(path string, lstatInfo os.FileInfo, statInfo os.FileInfo) wire.IconKind {
	if lstatInfo.Mode()&os.ModeSymlink != 0 {
		return wire.KindSymlink
	}
	if lstatInfo.IsDir() {
		return wire.KindDirectory
	}
	if kind, ok := lookupExtension(path); ok {
		return kind
	}
	info := lstatInfo
	if statInfo != nil {
		info = statInfo
	}
	if info.Mode()&0o111 != 0 {
		return wire.KindExecutable
	}
	return wire.KindFile
}

// ClassifyPath is the convenience entry point for callers that only have
// a path: it performs the lstat/stat calls Classify needs itself. Errors
// stat'ing the path (e.g. it was removed mid-scan) classify as File.
func ClassifyPath(path string) wire.IconKind {
	lstatInfo, err := os.Lstat(path)
	if err != nil {
		return wire.KindFile
	}
	var statInfo os.FileInfo
	if lstatInfo.Mode()&os.ModeSymlink == 0 {
		statInfo, _ = os.Stat(path)
	}
	return Classify(path, lstatInfo, statInfo)
}

func lookupExtension(path string) (wire.IconKind, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "", false
	}
	kind, ok := extensionTable[ext]
	return kind, ok
}

// DisplayName is the path's final path component, or "Unknown" if the
// path has none (e.g. "/", "").
func DisplayName(path string) string {
	base := filepath.Base(path)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "Unknown"
	}
	return base
}

// mimeTable maps the same extensions used for classification to a best-
// effort MIME type, for Metadata's optional mimeGuess field. Extensions
// absent from the table (or with no extension at all) yield no guess.
var mimeTable = map[string]string{
	"png": "image/png", "jpg": "image/jpeg", "jpeg": "image/jpeg", "gif": "image/gif",
	"bmp": "image/bmp", "svg": "image/svg+xml", "webp": "image/webp", "ico": "image/vnd.microsoft.icon",

	"pdf": "application/pdf", "doc": "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"odt": "application/vnd.oasis.opendocument.text", "txt": "text/plain",
	"md": "text/markdown", "rst": "text/x-rst",

	"zip": "application/zip", "tar": "application/x-tar", "gz": "application/gzip",
	"bz2": "application/x-bzip2", "xz": "application/x-xz", "7z": "application/x-7z-compressed",
	"rar": "application/vnd.rar", "zst": "application/zstd",

	"mp4": "video/mp4", "mkv": "video/x-matroska", "avi": "video/x-msvideo",
	"mov": "video/quicktime", "webm": "video/webm", "flv": "video/x-flv",

	"mp3": "audio/mpeg", "flac": "audio/flac", "wav": "audio/wav", "ogg": "audio/ogg",
	"m4a": "audio/mp4", "opus": "audio/opus",

	"sh": "text/x-shellscript", "bash": "text/x-shellscript", "zsh": "text/x-shellscript",
	"fish": "text/x-shellscript", "py": "text/x-python", "rb": "text/x-ruby", "pl": "text/x-perl",
}

// MimeGuess returns a best-effort MIME type for path's extension, or ""
// if the extension is unknown or absent.
func MimeGuess(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return mimeTable[ext]
}

// Hidden reports whether the final path component begins with '.', the
// test used to enforce invariant I2 (no session for hidden paths).
func Hidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
