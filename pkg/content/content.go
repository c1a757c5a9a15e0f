// Package content implements path validation, content limits, extension
// extraction, binary classification and content hashing for file records.
//
// Hashing and sizing operate on the stored representation of a file (UTF-8
// text for text files, base64 text for binary files). Clients compute the
// same hash over the same representation, which is what makes binary
// reconciliation converge; nothing in this package ever touches decoded
// binary bytes.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/marmos91/syncbox/pkg/models"
)

const (
	// HashPrefix is prepended to every hex digest.
	HashPrefix = "sha256:"

	// MaxPathLength is the maximum path length in characters.
	MaxPathLength = 1000

	// MaxContentBytes is the maximum byte length of the stored
	// representation. Base64 overhead bounds raw binary payloads at
	// roughly 7.5 MiB.
	MaxContentBytes = 10 << 20
)

// EmptyHash is the hash of empty content, stored on tombstones and on
// files created without content.
var EmptyHash = Hash("")

// pathPattern rejects characters that are invalid on at least one of the
// platforms the sync clients run on, plus control characters.
var pathPattern = regexp.MustCompile(`^[^<>:"|?*\x00-\x1f]+$`)

// Hash returns "sha256:" + lowercase hex SHA-256 of the stored representation.
func Hash(stored string) string {
	sum := sha256.Sum256([]byte(stored))
	return HashPrefix + hex.EncodeToString(sum[:])
}

// Size returns the byte length of the stored representation.
func Size(stored string) int64 {
	return int64(len(stored))
}

// ValidatePath checks the path grammar: 1 to 1000 characters, none of
// < > : " | ? * or control characters.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path is required", models.ErrPathInvalid)
	}
	if utf8.RuneCountInString(path) > MaxPathLength {
		return fmt.Errorf("%w: path exceeds %d characters", models.ErrPathInvalid, MaxPathLength)
	}
	if !pathPattern.MatchString(path) {
		return fmt.Errorf("%w: path contains forbidden characters", models.ErrPathInvalid)
	}
	return nil
}

// ValidateContent checks the stored representation against the size limit.
func ValidateContent(stored string) error {
	if len(stored) > MaxContentBytes {
		return fmt.Errorf("%w: content exceeds %d bytes", models.ErrContentTooBig, MaxContentBytes)
	}
	return nil
}

// Extension extracts the lowercase extension (without the leading dot)
// from the final path segment. Dotfiles like ".gitignore" and names with
// a trailing dot have no extension; the empty string is returned.
func Extension(path string) string {
	segment := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		segment = path[idx+1:]
	}
	dot := strings.LastIndexByte(segment, '.')
	if dot <= 0 {
		return ""
	}
	return strings.ToLower(segment[dot+1:])
}

// binaryExtensions is the fixed set of extensions stored as base64.
var binaryExtensions = map[string]struct{}{
	// images
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "bmp": {}, "webp": {},
	"ico": {}, "svg": {}, "tiff": {}, "tif": {},
	// documents
	"pdf": {}, "doc": {}, "docx": {}, "xls": {}, "xlsx": {}, "ppt": {},
	"pptx": {}, "odt": {}, "ods": {}, "odp": {},
	// archives
	"zip": {}, "rar": {}, "7z": {}, "tar": {}, "gz": {}, "bz2": {}, "xz": {},
	// audio
	"mp3": {}, "wav": {}, "ogg": {}, "flac": {}, "aac": {}, "wma": {}, "m4a": {},
	// video
	"mp4": {}, "avi": {}, "mkv": {}, "mov": {}, "wmv": {}, "flv": {}, "webm": {},
	// executables and libraries
	"exe": {}, "dll": {}, "so": {}, "dylib": {}, "bin": {},
	// fonts
	"ttf": {}, "otf": {}, "woff": {}, "woff2": {}, "eot": {},
	// databases
	"db": {}, "sqlite": {}, "sqlite3": {},
}

// IsBinaryExtension reports whether the extension classifies a file as binary.
func IsBinaryExtension(ext string) bool {
	_, ok := binaryExtensions[strings.ToLower(ext)]
	return ok
}

// IsBinaryPath reports whether the path's extension classifies it as binary.
func IsBinaryPath(path string) bool {
	return IsBinaryExtension(Extension(path))
}
