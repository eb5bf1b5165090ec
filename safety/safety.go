// Package safety classifies content payloads before display.
//
// The classifier never trusts a declared type: it detects the actual type
// from the bytes and rejects any declared/detected mismatch outright. Types
// fall into three policies: inert types passed through, gray types that
// require a named sanitization step before display (the sanitizer itself is
// outside this package), and executable/active/archive types rejected
// unconditionally. Unknown types are rejected: the classifier fails closed.
package safety

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mikael1979/filu-x/fxerr"
)

// Inert types passed through unchanged.
var safeTypes = map[string]bool{
	// Images
	"image/png": true, "image/jpeg": true, "image/gif": true,
	"image/webp": true, "image/bmp": true, "image/tiff": true,
	"image/x-icon": true,

	// Video
	"video/mp4": true, "video/webm": true, "video/quicktime": true,
	"video/x-msvideo": true, "video/x-matroska": true, "video/x-flv": true,

	// Audio
	"audio/mpeg": true, "audio/wav": true, "audio/ogg": true,
	"audio/flac": true, "audio/aac": true, "audio/mp4": true,

	// Documents
	"text/plain": true, "application/pdf": true, "text/csv": true,
	"application/json": true, "text/xml": true, "application/xml": true,
	"application/yaml": true, "application/toml": true,

	// Fonts
	"font/ttf": true, "font/woff": true, "font/woff2": true, "font/otf": true,
}

// Gray types: displayable only after the named sanitization step.
var grayTypes = map[string]string{
	"text/html":     "sanitize_html",
	"image/svg+xml": "sanitize_svg",
	"text/markdown": "sanitize_markdown",
	"text/css":      "sanitize_css",
}

// Executable and active content, rejected unconditionally.
var dangerousTypes = map[string]bool{
	"application/x-executable":                     true,
	"application/x-sharedlib":                      true,
	"application/vnd.microsoft.portable-executable": true,
	"application/x-mach-binary":                    true,
	"application/x-msdownload":                     true,
	"application/wasm":                             true,
	"application/java-archive":                     true,
	"application/x-java-applet":                    true,
	"application/javascript":                       true,
	"text/javascript":                              true,
	"application/x-sh":                             true,
	"text/x-shellscript":                           true,
	"text/x-python":                                true,
	"application/x-python":                         true,
	"application/xhtml+xml":                        true,
	"application/hta":                              true,
}

// Archives require scanning the system does not do; denied unless the
// embedding application opts in.
var archiveTypes = map[string]bool{
	"application/zip":              true,
	"application/x-tar":            true,
	"application/gzip":             true,
	"application/x-bzip2":          true,
	"application/x-7z-compressed":  true,
	"application/x-rar-compressed": true,
	"application/x-iso9660-image":  true,
}

// Verdict is the classification outcome for an accepted payload.
type Verdict struct {
	// DetectedType is the type derived from the bytes themselves.
	DetectedType string
	// Sanitizer names the required sanitization step for gray types;
	// empty means the payload is inert and displayable as-is.
	Sanitizer string
}

// RequiresSanitization reports whether display must go through a sanitizer.
func (v Verdict) RequiresSanitization() bool { return v.Sanitizer != "" }

// Classifier applies the three content policies.
type Classifier struct {
	// AllowArchives admits archive types instead of denying them.
	AllowArchives bool
}

// Check detects the actual type of content and validates it against the
// declared type (empty declaredType skips the mismatch check, detection and
// policy still apply). All rejections are security errors.
func (c *Classifier) Check(content []byte, declaredType string) (Verdict, error) {
	detected := normalizeType(mimetype.Detect(content).String())

	if declaredType != "" && normalizeType(declaredType) != detected {
		return Verdict{}, fxerr.New(fxerr.KindSecurity, "FX-SAFE-001",
			"declared type "+declaredType+" does not match detected type "+detected)
	}

	if dangerousTypes[detected] {
		return Verdict{}, fxerr.New(fxerr.KindSecurity, "FX-SAFE-002", "blocked dangerous content type "+detected)
	}
	if archiveTypes[detected] && !c.AllowArchives {
		return Verdict{}, fxerr.New(fxerr.KindSecurity, "FX-SAFE-003", "blocked archive content type "+detected)
	}

	if safeTypes[detected] || (archiveTypes[detected] && c.AllowArchives) {
		return Verdict{DetectedType: detected}, nil
	}
	if sanitizer, ok := grayTypes[detected]; ok {
		return Verdict{DetectedType: detected, Sanitizer: sanitizer}, nil
	}

	return Verdict{}, fxerr.New(fxerr.KindSecurity, "FX-SAFE-004", "unknown content type "+detected)
}

// normalizeType strips parameters ("; charset=utf-8") and lowercases.
func normalizeType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}
