// Package format enumerates the artifact formats the service can
// disseminate.
package format

// Format identifies one disseminated artifact format.
type Format int

const (
	// PDF artifacts, rendered or directly submitted.
	PDF Format = iota
	// PS is gzip-compressed PostScript.
	PS
	// HTML bundles, gzip-compressed.
	HTML
	// Source is the original submitted source tarball.
	Source
)

// String returns the public route / storage path segment for the format.
func (f Format) String() string {
	switch f {
	case PDF:
		return "pdf"
	case PS:
		return "ps"
	case HTML:
		return "html"
	case Source:
		return "src"
	default:
		return "unknown"
	}
}

// MIMEType returns the Content-Type value served for the format.
func (f Format) MIMEType() string {
	switch f {
	case PDF:
		return "application/pdf"
	case PS:
		return "application/postscript"
	case HTML:
		return "text/html"
	case Source:
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}

// Ext returns the expected storage file extension, dot included.
func (f Format) Ext() string {
	switch f {
	case PDF:
		return ".pdf"
	case PS:
		return ".ps.gz"
	case HTML:
		return ".html.gz"
	case Source:
		return ".tar.gz"
	default:
		return ""
	}
}

// ContentEncoding returns the Content-Encoding hint for formats stored
// compressed, or "" when the bytes are served as-is.
func (f Format) ContentEncoding() string {
	switch f {
	case PS, HTML:
		return "gzip"
	default:
		return ""
	}
}

// FromRoute maps a public route segment to a Format.
func FromRoute(s string) (Format, bool) {
	switch s {
	case "pdf":
		return PDF, true
	case "ps":
		return PS, true
	case "html":
		return HTML, true
	case "src":
		return Source, true
	default:
		return 0, false
	}
}
