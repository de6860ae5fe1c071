// Package share encodes document text into a URL fragment compact enough
// for a scannable QR code, and decodes such fragments back to text.
//
// The encoded form is deflate-compressed, base64url text carrying a "c:"
// prefix. Runtimes without a working compressor fall back to plain
// base64url with no prefix, and the decoder accepts both shapes plus
// legacy standard-alphabet base64 links.
package share

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strings"
	"unicode/utf8"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/notionmini/gonote/pkg/blocks"
	"github.com/notionmini/gonote/pkg/convert"
)

// ===== Constants =====

const (
	// CompressedPrefix tags fragments whose payload is deflate-compressed.
	CompressedPrefix = "c:"

	// EmptyPlaceholder stands in for documents whose markdown export is
	// blank, so empty documents still yield a valid link.
	EmptyPlaceholder = "[Empty Document]"

	// FallbackTitle is used when the decoded text has no leading H1.
	FallbackTitle = "Note"

	fragmentPath = "/view#"

	// Pre-compression estimate: deflate removes roughly 40% on text, and
	// base64url adds roughly 40% back.
	estimatedCompressionRatio = 0.6
	estimatedEncodingOverhead = 1.4

	// estimateCeiling rejects content before any compression work when the
	// cheap estimate already disqualifies it.
	estimateCeiling = 2800

	// recommendedMaxURL is the advisory figure quoted in size errors.
	recommendedMaxURL = 2500

	// warnURLLength marks URLs that will produce hard-to-scan codes.
	warnURLLength = 2000

	// hardURLLimit is the post-compression abort threshold.
	hardURLLimit = 3000
)

// ===== Errors =====

// ErrCorruptLink is returned when a fragment cannot be decoded. Callers
// surface it as a replacement display state, never as a crash.
var ErrCorruptLink = errors.New("could not decode: link may be corrupted")

// SizeLimitError reports content too large to share as a QR link. It
// carries enough detail for an actionable user message.
type SizeLimitError struct {
	// Length is the estimated or realized URL length in characters.
	Length int
	// Estimated is true when the pre-compression estimate rejected the
	// content, false when the realized URL exceeded the hard limit.
	Estimated bool
	// ImageCount is the number of embedded images, which dominate size.
	ImageCount int
}

func (e *SizeLimitError) Error() string {
	var b strings.Builder
	b.WriteString("document too large for QR code: ")
	if e.Estimated {
		fmt.Fprintf(&b, "estimated size ~%d characters", e.Length)
	} else {
		fmt.Fprintf(&b, "URL is %d characters", e.Length)
	}
	fmt.Fprintf(&b, ", recommended maximum ~%d", recommendedMaxURL)
	if e.ImageCount == 1 {
		b.WriteString("; the document contains 1 image, which exceeds the limit")
	} else if e.ImageCount > 1 {
		fmt.Fprintf(&b, "; the document contains %d images, which exceed the limit", e.ImageCount)
	}
	b.WriteString("; export the document instead, or reduce its size")
	return b.String()
}

// ===== Encoder =====

// Compressor turns plain bytes into deflate-family compressed bytes. A nil
// Compressor models a runtime without compression support.
type Compressor func([]byte) ([]byte, error)

// ZlibCompressor is the default Compressor.
func ZlibCompressor(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encoder builds share links rooted at a fixed origin.
type Encoder struct {
	origin   string
	compress Compressor
	log      *zap.Logger
}

// NewEncoder returns an Encoder using zlib compression. Pass a nil logger
// to disable logging.
func NewEncoder(origin string, log *zap.Logger) *Encoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Encoder{origin: origin, compress: ZlibCompressor, log: log}
}

// SetCompressor overrides the compression routine. A nil value selects the
// uncompressed base64url path.
func (e *Encoder) SetCompressor(c Compressor) { e.compress = c }

// Link is a successfully encoded share link.
type Link struct {
	// URL is the full shareable URL, origin plus fragment.
	URL string
	// Fragment is the encoded payload after "#".
	Fragment string
	// Compressed reports whether the payload carries the "c:" prefix.
	Compressed bool
	// Warning is a non-fatal advisory set when the URL is long enough
	// that the resulting QR code may be hard to scan.
	Warning string
}

// EncodeDocument converts stored block JSON to its Markdown export and
// encodes that as a share link.
func (e *Encoder) EncodeDocument(contentJSON string) (*Link, error) {
	parsed, err := convert.ParseJSONBlocks(contentJSON)
	if err != nil {
		return nil, fmt.Errorf("share: %w", err)
	}
	images := 0
	for _, b := range parsed {
		if b.Kind() == blocks.KindImage {
			images++
		}
	}
	return e.encode(convert.BlocksToMarkdown(parsed), images)
}

// Encode encodes plain Markdown text as a share link.
func (e *Encoder) Encode(text string) (*Link, error) {
	return e.encode(text, strings.Count(text, "!["))
}

func (e *Encoder) encode(text string, imageCount int) (*Link, error) {
	if strings.TrimSpace(text) == "" {
		text = EmptyPlaceholder
	}

	// Cheap pre-check so oversized content never reaches the compressor.
	estCompressed := int(math.Ceil(float64(len(text)) * estimatedCompressionRatio))
	estEncoded := int(math.Ceil(float64(estCompressed) * estimatedEncodingOverhead))
	estURL := estEncoded + len(e.origin) + len(fragmentPath)
	if estURL > estimateCeiling {
		e.log.Warn("share link rejected by size estimate",
			zap.Int("estimated_url_length", estURL),
			zap.Int("image_count", imageCount))
		return nil, &SizeLimitError{Length: estURL, Estimated: true, ImageCount: imageCount}
	}

	fragment, compressed := e.encodeFragment(text)
	link := &Link{
		URL:        e.origin + fragmentPath + fragment,
		Fragment:   fragment,
		Compressed: compressed,
	}

	if len(link.URL) > hardURLLimit {
		return nil, &SizeLimitError{Length: len(link.URL), ImageCount: imageCount}
	}
	if len(link.URL) > warnURLLength {
		link.Warning = fmt.Sprintf("URL is %d characters; the QR code may be difficult to scan", len(link.URL))
		e.log.Warn("share link is very long", zap.Int("url_length", len(link.URL)))
	}
	return link, nil
}

func (e *Encoder) encodeFragment(text string) (fragment string, compressed bool) {
	if e.compress != nil {
		data, err := e.compress([]byte(text))
		if err == nil {
			return CompressedPrefix + base64.RawURLEncoding.EncodeToString(data), true
		}
		e.log.Warn("compression failed, falling back to plain encoding", zap.Error(err))
	}
	return base64.RawURLEncoding.EncodeToString([]byte(text)), false
}

// ===== QR rendering =====

// QRConfig is the rendering policy for a link. Longer URLs trade error
// correction for data capacity and render larger so modules stay scannable.
type QRConfig struct {
	Level  qrcode.RecoveryLevel
	Size   int
	Border bool
}

// QRConfig returns the rendering policy for this link's length.
func (l *Link) QRConfig() QRConfig {
	switch {
	case len(l.URL) > 1500:
		return QRConfig{Level: qrcode.Low, Size: 1200, Border: false}
	case len(l.URL) > 1000:
		return QRConfig{Level: qrcode.Medium, Size: 800, Border: true}
	default:
		return QRConfig{Level: qrcode.High, Size: 600, Border: true}
	}
}

// QRPNG renders the link as a PNG matrix code.
func (l *Link) QRPNG() ([]byte, error) {
	cfg := l.QRConfig()
	q, err := qrcode.New(l.URL, cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("generate QR code: %w", err)
	}
	q.DisableBorder = !cfg.Border
	png, err := q.PNG(cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("render QR code: %w", err)
	}
	return png, nil
}

// ===== Decoder =====

// Shared is a decoded share link payload.
type Shared struct {
	// Title is the text after a leading "# " on the first line, or
	// FallbackTitle when there is none.
	Title string
	// Text is the decoded Markdown.
	Text string
	// Compressed reports whether the fragment carried the "c:" prefix.
	Compressed bool
}

// Decode reverses Encode, consuming a URL fragment. Any failure yields
// ErrCorruptLink rather than a partial result.
func Decode(fragment string) (*Shared, error) {
	if fragment == "" {
		return nil, ErrCorruptLink
	}

	var (
		text       string
		compressed bool
	)
	if strings.HasPrefix(fragment, CompressedPrefix) {
		raw, err := decodeBase64(fragment[len(CompressedPrefix):])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptLink, err)
		}
		plain, err := decompress(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptLink, err)
		}
		text = string(plain)
		compressed = true
	} else {
		raw, err := decodeBase64(fragment)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptLink, err)
		}
		text = legacyUnescape(string(raw))
	}

	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", ErrCorruptLink)
	}
	return &Shared{Title: titleFor(text), Text: text, Compressed: compressed}, nil
}

// decodeBase64 accepts both the URL-safe and standard alphabets, with or
// without padding. Older links used the standard alphabet.
func decodeBase64(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// decompress handles both the zlib container produced by browser deflate
// streams and raw deflate bytes.
func decompress(data []byte) ([]byte, error) {
	if r, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
		plain, err := io.ReadAll(r)
		r.Close()
		if err == nil {
			return plain, nil
		}
	}
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}

// legacyUnescape reverses the percent-escaping some very old links applied
// before base64. Text without valid escapes passes through unchanged.
func legacyUnescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	if unescaped, err := url.PathUnescape(s); err == nil {
		return unescaped
	}
	return s
}

func titleFor(text string) string {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}
	if rest, ok := strings.CutPrefix(firstLine, "# "); ok && strings.TrimSpace(rest) != "" {
		return rest
	}
	return FallbackTitle
}
