package share

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "https://gonote.app"

// countingCompressor wraps ZlibCompressor and counts invocations.
type countingCompressor struct {
	calls int
	fail  bool
}

func (c *countingCompressor) compress(data []byte) ([]byte, error) {
	c.calls++
	if c.fail {
		return nil, errors.New("compressor unavailable")
	}
	return ZlibCompressor(data)
}

func sampleText(n int) string {
	base := "# Trip Notes\n\nPacked the camera bag and checked the ferry times. "
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(base)
	}
	return b.String()[:n]
}

func TestRoundTrip(t *testing.T) {
	for _, size := range []int{10, 1000, 2000} {
		text := sampleText(size)

		// Compression available.
		enc := NewEncoder(testOrigin, nil)
		link, err := enc.Encode(text)
		require.NoError(t, err, "size %d compressed", size)
		assert.True(t, link.Compressed)
		assert.True(t, strings.HasPrefix(link.Fragment, CompressedPrefix))

		got, err := Decode(link.Fragment)
		require.NoError(t, err)
		assert.Equal(t, text, got.Text, "size %d compressed round trip", size)

		// Compression unavailable.
		enc.SetCompressor(nil)
		link, err = enc.Encode(text)
		require.NoError(t, err, "size %d uncompressed", size)
		assert.False(t, link.Compressed)
		assert.False(t, strings.HasPrefix(link.Fragment, CompressedPrefix))

		got, err = Decode(link.Fragment)
		require.NoError(t, err)
		assert.Equal(t, text, got.Text, "size %d uncompressed round trip", size)
	}
}

func TestEmptyTextGetsPlaceholder(t *testing.T) {
	enc := NewEncoder(testOrigin, nil)
	link, err := enc.Encode("   \n  ")
	require.NoError(t, err)

	got, err := Decode(link.Fragment)
	require.NoError(t, err)
	assert.Equal(t, EmptyPlaceholder, got.Text)
}

func TestSizeEstimateRejectsWithoutCompressing(t *testing.T) {
	spy := &countingCompressor{}
	enc := NewEncoder(testOrigin, nil)
	enc.SetCompressor(spy.compress)

	_, err := enc.Encode(sampleText(4000))

	var sizeErr *SizeLimitError
	require.ErrorAs(t, err, &sizeErr)
	assert.True(t, sizeErr.Estimated)
	assert.Greater(t, sizeErr.Length, 2800)
	assert.Equal(t, 0, spy.calls, "oversized content must never reach the compressor")
}

func TestHardLimitAfterEncoding(t *testing.T) {
	// Passes the estimate but, uncompressed, exceeds the realized limit.
	enc := NewEncoder(testOrigin, nil)
	enc.SetCompressor(nil)

	_, err := enc.Encode(sampleText(2300))

	var sizeErr *SizeLimitError
	require.ErrorAs(t, err, &sizeErr)
	assert.False(t, sizeErr.Estimated)
	assert.Greater(t, sizeErr.Length, 3000)
}

func TestLongURLSetsWarning(t *testing.T) {
	enc := NewEncoder(testOrigin, nil)
	enc.SetCompressor(nil)

	link, err := enc.Encode(sampleText(2000))
	require.NoError(t, err)
	assert.NotEmpty(t, link.Warning)
}

func TestCompressorFailureFallsBackToPlain(t *testing.T) {
	spy := &countingCompressor{fail: true}
	enc := NewEncoder(testOrigin, nil)
	enc.SetCompressor(spy.compress)

	text := sampleText(200)
	link, err := enc.Encode(text)
	require.NoError(t, err)
	assert.Equal(t, 1, spy.calls)
	assert.False(t, link.Compressed)

	got, err := Decode(link.Fragment)
	require.NoError(t, err)
	assert.Equal(t, text, got.Text)
}

func TestSizeErrorMentionsImages(t *testing.T) {
	enc := NewEncoder(testOrigin, nil)
	content := `[{"type":"paragraph","content":"` + strings.Repeat("data", 1000) + `"},` +
		`{"type":"image","props":{"url":"https://x.test/a.png"}},` +
		`{"type":"image","props":{"url":"https://x.test/b.png"}}]`

	_, err := enc.EncodeDocument(content)

	var sizeErr *SizeLimitError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, 2, sizeErr.ImageCount)
	assert.Contains(t, err.Error(), "2 images")
}

func TestEncodeDocumentExportsMarkdown(t *testing.T) {
	enc := NewEncoder(testOrigin, nil)
	link, err := enc.EncodeDocument(`[{"type":"heading","props":{"level":1},"content":"Plan"},{"type":"paragraph","content":"Step one."}]`)
	require.NoError(t, err)

	got, err := Decode(link.Fragment)
	require.NoError(t, err)
	assert.Equal(t, "# Plan\n\nStep one.", got.Text)
	assert.Equal(t, "Plan", got.Title)
}

func TestDecodeLegacyStandardBase64(t *testing.T) {
	text := "# Old Link\nbody text"
	fragment := base64.StdEncoding.EncodeToString([]byte(text))

	got, err := Decode(fragment)
	require.NoError(t, err)
	assert.Equal(t, text, got.Text)
	assert.Equal(t, "Old Link", got.Title)
	assert.False(t, got.Compressed)
}

func TestDecodeRawDeflatePayload(t *testing.T) {
	// Some producers emit raw deflate bytes with no zlib container.
	text := "raw deflate payload"
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	require.NoError(t, err)
	_, err = w.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	fragment := CompressedPrefix + base64.RawURLEncoding.EncodeToString(buf.Bytes())

	got, err := Decode(fragment)
	require.NoError(t, err)
	assert.Equal(t, text, got.Text)
	assert.True(t, got.Compressed)
}

func TestDecodeCorruptInputs(t *testing.T) {
	cases := map[string]string{
		"empty fragment":     "",
		"not base64":         "%%not-base64%%",
		"compressed garbage": CompressedPrefix + base64.RawURLEncoding.EncodeToString([]byte("not deflate data")),
		"truncated base64":   CompressedPrefix + "ab!",
	}
	for name, fragment := range cases {
		_, err := Decode(fragment)
		assert.ErrorIs(t, err, ErrCorruptLink, name)
	}
}

func TestDecodeTitleFallback(t *testing.T) {
	fragment := base64.RawURLEncoding.EncodeToString([]byte("no heading here\nsecond line"))
	got, err := Decode(fragment)
	require.NoError(t, err)
	assert.Equal(t, FallbackTitle, got.Title)
}

func TestQRConfigScalesWithLength(t *testing.T) {
	short := &Link{URL: strings.Repeat("a", 500)}
	medium := &Link{URL: strings.Repeat("a", 1200)}
	long := &Link{URL: strings.Repeat("a", 1800)}

	assert.Equal(t, QRConfig{Level: qrcode.High, Size: 600, Border: true}, short.QRConfig())
	assert.Equal(t, QRConfig{Level: qrcode.Medium, Size: 800, Border: true}, medium.QRConfig())
	assert.Equal(t, QRConfig{Level: qrcode.Low, Size: 1200, Border: false}, long.QRConfig())
}

func TestQRPNGRendersShortLink(t *testing.T) {
	enc := NewEncoder(testOrigin, nil)
	link, err := enc.Encode("QR smoke test")
	require.NoError(t, err)

	png, err := link.QRPNG()
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}
