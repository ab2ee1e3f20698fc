package pdf

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/kbminer/internal/vision"
)

// buildPDF writes a two-page document: page 1 shows "Hello" and a 2x2 RGB
// image, page 2 has no text and a 3x1 RGB image. Both images are Flate encoded.
func buildPDF(t *testing.T) []byte {
	t.Helper()

	imageStream := func(width, height int, rgb byte) string {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(bytes.Repeat([]byte{rgb, 0, 255 - rgb}, width*height))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d "+
			"/ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /FlateDecode /Length %d >>\n"+
			"stream\n%s\nendstream", width, height, buf.Len(), buf.String())
	}
	contentStream := func(content string) string {
		return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
			"/Resources << /Font << /F1 5 0 R >> /XObject << /Im1 6 0 R >> >> /Contents 7 0 R >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
			"/Resources << /XObject << /Im2 8 0 R >> >> /Contents 9 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		imageStream(2, 2, 200),
		contentStream("BT /F1 12 Tf 72 720 Td (Hello) Tj ET\nq 50 0 0 50 72 600 cm /Im1 Do Q"),
		imageStream(3, 1, 40),
		contentStream("q 50 0 0 50 72 600 cm /Im2 Do Q"),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestParse_TextAndImagesPerPage(t *testing.T) {
	doc, err := Parse("report.pdf", buildPDF(t))
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", doc.Name())
	require.Equal(t, 2, doc.NumPages())

	text, err := doc.Page(1).Text()
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	text, err = doc.Page(2).Text()
	require.NoError(t, err)
	assert.Empty(t, text)

	for _, tc := range []struct {
		page          int
		width, height int
	}{
		{page: 1, width: 2, height: 2},
		{page: 2, width: 3, height: 1},
	} {
		images, err := doc.Page(tc.page).Images()
		require.NoError(t, err, "page %d", tc.page)
		require.Len(t, images, 1, "page %d", tc.page)
		assert.Equal(t, "image/png", images[0].MIMEType)

		decoded, err := png.Decode(bytes.NewReader(images[0].Data))
		require.NoError(t, err, "page %d", tc.page)
		assert.Equal(t, tc.width, decoded.Bounds().Dx())
		assert.Equal(t, tc.height, decoded.Bounds().Dy())
	}
}

// contextRecorder describes every image as "img" and remembers the page text it was given.
type contextRecorder struct {
	mu       sync.Mutex
	contexts []string
}

func (r *contextRecorder) Describe(_ context.Context, _ vision.Image, pageContext string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts = append(r.contexts, pageContext)
	return "img", nil
}

func TestExtractor_RealDocument(t *testing.T) {
	doc, err := Parse("report.pdf", buildPDF(t))
	require.NoError(t, err)

	describer := &contextRecorder{}
	extractor := NewExtractor(describer, quietLogger())

	first := extractor.Extract(context.Background(), doc.Page(1))
	second := extractor.Extract(context.Background(), doc.Page(2))

	assert.Equal(t, "Hello", first.RawText)
	assert.Equal(t, "img\n", first.ImageText)
	assert.Equal(t, 1, first.ImagesDescribed)
	assert.Empty(t, second.RawText)
	assert.Equal(t, "img\n", second.ImageText)
	assert.Equal(t, []string{"Hello", ""}, describer.contexts)
}

func TestPageImages_FallsBackPerPage(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	doc := &Document{numPages: 3}
	doc.extract = func(selected []string) (map[int][]vision.Image, error) {
		key := "all"
		if selected != nil {
			key = selected[0]
		}
		mu.Lock()
		calls[key]++
		mu.Unlock()

		switch key {
		case "all":
			return nil, errors.New("corrupt image stream on page 3")
		case "3":
			return nil, errors.New("corrupt image stream")
		default:
			return map[int][]vision.Image{2: {{Data: []byte("x")}}}, nil
		}
	}

	for range 2 {
		images, err := doc.Page(2).Images()
		require.NoError(t, err)
		assert.Len(t, images, 1)

		_, err = doc.Page(3).Images()
		assert.Error(t, err)
	}

	assert.Equal(t, map[string]int{"all": 1, "2": 1, "3": 1}, calls)
}
