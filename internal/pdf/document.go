// Package pdf reads PDF pages and turns each into raw text plus image descriptions.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/bull/kbminer/internal/vision"
)

// ErrNoPages is returned for documents that parse but report no pages.
var ErrNoPages = errors.New("pdf has no pages")

var disableConfigDir sync.Once

// Page is one page of an opened document.
type Page interface {
	Number() int
	Text() (string, error)
	Images() ([]vision.Image, error)
}

// Document is an opened PDF. Text comes from the content streams; images are
// decoded separately so a broken image stream never hides the page text.
type Document struct {
	name     string
	data     []byte
	reader   *lpdf.Reader
	numPages int

	// extract decodes the images of the selected pages, or of every page when
	// selectedPages is nil.
	extract func(selectedPages []string) (map[int][]vision.Image, error)

	imagesOnce sync.Once
	images     map[int][]vision.Image
	imagesErr  error

	pageMu    sync.Mutex
	pageCache map[int]pageImagesResult
}

type pageImagesResult struct {
	images []vision.Image
	err    error
}

// Open reads and parses the file at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(filepath.Base(path), data)
}

// Parse opens a PDF held in memory. Malformed input is reported as an error.
func Parse(name string, data []byte) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("parse %s: %v", name, r)
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	n := reader.NumPage()
	if n <= 0 {
		return nil, fmt.Errorf("parse %s: %w", name, ErrNoPages)
	}

	doc = &Document{
		name:     name,
		data:     data,
		reader:   reader,
		numPages: n,
	}
	doc.extract = doc.extractImages
	return doc, nil
}

// Name returns the file name the document was opened from.
func (d *Document) Name() string { return d.name }

// NumPages returns the page count.
func (d *Document) NumPages() int { return d.numPages }

// Page returns page n (1-based).
func (d *Document) Page(n int) Page {
	return &documentPage{doc: d, number: n}
}

type documentPage struct {
	doc    *Document
	number int
}

func (p *documentPage) Number() int { return p.number }

func (p *documentPage) Text() (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d text: %v", p.number, r)
		}
	}()

	page := p.doc.reader.Page(p.number)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d text: %w", p.number, err)
	}
	return text, nil
}

func (p *documentPage) Images() ([]vision.Image, error) {
	return p.doc.pageImages(p.number)
}

// pageImages decodes the whole document's images once. If that fails, pages are
// retried one at a time so only the broken pages lose their images. pdfcpu
// still reads the full document on every retry, so a broken document costs one
// parse per page; each page's outcome is cached.
func (d *Document) pageImages(n int) ([]vision.Image, error) {
	d.imagesOnce.Do(func() {
		d.images, d.imagesErr = d.extract(nil)
	})
	if d.imagesErr == nil {
		return d.images[n], nil
	}

	d.pageMu.Lock()
	cached, ok := d.pageCache[n]
	d.pageMu.Unlock()
	if ok {
		return cached.images, cached.err
	}

	var result pageImagesResult
	byPage, err := d.extract([]string{strconv.Itoa(n)})
	if err != nil {
		result.err = err
	} else {
		result.images = byPage[n]
	}

	d.pageMu.Lock()
	if d.pageCache == nil {
		d.pageCache = make(map[int]pageImagesResult)
	}
	d.pageCache[n] = result
	d.pageMu.Unlock()

	return result.images, result.err
}

func (d *Document) extractImages(selectedPages []string) (byPage map[int][]vision.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			byPage, err = nil, fmt.Errorf("extract images: %v", r)
		}
	}()

	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pages, err := api.ExtractImagesRaw(bytes.NewReader(d.data), selectedPages, conf)
	if err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}

	type numbered struct {
		objNr int
		img   vision.Image
	}
	grouped := make(map[int][]numbered)
	for _, images := range pages {
		for objNr, img := range images {
			data, err := io.ReadAll(img)
			if err != nil {
				return nil, fmt.Errorf("read image %d on page %d: %w", objNr, img.PageNr, err)
			}
			if len(data) == 0 {
				continue
			}
			grouped[img.PageNr] = append(grouped[img.PageNr], numbered{
				objNr: objNr,
				img:   vision.Image{Data: data, MIMEType: mimeType(img.FileType)},
			})
		}
	}

	byPage = make(map[int][]vision.Image, len(grouped))
	for pageNr, imgs := range grouped {
		sort.Slice(imgs, func(i, j int) bool { return imgs[i].objNr < imgs[j].objNr })
		out := make([]vision.Image, len(imgs))
		for i, n := range imgs {
			out[i] = n.img
		}
		byPage[pageNr] = out
	}
	return byPage, nil
}

func mimeType(fileType string) string {
	switch strings.ToLower(fileType) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
