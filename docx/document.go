// Package docx writes WordprocessingML (.docx) documents with headings,
// paragraphs and inline pictures.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MIMEType is the content type of a .docx file.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// EMUPerInch converts inches to the English Metric Units used by DrawingML.
const EMUPerInch = 914400

// Inches returns n inches in EMU.
func Inches(n float64) int64 {
	return int64(n * EMUPerInch)
}

// Document is an in-memory .docx under construction.
type Document struct {
	Title   string
	Creator string

	body    bytes.Buffer
	media   []mediaPart
	nextPic int
	created time.Time
}

type mediaPart struct {
	relID string
	name  string
	data  []byte
}

func New() *Document {
	return &Document{created: time.Now().UTC()}
}

// AddHeading appends a heading paragraph; level 1..3.
func (d *Document) AddHeading(text string, level int) {
	if level < 1 {
		level = 1
	}
	if level > 3 {
		level = 3
	}
	fmt.Fprintf(&d.body, `<w:p><w:pPr><w:pStyle w:val="Heading%d"/></w:pPr>`, level)
	writeRun(&d.body, Run{Text: text})
	d.body.WriteString(`</w:p>`)
}

// AddParagraph appends text as one paragraph. Inline markdown emphasis is
// kept as bold/italic runs and line breaks become breaks.
func (d *Document) AddParagraph(text string) {
	d.body.WriteString(`<w:p>`)
	for _, r := range InlineRuns(text) {
		writeRun(&d.body, r)
	}
	d.body.WriteString(`</w:p>`)
}

// AddPicture embeds the image at path scaled to width EMU, keeping the
// aspect ratio. Nothing is added when it returns an error.
func (d *Document) AddPicture(path string, width int64) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := d.AddPictureData(data, width); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// AddPictureData is AddPicture for an image already in memory.
func (d *Document) AddPictureData(data []byte, width int64) error {
	pic, err := decodePicture(data)
	if err != nil {
		return err
	}
	return d.addPicture(pic, width)
}

func (d *Document) addPicture(pic picture, width int64) error {
	if width <= 0 {
		return fmt.Errorf("picture width must be positive, got %d", width)
	}
	height := width * int64(pic.height) / int64(pic.width)

	d.nextPic++
	part := mediaPart{
		relID: fmt.Sprintf("rIdImage%d", d.nextPic),
		name:  fmt.Sprintf("image%d.%s", d.nextPic, pic.ext),
		data:  pic.data,
	}
	d.media = append(d.media, part)
	fmt.Fprintf(&d.body, drawingFormat, width, height, d.nextPic, part.name, part.relID)
	return nil
}

// Pictures returns the number of embedded pictures.
func (d *Document) Pictures() int {
	return len(d.media)
}

// WriteTo writes the zipped package to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"docProps/app.xml", appXML},
		{"docProps/core.xml", d.coreXML()},
		{"word/styles.xml", stylesXML},
		{"word/_rels/document.xml.rels", d.documentRels()},
		{"word/document.xml", documentOpen + d.body.String() + documentClose},
	}
	for _, p := range parts {
		if err := writeZipFile(zw, p.name, []byte(p.data)); err != nil {
			return cw.n, err
		}
	}
	for _, m := range d.media {
		if err := writeZipFile(zw, "word/media/"+m.name, m.data); err != nil {
			return cw.n, err
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// Save writes the document to path, replacing any existing file.
func (d *Document) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := d.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (d *Document) coreXML() string {
	ts := d.created.Format(time.RFC3339)
	return fmt.Sprintf(coreXMLFormat, escape(d.Title), escape(d.Creator), ts, ts)
}

func (d *Document) documentRels() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	b.WriteString(`<Relationship Id="rIdStyles" Type="` + relStyles + `" Target="styles.xml"/>`)
	for _, m := range d.media {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="%s" Target="media/%s"/>`, m.relID, relImage, m.name)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func writeRun(buf *bytes.Buffer, r Run) {
	if r.Break {
		buf.WriteString(`<w:r><w:br/></w:r>`)
		return
	}
	if r.Text == "" {
		return
	}
	buf.WriteString(`<w:r>`)
	if r.Bold || r.Italic {
		buf.WriteString(`<w:rPr>`)
		if r.Bold {
			buf.WriteString(`<w:b/>`)
		}
		if r.Italic {
			buf.WriteString(`<w:i/>`)
		}
		buf.WriteString(`</w:rPr>`)
	}
	buf.WriteString(`<w:t xml:space="preserve">`)
	buf.WriteString(escape(r.Text))
	buf.WriteString(`</w:t></w:r>`)
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
