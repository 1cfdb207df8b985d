package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// Outline is a flat reading of a .docx: its core title and one block per
// body paragraph.
type Outline struct {
	Title  string         `json:"title"`
	Blocks []OutlineBlock `json:"blocks"`
}

// OutlineBlock is one paragraph. Style is the paragraph style id ("" for Normal).
type OutlineBlock struct {
	Style    string `json:"style,omitempty"`
	Text     string `json:"text,omitempty"`
	Pictures int    `json:"pictures,omitempty"`
}

// Pictures counts embedded drawings across all blocks.
func (o Outline) Pictures() int {
	n := 0
	for _, b := range o.Blocks {
		n += b.Pictures
	}
	return n
}

// ReadOutline opens a .docx package and returns its outline.
func ReadOutline(data []byte) (Outline, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Outline{}, err
	}

	var out Outline
	if core, err := readZipFile(zr, "docProps/core.xml"); err == nil {
		var props struct {
			Title string `xml:"title"`
		}
		if err := xml.Unmarshal(core, &props); err == nil {
			out.Title = strings.TrimSpace(props.Title)
		}
	}

	doc, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return Outline{}, err
	}
	out.Blocks, err = readBlocks(doc)
	return out, err
}

func readBlocks(doc []byte) ([]OutlineBlock, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	var (
		blocks []OutlineBlock
		cur    *OutlineBlock
		text   strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return blocks, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				cur = &OutlineBlock{}
				text.Reset()
			case "pStyle":
				if cur != nil {
					cur.Style = attr(t, "val")
				}
			case "t":
				inText = true
			case "br":
				text.WriteString("\n")
			case "drawing":
				if cur != nil {
					cur.Pictures++
				}
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if cur != nil {
					cur.Text = text.String()
					blocks = append(blocks, *cur)
					cur = nil
				}
			}
		}
	}
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, errors.New("docx: missing part " + name)
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
