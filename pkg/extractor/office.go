package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xhad/mmrag/internal/types"
)

// extractDocx reads word/document.xml. Table rows come first as
// "cell | cell" lines, followed by the body paragraphs.
func extractDocx(_ context.Context, path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: open docx: %v", types.ErrExtractionFailed, err)
	}
	defer reader.Close()

	data, err := readZipFile(&reader.Reader, "word/document.xml")
	if err != nil {
		return "", err
	}
	blocks, err := parseOfficeXML(data)
	if err != nil {
		return "", err
	}
	var rows, paragraphs []string
	for _, b := range blocks {
		if b.row {
			rows = append(rows, b.text)
		} else {
			paragraphs = append(paragraphs, b.text)
		}
	}
	return strings.Join(append(rows, paragraphs...), "\n"), nil
}

var slideRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractPptx reads every slide in order under a "[Slide i]" header.
func extractPptx(_ context.Context, path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: open pptx: %v", types.ErrExtractionFailed, err)
	}
	defer reader.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range reader.File {
		m := slideRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var parts []string
	for i, s := range slides {
		data, err := readZip(s.file)
		if err != nil {
			return "", err
		}
		blocks, err := parseOfficeXML(data)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("[Slide %d]", i+1))
		for _, b := range blocks {
			parts = append(parts, b.text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func readZipFile(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name == name {
			return readZip(f)
		}
	}
	return nil, fmt.Errorf("%w: %s not found", types.ErrExtractionFailed, name)
}

func readZip(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}
	return data, nil
}

type officeBlock struct {
	text string
	row  bool
}

// parseOfficeXML walks WordprocessingML or DrawingML. Both name paragraphs
// "p", text runs "t" and tables "tbl"/"tr"/"tc", only the namespace differs.
// Blocks are returned in document order: a paragraph outside any table,
// or a table row rendered as its cell texts joined by " | ".
func parseOfficeXML(data []byte) ([]officeBlock, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var blocks []officeBlock
	var (
		tableDepth int
		inText     bool
		para       strings.Builder
		cell       []string
		row        []string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse xml: %v", types.ErrExtractionFailed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "tr":
				if tableDepth == 1 {
					row = nil
				}
			case "tc":
				if tableDepth == 1 {
					cell = nil
				}
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteString("\t")
			case "br":
				para.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(para.String())
				if tableDepth > 0 {
					if text != "" {
						cell = append(cell, text)
					}
				} else if text != "" {
					blocks = append(blocks, officeBlock{text: text})
				}
				para.Reset()
			case "tc":
				if tableDepth == 1 {
					row = append(row, strings.Join(cell, "\n"))
				}
			case "tr":
				if tableDepth == 1 {
					blocks = append(blocks, officeBlock{text: strings.Join(row, " | "), row: true})
				}
			case "tbl":
				tableDepth--
			}
		}
	}
	return blocks, nil
}
