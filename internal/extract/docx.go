package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// docxText reads word/document.xml and returns body paragraphs followed by
// table contents. Table cells on a row are joined with spaces, each row
// ends with a newline.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx archive: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("word/document.xml not found")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("opening document.xml: %w", err)
	}
	defer rc.Close()

	paragraphs, tables, err := parseDocument(rc)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			sb.WriteString(p)
			sb.WriteString("\n")
		}
	}
	for _, table := range tables {
		for _, row := range table {
			for _, cell := range row {
				if strings.TrimSpace(cell) != "" {
					sb.WriteString(cell)
					sb.WriteString(" ")
				}
			}
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// parseDocument walks the WordprocessingML token stream. Paragraphs nested
// inside tables belong to their cell, not to the body paragraph list.
func parseDocument(r io.Reader) (paragraphs []string, tables [][][]string, err error) {
	dec := xml.NewDecoder(r)

	var (
		tableDepth int
		para       strings.Builder
		inPara     bool
		inText     bool
		cellParas  []string
		row        []string
		table      [][]string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parsing document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
				if tableDepth == 1 {
					table = nil
				}
			case "tr":
				if tableDepth == 1 {
					row = nil
				}
			case "tc":
				if tableDepth == 1 {
					cellParas = nil
				}
			case "p":
				inPara = true
				para.Reset()
			case "t":
				inText = true
			case "tab":
				if inPara {
					para.WriteString("\t")
				}
			case "br", "cr":
				if inPara {
					para.WriteString("\n")
				}
			}
		case xml.CharData:
			if inPara && inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				inPara = false
				if tableDepth == 0 {
					paragraphs = append(paragraphs, para.String())
				} else {
					cellParas = append(cellParas, para.String())
				}
			case "tc":
				if tableDepth == 1 {
					row = append(row, strings.Join(cellParas, "\n"))
				}
			case "tr":
				if tableDepth == 1 {
					table = append(table, row)
				}
			case "tbl":
				if tableDepth == 1 {
					tables = append(tables, table)
				}
				tableDepth--
			}
		}
	}
	return paragraphs, tables, nil
}
