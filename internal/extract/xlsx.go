package extract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

type xlsxWorkbook struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"id,attr"`
	} `xml:"sheets>sheet"`
}

type xlsxRels struct {
	Items []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type xlsxSharedStrings struct {
	Items []struct {
		T    string `xml:"t"`
		Runs []struct {
			T string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

type xlsxSheet struct {
	Rows []struct {
		Cells []struct {
			Ref  string `xml:"r,attr"`
			Type string `xml:"t,attr"`
			V    string `xml:"v"`
			Is   struct {
				T string `xml:"t"`
			} `xml:"is"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

type sheetRef struct {
	name string
	part string
}

// extractXLSX renders every worksheet as CSV rows under a "## Sheet: <name>" line.
func extractXLSX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[strings.ReplaceAll(f.Name, "\\", "/")] = f
	}

	shared, err := readSharedStrings(parts)
	if err != nil {
		return "", err
	}
	sheets, err := listSheets(parts)
	if err != nil {
		return "", err
	}
	if len(sheets) == 0 {
		return "", errors.New("workbook has no worksheets")
	}

	var out strings.Builder
	for i, sheet := range sheets {
		f, ok := parts[sheet.part]
		if !ok {
			continue
		}
		var ws xlsxSheet
		if err := decodePart(f, &ws); err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheet.name, err)
		}
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString("## Sheet: ")
		out.WriteString(sheet.name)
		out.WriteString("\n")

		w := csv.NewWriter(&out)
		for _, row := range ws.Rows {
			var record []string
			for _, c := range row.Cells {
				col := len(record)
				if c.Ref != "" {
					if idx, ok := columnIndex(c.Ref); ok && idx >= col {
						col = idx
					}
				}
				for len(record) < col {
					record = append(record, "")
				}
				record = append(record, cellValue(c.Type, c.V, c.Is.T, shared))
			}
			if err := w.Write(record); err != nil {
				return "", err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", err
		}
	}
	return out.String(), nil
}

func cellValue(kind, v, inline string, shared []string) string {
	switch kind {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return inline
	case "b":
		if v == "1" {
			return "TRUE"
		}
		return "FALSE"
	default:
		return v
	}
}

func readSharedStrings(parts map[string]*zip.File) ([]string, error) {
	f, ok := parts["xl/sharedStrings.xml"]
	if !ok {
		return nil, nil
	}
	var sst xlsxSharedStrings
	if err := decodePart(f, &sst); err != nil {
		return nil, fmt.Errorf("shared strings: %w", err)
	}
	out := make([]string, len(sst.Items))
	for i, item := range sst.Items {
		text := item.T
		for _, r := range item.Runs {
			text += r.T
		}
		out[i] = text
	}
	return out, nil
}

// listSheets resolves workbook order through the relationships part, falling
// back to worksheet file order when either part is missing.
func listSheets(parts map[string]*zip.File) ([]sheetRef, error) {
	wbFile, hasWB := parts["xl/workbook.xml"]
	relsFile, hasRels := parts["xl/_rels/workbook.xml.rels"]
	if hasWB && hasRels {
		var wb xlsxWorkbook
		if err := decodePart(wbFile, &wb); err != nil {
			return nil, fmt.Errorf("workbook: %w", err)
		}
		var rels xlsxRels
		if err := decodePart(relsFile, &rels); err != nil {
			return nil, fmt.Errorf("workbook rels: %w", err)
		}
		targets := make(map[string]string, len(rels.Items))
		for _, r := range rels.Items {
			targets[r.ID] = resolveTarget(r.Target)
		}
		var out []sheetRef
		for _, s := range wb.Sheets {
			if target, ok := targets[s.RID]; ok {
				out = append(out, sheetRef{name: s.Name, part: target})
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	var names []string
	for name := range parts {
		if strings.HasPrefix(name, "xl/worksheets/") && strings.HasSuffix(name, ".xml") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]sheetRef, 0, len(names))
	for _, name := range names {
		out = append(out, sheetRef{name: strings.TrimSuffix(path.Base(name), ".xml"), part: name})
	}
	return out, nil
}

func resolveTarget(target string) string {
	target = strings.ReplaceAll(target, "\\", "/")
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join("xl", target))
}

func decodePart(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return xml.Unmarshal(raw, v)
}

// columnIndex converts the letters of a cell reference such as "C7" to a zero-based column.
func columnIndex(ref string) (int, bool) {
	col := 0
	n := 0
	for _, r := range ref {
		if r >= 'A' && r <= 'Z' {
			col = col*26 + int(r-'A'+1)
			n++
			continue
		}
		if r >= 'a' && r <= 'z' {
			col = col*26 + int(r-'a'+1)
			n++
			continue
		}
		break
	}
	if n == 0 {
		return 0, false
	}
	return col - 1, true
}
