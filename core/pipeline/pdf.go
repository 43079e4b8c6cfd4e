package pipeline

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
	"golang.org/x/text/encoding/charmap"
)

var (
	contentPageFile = regexp.MustCompile(`page_(\d+)`)
	// A literal or hex string followed by a text showing operator, or a TJ array
	textShowOperator = regexp.MustCompile(`(?:\((?:\\.|[^\\)])*\)|<[0-9A-Fa-f\s]*>)\s*(?:Tj|'|")|\[(?:[^\]\\]|\\.)*\]\s*TJ`)
	pdfString        = regexp.MustCompile(`\((?:\\.|[^\\)])*\)|<[0-9A-Fa-f\s]*>`)
	hexSpace         = regexp.MustCompile(`\s+`)
	textLineOperator = regexp.MustCompile(`(?:^|\s)(?:T\*|Td|TD|ET)(?:\s|$)`)
)

// ListPDFs returns the PDF files directly inside dir, sorted by name
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, helper.NewError("read corpus directory", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	return files, nil
}

// ExtractPDF reads the text of every page of the PDF at filePath into a Document.
// Pages are joined with blank lines so the chunker treats them as paragraphs.
// Pages with content but no readable text are logged at warn.
func ExtractPDF(filePath string, logger *slog.Logger) (*model.Document, error) {
	pdfCtx, err := api.ReadContextFile(filePath)
	if err != nil {
		return nil, helper.NewError("read pdf context", err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp("", "grimoire-pdf-")
	if err != nil {
		return nil, helper.NewError("create temp directory", err)
	}
	defer os.RemoveAll(outDir)

	conf := pdfmodel.NewDefaultConfiguration()
	if err := api.ExtractContentFile(filePath, outDir, nil, conf); err != nil {
		return nil, helper.NewError("extract pdf content", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return nil, helper.NewError("read extracted content", err)
	}

	pageTexts := make(map[int]string, len(files))
	pagesWithContent := make(map[int]bool, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		match := contentPageFile.FindStringSubmatch(file.Name())
		if match == nil {
			continue
		}
		pageNum, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("read content of page %d", pageNum), err)
		}
		pageTexts[pageNum] += ContentStreamText(string(content))
		if len(strings.TrimSpace(string(content))) > 0 {
			pagesWithContent[pageNum] = true
		}
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := strings.TrimSpace(pageTexts[pageNum])
		if text == "" {
			if pagesWithContent[pageNum] {
				logger.Warn("No text extracted from page with content",
					slog.String("file", filepath.Base(filePath)),
					slog.Int("page", pageNum),
				)
			}
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(text)
	}

	return model.NewDocumentFromPDF(filePath, builder.String(), pageCount), nil
}

// ContentStreamText pulls the shown text out of a decoded PDF page content stream.
// Text positioning operators become line breaks. String bytes are read as WinAnsi codes.
func ContentStreamText(stream string) string {
	var builder strings.Builder

	last := 0
	for _, loc := range textShowOperator.FindAllStringIndex(stream, -1) {
		if textLineOperator.MatchString(stream[last:loc[0]]) && builder.Len() > 0 {
			builder.WriteString("\n")
		}
		for _, str := range pdfString.FindAllString(stream[loc[0]:loc[1]], -1) {
			var raw string
			if str[0] == '<' {
				raw = decodeHex(str[1 : len(str)-1])
			} else {
				raw = unescapeLiteral(str[1 : len(str)-1])
			}
			builder.WriteString(winAnsi(raw))
		}
		last = loc[1]
	}

	return builder.String()
}

func unescapeLiteral(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var builder strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			builder.WriteByte(s[i])
			continue
		}

		i++
		switch s[i] {
		case 'n':
			builder.WriteByte('\n')
		case 'r':
			builder.WriteByte('\r')
		case 't':
			builder.WriteByte('\t')
		case 'b', 'f':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			end := i + 1
			for end < len(s) && end < i+3 && s[end] >= '0' && s[end] <= '7' {
				end++
			}
			code, _ := strconv.ParseUint(s[i:end], 8, 8)
			builder.WriteByte(byte(code))
			i = end - 1
		default:
			builder.WriteByte(s[i])
		}
	}

	return builder.String()
}

// decodeHex decodes the digits of a hex string. A missing final digit counts as 0.
func decodeHex(digits string) string {
	digits = hexSpace.ReplaceAllString(digits, "")
	if len(digits)%2 == 1 {
		digits += "0"
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return ""
	}
	return string(b)
}

// winAnsi maps single byte character codes to UTF-8
func winAnsi(raw string) string {
	var builder strings.Builder
	builder.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c < 0x80 {
			builder.WriteByte(c)
			continue
		}
		builder.WriteRune(charmap.Windows1252.DecodeByte(c))
	}
	return builder.String()
}
