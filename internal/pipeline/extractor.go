// Package pipeline 定义了文件处理的核心流程：提取、清洗、分块与建索引。
package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"doc-rag-go/internal/model"
	"doc-rag-go/pkg/log"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// TextExtractor 是外部的文本提取服务，例如 Tika。
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// Extractor 按扩展名把文件内容转换为纯文本。
type Extractor struct {
	fallback TextExtractor
}

// NewExtractor 创建 Extractor，fallback 为 nil 时不支持的格式直接报错。
func NewExtractor(fallback TextExtractor) *Extractor {
	return &Extractor{fallback: fallback}
}

// Extract 返回文件的纯文本。无法读取或格式不支持时返回 ErrConversion。
func (e *Extractor) Extract(ctx context.Context, fileName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", model.WrapError(model.ErrConversion, fileName, errors.New("文件内容为空"))
	}

	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".txt", ".csv", ".md":
		if !utf8.Valid(data) {
			err = errors.New("文件不是合法的 UTF-8 文本")
		}
		text = string(data)
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDocx(data)
	case ".xlsx":
		text, err = extractXlsx(data)
	default:
		if e.fallback == nil {
			err = fmt.Errorf("不支持的文件格式: %q", ext)
			break
		}
		log.Infof("[Extractor] 使用 Tika 提取文本, FileName: %s", fileName)
		text, err = e.fallback.ExtractText(ctx, bytes.NewReader(data), fileName)
	}
	if err != nil {
		return "", model.WrapError(model.ErrConversion, fileName, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", model.WrapError(model.ErrConversion, fileName, errors.New("提取的文本内容为空"))
	}
	return text, nil
}

func extractPDF(data []byte) (text string, err error) {
	// 损坏的 PDF 可能让解析库 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("解析 PDF 失败: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("打开 PDF 失败: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("读取 PDF 文本失败: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("读取 PDF 文本失败: %w", err)
	}
	return buf.String(), nil
}

// documentXML 对应 word/document.xml 中需要的部分。
type documentXML struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text []struct {
					Content string `xml:",chardata"`
				} `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

func extractDocx(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("打开 docx 失败: %w", err)
	}
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}

		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			return "", fmt.Errorf("解析 document.xml 失败: %w", err)
		}
		paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
		for _, p := range doc.Body.Paragraphs {
			var sb strings.Builder
			for _, r := range p.Runs {
				for _, t := range r.Text {
					sb.WriteString(t.Content)
				}
			}
			if sb.Len() > 0 {
				paragraphs = append(paragraphs, sb.String())
			}
		}
		return strings.Join(paragraphs, "\n"), nil
	}
	return "", errors.New("docx 中缺少 word/document.xml")
}

func extractXlsx(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("打开 xlsx 失败: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("读取工作表 %s 失败: %w", sheet, err)
		}
		sb.WriteString(sheet)
		sb.WriteString("\n")
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
