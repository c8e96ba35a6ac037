package pagetext

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Provider 按页提供文档文本
// 页索引从0开始；空字符串是合法的页文本，表示该页没有可提取文字
type Provider interface {
	// PageCount 返回文档的总页数
	PageCount() int

	// PageText 返回指定页的文本内容
	PageText(index int) (string, error)

	// Close 释放解析过程中占用的资源
	Close() error
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ErrUnsupportedType 不支持的文档类型
var ErrUnsupportedType = errors.New("unsupported document type")

// OpenProvider 根据文件类型打开对应的页文本提供器
func OpenProvider(filePath string) (Provider, error) {
	switch detectContentType(filePath) {
	case PDF:
		return OpenPDF(filePath)
	case Markdown:
		return OpenMarkdown(filePath)
	case PlainText:
		return OpenPlainText(filePath)
	default:
		return nil, ErrUnsupportedType
	}
}

// detectContentType 根据文件扩展名检测内容类型
func detectContentType(filePath string) ContentType {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// pageOutOfRange 构造页索引越界错误
func pageOutOfRange(index, count int) error {
	return fmt.Errorf("page index %d out of range [0, %d)", index, count)
}

// StaticProvider 由内存中的页文本切片构成的提供器，主要用于测试
type StaticProvider struct {
	pages []string
}

// NewStaticProvider 创建一个静态页文本提供器
func NewStaticProvider(pages []string) *StaticProvider {
	return &StaticProvider{pages: pages}
}

// PageCount 返回页数
func (p *StaticProvider) PageCount() int {
	return len(p.pages)
}

// PageText 返回指定页的文本
func (p *StaticProvider) PageText(index int) (string, error) {
	if index < 0 || index >= len(p.pages) {
		return "", pageOutOfRange(index, len(p.pages))
	}
	return p.pages[index], nil
}

// Close 无资源需要释放
func (p *StaticProvider) Close() error {
	return nil
}
