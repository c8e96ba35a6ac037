package pagetext

import (
	"fmt"
	"os"
)

// PlainTextProvider 纯文本页提供器，整个文件作为单独一页
type PlainTextProvider struct {
	text string
}

// OpenPlainText 打开纯文本文件
func OpenPlainText(filePath string) (*PlainTextProvider, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %v", err)
	}
	return &PlainTextProvider{text: string(content)}, nil
}

// PageCount 纯文本文档总是单页
func (p *PlainTextProvider) PageCount() int {
	return 1
}

// PageText 返回文档文本
func (p *PlainTextProvider) PageText(index int) (string, error) {
	if index != 0 {
		return "", pageOutOfRange(index, 1)
	}
	return p.text, nil
}

// Close 无资源需要释放
func (p *PlainTextProvider) Close() error {
	return nil
}

// Ensure the concrete providers satisfy the interface.
var (
	_ Provider = (*PDFProvider)(nil)
	_ Provider = (*MarkdownProvider)(nil)
	_ Provider = (*PlainTextProvider)(nil)
	_ Provider = (*StaticProvider)(nil)
)
