package pagetext

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pageNumberPattern 从pdfcpu导出的内容文件名里解析页码
var pageNumberPattern = regexp.MustCompile(`_(\d+)\.txt$`)

// PDFProvider PDF页文本提供器
// 打开时把每一页的内容一次性提取到内存；没有可提取文字的页
// 对应空字符串而不是错误，由调用方决定如何处理
type PDFProvider struct {
	pages []string
}

// OpenPDF 打开PDF文件并提取每一页的文本
func OpenPDF(filePath string) (*PDFProvider, error) {
	conf := model.NewDefaultConfiguration()

	pageCount, err := api.PageCountFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF page count: %v", err)
	}

	// 创建临时目录用于存放提取的文本
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// 提取全部页面的内容到临时目录
	if err := api.ExtractContentFile(filePath, tmpDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract text from PDF: %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted text dir: %v", err)
	}

	// 按文件名里的页码归位，缺页保持空文本
	pages := make([]string, pageCount)
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		match := pageNumberPattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		pageNum, err := strconv.Atoi(match[1])
		if err != nil || pageNum < 1 || pageNum > pageCount {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, entry.Name()))
		if err != nil {
			continue
		}
		pages[pageNum-1] = string(data)
	}

	return &PDFProvider{pages: pages}, nil
}

// PageCount 返回PDF的总页数
func (p *PDFProvider) PageCount() int {
	return len(p.pages)
}

// PageText 返回指定页的文本
func (p *PDFProvider) PageText(index int) (string, error) {
	if index < 0 || index >= len(p.pages) {
		return "", pageOutOfRange(index, len(p.pages))
	}
	return p.pages[index], nil
}

// Close 文本已全部驻留内存，无需释放额外资源
func (p *PDFProvider) Close() error {
	return nil
}
