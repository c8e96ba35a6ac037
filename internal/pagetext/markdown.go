package pagetext

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownProvider Markdown页文本提供器
// Markdown没有分页概念，整个文档作为单独一页
type MarkdownProvider struct {
	text string
}

// OpenMarkdown 打开Markdown文件并提取纯文本
func OpenMarkdown(filePath string) (*MarkdownProvider, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown file: %v", err)
	}

	// 创建Markdown解析器
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)

	// 解析Markdown内容
	doc := mdParser.Parse(content)

	// 创建HTML渲染器
	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})

	// 将Markdown转换为HTML，再从HTML中提取纯文本
	htmlContent := markdown.Render(doc, renderer)
	plainText := extractTextFromHTML(string(htmlContent))

	return &MarkdownProvider{text: plainText}, nil
}

// PageCount Markdown文档总是单页
func (p *MarkdownProvider) PageCount() int {
	return 1
}

// PageText 返回文档文本
func (p *MarkdownProvider) PageText(index int) (string, error) {
	if index != 0 {
		return "", pageOutOfRange(index, 1)
	}
	return p.text, nil
}

// Close 无资源需要释放
func (p *MarkdownProvider) Close() error {
	return nil
}

// extractTextFromHTML 从HTML中提取纯文本
// 注意：这是一个简化的实现，更复杂的情况可能需要使用HTML解析库
func extractTextFromHTML(htmlContent string) string {
	// 替换常见的HTML元素为空格或换行符
	replacements := []struct {
		Old string
		New string
	}{
		{"<br>", "\n"},
		{"<br/>", "\n"},
		{"<br />", "\n"},
		{"<p>", ""},
		{"</p>", "\n\n"},
		{"<li>", "- "},
		{"</li>", "\n"},
		{"<ul>", "\n"},
		{"</ul>", "\n"},
		{"<ol>", "\n"},
		{"</ol>", "\n"},
		{"<h1>", "\n\n"},
		{"</h1>", "\n\n"},
		{"<h2>", "\n\n"},
		{"</h2>", "\n\n"},
		{"<h3>", "\n\n"},
		{"</h3>", "\n\n"},
		{"<h4>", "\n\n"},
		{"</h4>", "\n\n"},
		{"<h5>", "\n\n"},
		{"</h5>", "\n\n"},
		{"<h6>", "\n\n"},
		{"</h6>", "\n\n"},
	}

	result := htmlContent
	for _, r := range replacements {
		result = strings.ReplaceAll(result, r.Old, r.New)
	}

	// 移除所有HTML标签
	for {
		start := strings.Index(result, "<")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], ">")
		if end == -1 {
			break
		}
		result = result[:start] + " " + result[start+end+1:]
	}

	return normalizeWhitespace(result)
}

// blankLinePattern 匹配连续空行
var blankLinePattern = regexp.MustCompile(`\n{3,}`)

// spaceRunPattern 匹配行内连续空白
var spaceRunPattern = regexp.MustCompile(`[ \t]+`)

// normalizeWhitespace 规范化文本中的空白
func normalizeWhitespace(text string) string {
	text = spaceRunPattern.ReplaceAllString(text, " ")
	text = blankLinePattern.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
