package extractor

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fyerfyer/doc-validate-system/internal/vocab"
)

// maxValueLength 单个字段值的最大长度，避免吞掉大段无关文本
const maxValueLength = 1000

var (
	// 预编译每个字段的兜底正则：label[:\s]*([^\n]+)
	fieldPatterns = buildFieldPatterns()
	// 小写标签的子串匹配正则，用于定位标签出现位置
	labelPatterns = buildLabelPatterns()

	leadingSeparators = regexp.MustCompile(`^[\s:.-]*`)
	whitespaceRuns    = regexp.MustCompile(`\s+`)
	numberPattern     = regexp.MustCompile(`[\d.]+`)
)

func buildFieldPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(vocab.RequiredFields))
	for _, field := range vocab.RequiredFields {
		patterns[field] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(field) + `[:\s]*([^\n]+)`)
	}
	return patterns
}

func buildLabelPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(vocab.RequiredFields))
	for _, field := range vocab.RequiredFields {
		patterns[field] = regexp.MustCompile(regexp.QuoteMeta(strings.ToLower(field)))
	}
	return patterns
}

// occurrence 标签在页面文本中的一次出现
type occurrence struct {
	start int
	end   int
	field string
}

// Extract 从一页文本中抽取全部词表字段
// 先按标签位置切分取值（可以拿到跨行和没有冒号的值），
// 再对仍然缺失的字段用单字段正则兜底。
// 注意：标签按普通子串匹配而不是最长匹配，"Part Number"会命中
// "Customer Part Number"内部，这是沿用的已知行为。
func Extract(text string) map[string]string {
	fields := make(map[string]string)
	if text == "" {
		return fields
	}

	lowerText := strings.ToLower(text)

	// 定位所有标签出现位置
	var occurrences []occurrence
	for _, field := range vocab.RequiredFields {
		for _, loc := range labelPatterns[field].FindAllStringIndex(lowerText, -1) {
			occurrences = append(occurrences, occurrence{start: loc[0], end: loc[1], field: field})
		}
	}

	// 一个标签都没找到时，退回到逐字段正则匹配
	if len(occurrences) == 0 {
		for field, pattern := range fieldPatterns {
			if m := pattern.FindStringSubmatch(text); m != nil {
				fields[field] = strings.TrimSpace(m[1])
			}
		}
		return fields
	}

	// 按出现位置排序，取每个标签到下一个标签之间的文本作为值
	sort.Slice(occurrences, func(i, j int) bool {
		return occurrences[i].start < occurrences[j].start
	})

	for idx, occ := range occurrences {
		valueStart := occ.end
		valueEnd := len(text)
		if idx+1 < len(occurrences) {
			valueEnd = occurrences[idx+1].start
		}
		// 标签互为子串时下一个出现位置可能落在当前标签内部，取空值
		if valueEnd < valueStart {
			valueEnd = valueStart
		}
		raw := text[valueStart:valueEnd]
		// 去掉开头的分隔符，把内部空白压成单个空格
		raw = leadingSeparators.ReplaceAllString(raw, "")
		value := strings.TrimSpace(whitespaceRuns.ReplaceAllString(raw, " "))
		if value == "" {
			continue
		}
		if len(value) > maxValueLength {
			value = truncateValue(value)
		}
		fields[occ.field] = value
	}

	// 仍然缺失的字段再用兜底正则试一次
	for field, pattern := range fieldPatterns {
		if _, ok := fields[field]; ok {
			continue
		}
		if m := pattern.FindStringSubmatch(text); m != nil {
			fields[field] = strings.TrimSpace(m[1])
		}
	}

	return fields
}

// truncateValue 把超长取值截断到长度上限
// 截断点回退到rune边界，OCR文本里的多字节字符不会被切成半截
func truncateValue(value string) string {
	cut := maxValueLength
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

// ValidateNumeric 校验数值字段是否落在配置区间内
// 取值中第一段数字/小数点字符解析为浮点数；解析失败视为校验失败而不是错误
func ValidateNumeric(field, value string) bool {
	r, ok := vocab.NumericRanges[field]
	if !ok {
		return false
	}

	match := numberPattern.FindString(value)
	if match == "" {
		return false
	}

	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return false
	}

	return val >= r.Min && val <= r.Max
}
