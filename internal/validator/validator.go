package validator

import (
	"fmt"
	"strconv"

	"github.com/fyerfyer/doc-validate-system/internal/extractor"
	"github.com/fyerfyer/doc-validate-system/internal/vocab"
)

// AllPages 跨页一致性异常的页引用
const AllPages = "All Pages"

// 异常类型
const (
	IssueMissing      = "Missing"
	IssueInconsistent = "Inconsistent values"
)

// Anomaly 一条数据质量异常
// 缺字段、数值越界、跨页不一致都是数据而不是错误
type Anomaly struct {
	Page  string `json:"page"`  // 页码或"All Pages"
	Field string `json:"field"` // 字段标签
	Issue string `json:"issue"` // 异常描述
}

// PageRef 把页码转成异常记录里的页引用
func PageRef(pageIndex int) string {
	return strconv.Itoa(pageIndex)
}

// OutOfRangeIssue 数值越界异常的描述，带上原始值
func OutOfRangeIssue(value string) string {
	return fmt.Sprintf("Out of range: %s", value)
}

// ValidatePage 校验单页抽取结果，返回该页的异常列表
// 词表中缺失的字段记Missing；有数值范围的字段做区间校验，
// 不通过记Out of range。没有任何副作用。
func ValidatePage(pageIndex int, fields map[string]string) []Anomaly {
	var anomalies []Anomaly

	for _, field := range vocab.RequiredFields {
		if _, ok := fields[field]; !ok {
			anomalies = append(anomalies, Anomaly{
				Page:  PageRef(pageIndex),
				Field: field,
				Issue: IssueMissing,
			})
		}
	}

	// 按词表顺序遍历，保证越界异常的相对顺序稳定
	for _, field := range vocab.RequiredFields {
		if !vocab.HasNumericRange(field) {
			continue
		}
		value, ok := fields[field]
		if !ok {
			continue
		}
		if !extractor.ValidateNumeric(field, value) {
			anomalies = append(anomalies, Anomaly{
				Page:  PageRef(pageIndex),
				Field: field,
				Issue: OutOfRangeIssue(value),
			})
		}
	}

	return anomalies
}

// CheckConsistency 检查某字段在所有页上的取值是否一致
// 只统计出现了该字段的页；不同取值不超过一个即视为一致，
// 所有页都没有该字段时视为空洞一致。
func CheckConsistency(field string, allFields []map[string]string) bool {
	distinct := make(map[string]struct{})
	for _, fields := range allFields {
		if value, ok := fields[field]; ok {
			distinct[value] = struct{}{}
		}
	}
	return len(distinct) <= 1
}

// ConsistencyAnomalies 对配置的跨页字段逐个做一致性检查
// 返回的异常页引用固定为"All Pages"
func ConsistencyAnomalies(allFields []map[string]string) []Anomaly {
	var anomalies []Anomaly
	for _, field := range vocab.ConsistencyFields {
		if !CheckConsistency(field, allFields) {
			anomalies = append(anomalies, Anomaly{
				Page:  AllPages,
				Field: field,
				Issue: IssueInconsistent,
			})
		}
	}
	return anomalies
}

// IsCritical 判断异常是否属于关键问题
// 数值越界和跨页不一致是关键问题，单页缺字段不是
func IsCritical(a Anomaly) bool {
	return a.Issue != IssueMissing
}
