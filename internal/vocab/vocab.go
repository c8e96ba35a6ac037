package vocab

// RequiredFields 质检单中需要逐页核对的字段标签
// 顺序固定，抽取结果和导出报表都按这个顺序排列
var RequiredFields = []string{
	"Customer Name", "Customer P.O. Number", "Customer Part Number",
	"Customer Part Number Revision", "AEM Part Number", "AEM Lot Number",
	"AEM Date Code", "AEM Cage Code", "Customer Quality Clauses",
	"FAI Form 3", "Solderability Test Report", "DPA", "Visual Inspection Record",
	"Shipment Quantity", "Reel Labels", "Certificate of Conformance", "Route Sheet",
	"Part Number", "Lot Number", "Date", "Resistance", "Dimension", "Test Result",
}

// Range 数值字段的合法闭区间
type Range struct {
	Min float64
	Max float64
}

// NumericRanges 带数值范围校验的字段
var NumericRanges = map[string]Range{
	"Resistance": {Min: 95, Max: 105},
	"Dimension":  {Min: 0.9, Max: 1.1},
}

// ConsistencyFields 需要跨页一致性检查的字段
var ConsistencyFields = []string{"Part Number", "Lot Number", "Date"}

// FieldCount 返回词表大小
func FieldCount() int {
	return len(RequiredFields)
}

// HasNumericRange 判断字段是否有数值范围约束
func HasNumericRange(field string) bool {
	_, ok := NumericRanges[field]
	return ok
}
