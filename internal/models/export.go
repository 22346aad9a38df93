package models

import (
	"fmt"
	"strings"
)

// ExportFormat 导出格式
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatXLSX ExportFormat = "xlsx"
)

// ParseExportFormat 解析导出格式,excel是xlsx的别名
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("不支持的导出格式: %s (有效值: csv, json, xlsx)", s)
	}
}

// Extension 文件扩展名
func (f ExportFormat) Extension() string {
	return string(f)
}

// ExportResult 导出结果
type ExportResult struct {
	Filename string       `json:"filename"`
	Path     string       `json:"path"`
	Format   ExportFormat `json:"format"`
	Count    int          `json:"count"`
	Size     int64        `json:"size"`
}
