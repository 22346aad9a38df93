// Package export 把累积记录导出为CSV、JSON或Excel文件
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/RecoveryAshes/XHSCollector/internal/models"
	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

// ErrNoRecords 没有可导出的记录
var ErrNoRecords = errors.New("没有数据可导出")

// DefaultPrefix 默认文件名前缀
const DefaultPrefix = "小红书数据"

// 表头顺序即列顺序
var columns = []string{"序号", "标题", "作者", "点赞数", "收藏数", "评论数", "图片链接", "笔记链接", "发布时间", "采集时间"}

// 采集时间按北京时间展示
var shanghai = time.FixedZone("CST", 8*60*60)

const displayTimeLayout = "2006/01/02 15:04:05"

// Exporter 导出器
type Exporter struct {
	dir    string
	prefix string
	now    func() time.Time
}

// NewExporter 创建导出器,文件写入dir
func NewExporter(dir, prefix string) *Exporter {
	if dir == "" {
		dir = "output"
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Exporter{dir: dir, prefix: prefix, now: time.Now}
}

// Dir 导出目录
func (e *Exporter) Dir() string {
	return e.dir
}

// Export 按格式导出全部记录
func (e *Exporter) Export(records []models.Record, format models.ExportFormat) (*models.ExportResult, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	var write func(path string, records []models.Record) error
	switch format {
	case models.FormatCSV:
		write = writeCSV
	case models.FormatJSON:
		write = e.writeJSON
	case models.FormatXLSX:
		write = writeXLSX
	default:
		return nil, fmt.Errorf("不支持的导出格式: %s", format)
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("创建导出目录失败: %w", err)
	}

	filename := e.Filename(format)
	path := filepath.Join(e.dir, filename)
	if err := write(path, records); err != nil {
		return nil, fmt.Errorf("%s导出失败: %w", format, err)
	}

	result := &models.ExportResult{Filename: filename, Path: path, Format: format, Count: len(records)}
	if info, err := os.Stat(path); err == nil {
		result.Size = info.Size()
	}
	utils.Infof("📤 已导出 %d 条记录: %s", result.Count, path)
	return result, nil
}

// Filename 前缀_年-月-日-时-分-秒.扩展名
func (e *Exporter) Filename(format models.ExportFormat) string {
	stamp := e.now().In(shanghai).Format("2006-01-02-15-04-05")
	return utils.SanitizeFilename(fmt.Sprintf("%s_%s.%s", e.prefix, stamp, format.Extension()))
}

// row 一条记录对应的表格行,缺失的计数按0输出
func row(index int, r models.Record) []string {
	return []string{
		strconv.Itoa(index + 1),
		models.StringValue(r.Title),
		models.StringValue(r.Author),
		count(r.Likes),
		count(r.Collects),
		count(r.Comments),
		models.StringValue(r.ImageURL),
		r.URL,
		models.StringValue(r.PublishTime),
		collectedTime(r),
	}
}

func count(n *int64) string {
	if n == nil {
		return "0"
	}
	return strconv.FormatInt(*n, 10)
}

func collectedTime(r models.Record) string {
	if r.CollectedAt == 0 {
		return ""
	}
	return r.CollectedTime().In(shanghai).Format(displayTimeLayout)
}

// writeCSV 带BOM的UTF-8,Excel直接打开不乱码
func writeCSV(path string, records []models.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString("\ufeff"); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return err
	}
	for i, r := range records {
		if err := w.Write(row(i, r)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// jsonExport JSON导出文件结构
type jsonExport struct {
	ExportTime string          `json:"exportTime"`
	TotalCount int             `json:"totalCount"`
	Data       []models.Record `json:"data"`
}

func (e *Exporter) writeJSON(path string, records []models.Record) error {
	data, err := json.MarshalIndent(jsonExport{
		ExportTime: e.now().UTC().Format(time.RFC3339),
		TotalCount: len(records),
		Data:       records,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeXLSX(path string, records []models.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "采集数据"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			i + 1,
			models.StringValue(r.Title),
			models.StringValue(r.Author),
			int64Value(r.Likes),
			int64Value(r.Collects),
			int64Value(r.Comments),
			models.StringValue(r.ImageURL),
			r.URL,
			models.StringValue(r.PublishTime),
			collectedTime(r),
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "B", "B", 40); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "G", "H", 50); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func int64Value(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
