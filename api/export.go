package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"minty/database"
	"minty/middleware"
	"minty/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportHandler 导出处理器
type ExportHandler struct{}

// NewExportHandler 创建导出处理器
func NewExportHandler() *ExportHandler {
	return &ExportHandler{}
}

// exportData 一次导出涉及的全部数据
type exportData struct {
	Transactions []models.Transaction
	Categories   []models.Category
	Budgets      []models.Budget
}

// parseExportRange 解析导出时间范围，返回 [start, end] 闭区间
func parseExportRange(c *gin.Context) (time.Time, time.Time, bool) {
	startTimeStr := c.Query("start_time")
	endTimeStr := c.Query("end_time")
	if startTimeStr == "" || endTimeStr == "" {
		BadRequest(c, "请提供开始时间和结束时间")
		return time.Time{}, time.Time{}, false
	}

	startTime, err := time.ParseInLocation("2006-01-02", startTimeStr, time.Local)
	if err != nil {
		BadRequest(c, "开始时间格式错误，应为: 2006-01-02")
		return time.Time{}, time.Time{}, false
	}
	endTime, err := time.ParseInLocation("2006-01-02", endTimeStr, time.Local)
	if err != nil {
		BadRequest(c, "结束时间格式错误，应为: 2006-01-02")
		return time.Time{}, time.Time{}, false
	}
	endTime = endTime.Add(24*time.Hour - time.Second)
	return startTime, endTime, true
}

// loadExportData 装载导出数据：交易按时间范围过滤，分类与预算全量
func loadExportData(userID uint, startTime, endTime time.Time) (*exportData, error) {
	var data exportData
	if err := database.DB.Where("user_id = ? AND transaction_time >= ? AND transaction_time <= ?", userID, startTime, endTime).
		Order("transaction_time DESC").
		Find(&data.Transactions).Error; err != nil {
		return nil, err
	}
	if err := database.DB.Where("user_id = ?", userID).Order("name ASC").Find(&data.Categories).Error; err != nil {
		return nil, err
	}
	if err := database.DB.Where("user_id = ?", userID).Order("start_date DESC").Find(&data.Budgets).Error; err != nil {
		return nil, err
	}
	return &data, nil
}

func transactionRow(txn *models.Transaction) []string {
	budgetID := ""
	if txn.BudgetID != nil {
		budgetID = fmt.Sprintf("%d", *txn.BudgetID)
	}
	return []string{
		fmt.Sprintf("%d", txn.ID),
		txn.Type,
		fmt.Sprintf("%.2f", txn.AbsAmount()),
		txn.CategoryName,
		budgetID,
		txn.Description,
		txn.Notes,
		txn.Tags,
		txn.TransactionTime.Format("2006-01-02 15:04:05"),
		txn.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func categoryRow(cat *models.Category) []string {
	return []string{
		fmt.Sprintf("%d", cat.ID),
		cat.Name,
		cat.Type,
		cat.Color,
		fmt.Sprintf("%.2f", cat.MonthlyLimit),
		fmt.Sprintf("%t", cat.AlertEnabled),
		fmt.Sprintf("%d", cat.AlertThreshold),
	}
}

func budgetRow(b *models.Budget) []string {
	return []string{
		fmt.Sprintf("%d", b.ID),
		b.Name,
		b.Type,
		fmt.Sprintf("%.2f", b.TotalAmount),
		fmt.Sprintf("%.2f", b.SpentAmount),
		b.StartDate.Format("2006-01-02"),
		b.EndDate.Format("2006-01-02"),
	}
}

var (
	transactionHeaders = []string{"ID", "类型", "金额", "分类", "预算ID", "描述", "备注", "标签", "交易时间", "创建时间"}
	categoryHeaders    = []string{"ID", "名称", "类型", "颜色", "月限额", "限额提醒", "提醒阈值(%)"}
	budgetHeaders      = []string{"ID", "名称", "类型", "总金额", "已用金额", "开始日期", "结束日期"}
)

// ExportCSV 导出账本为 CSV
// @Summary 导出账本为 CSV
// @Description 按时间范围导出交易，并附全量分类与预算，三段以空行分隔。
// @Description 带 UTF-8 BOM，Excel 可直接打开中文
// @Tags 导出
// @Produce text/csv
// @Security BearerAuth
// @Param start_time query string true "开始时间 (2024-01-01)"
// @Param end_time query string true "结束时间 (2024-12-31)"
// @Success 200 {file} file "CSV 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	startTime, endTime, ok := parseExportRange(c)
	if !ok {
		return
	}
	data, err := loadExportData(userID, startTime, endTime)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询数据失败"))
		return
	}

	buf := new(bytes.Buffer)
	// BOM 以支持 Excel 中文显示
	buf.WriteString("\xEF\xBB\xBF")
	writer := csv.NewWriter(buf)

	writeSection := func(title string, headers []string, rows [][]string) error {
		if err := writer.Write([]string{title}); err != nil {
			return err
		}
		if err := writer.Write(headers); err != nil {
			return err
		}
		for _, row := range rows {
			if err := writer.Write(row); err != nil {
				return err
			}
		}
		// 段间空行
		return writer.Write([]string{})
	}

	txnRows := make([][]string, 0, len(data.Transactions))
	for i := range data.Transactions {
		txnRows = append(txnRows, transactionRow(&data.Transactions[i]))
	}
	catRows := make([][]string, 0, len(data.Categories))
	for i := range data.Categories {
		catRows = append(catRows, categoryRow(&data.Categories[i]))
	}
	budgetRows := make([][]string, 0, len(data.Budgets))
	for i := range data.Budgets {
		budgetRows = append(budgetRows, budgetRow(&data.Budgets[i]))
	}

	if err := writeSection("交易记录", transactionHeaders, txnRows); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}
	if err := writeSection("分类", categoryHeaders, catRows); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}
	if err := writeSection("预算", budgetHeaders, budgetRows); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}

	filename := fmt.Sprintf("minty_%s_%s.csv", c.Query("start_time"), c.Query("end_time"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Content-Length", fmt.Sprintf("%d", buf.Len()))

	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportExcel 导出账本为 Excel
// @Summary 导出账本为 Excel
// @Description 按时间范围导出，交易/分类/预算各占一个工作表
// @Tags 导出
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param start_time query string true "开始时间 (2024-01-01)"
// @Param end_time query string true "结束时间 (2024-12-31)"
// @Success 200 {file} file "Excel 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/excel [get]
func (h *ExportHandler) ExportExcel(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	startTime, endTime, ok := parseExportRange(c)
	if !ok {
		return
	}
	data, err := loadExportData(userID, startTime, endTime)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询数据失败"))
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	writeSheet := func(sheet string, headers []string, rows [][]string) error {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(1, 1)
		if err != nil {
			return err
		}
		headerRow := make([]interface{}, len(headers))
		for i, hd := range headers {
			headerRow[i] = hd
		}
		if err := f.SetSheetRow(sheet, cell, &headerRow); err != nil {
			return err
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			values := make([]interface{}, len(row))
			for j, v := range row {
				values[j] = v
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return err
			}
		}
		return nil
	}

	txnRows := make([][]string, 0, len(data.Transactions))
	for i := range data.Transactions {
		txnRows = append(txnRows, transactionRow(&data.Transactions[i]))
	}
	catRows := make([][]string, 0, len(data.Categories))
	for i := range data.Categories {
		catRows = append(catRows, categoryRow(&data.Categories[i]))
	}
	budgetRows := make([][]string, 0, len(data.Budgets))
	for i := range data.Budgets {
		budgetRows = append(budgetRows, budgetRow(&data.Budgets[i]))
	}

	if err := writeSheet("交易记录", transactionHeaders, txnRows); err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}
	if err := writeSheet("分类", categoryHeaders, catRows); err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}
	if err := writeSheet("预算", budgetHeaders, budgetRows); err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}
	// 删掉默认的 Sheet1
	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}

	filename := fmt.Sprintf("minty_%s_%s.xlsx", c.Query("start_time"), c.Query("end_time"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Content-Length", fmt.Sprintf("%d", buf.Len()))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ExportJSON 导出账本为 JSON
// @Summary 导出账本为 JSON
// @Description 按时间范围导出交易及全量分类与预算，附汇总信息
// @Tags 导出
// @Produce json
// @Security BearerAuth
// @Param start_time query string true "开始时间 (2024-01-01)"
// @Param end_time query string true "结束时间 (2024-12-31)"
// @Success 200 {object} Response "导出成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/json [get]
func (h *ExportHandler) ExportJSON(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	startTime, endTime, ok := parseExportRange(c)
	if !ok {
		return
	}
	data, err := loadExportData(userID, startTime, endTime)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询数据失败"))
		return
	}

	var totalIncome, totalExpense float64
	for i := range data.Transactions {
		if data.Transactions[i].IsExpense() {
			totalExpense += data.Transactions[i].AbsAmount()
		} else {
			totalIncome += data.Transactions[i].AbsAmount()
		}
	}

	Success(c, gin.H{
		"start_time":    c.Query("start_time"),
		"end_time":      c.Query("end_time"),
		"total_count":   len(data.Transactions),
		"total_income":  totalIncome,
		"total_expense": totalExpense,
		"transactions":  data.Transactions,
		"categories":    data.Categories,
		"budgets":       data.Budgets,
	})
}
