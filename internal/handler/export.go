package handler

import (
	"fmt"
	"net/http"
	"time"

	"proxy-panel/internal/models"
	"proxy-panel/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ExportHandler exports the user table for reporting.
type ExportHandler struct {
	DB *gorm.DB
}

func NewExportHandler(db *gorm.DB) *ExportHandler {
	return &ExportHandler{DB: db}
}

// ExportUsersXLSX writes all users with their usage columns into an XLSX
// sheet.
func (h *ExportHandler) ExportUsersXLSX(c *gin.Context) {
	var users []models.User
	if err := h.DB.Preload("Groups").Order("id").Find(&users).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "list users failed")
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Users"
	index, err := f.NewSheet(sheet)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "create sheet failed")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Username", "Status", "Used Traffic", "Lifetime Used", "Data Limit", "Reset Strategy", "Expire", "Groups"}
	for i, head := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, head)
	}

	for row, u := range users {
		limit := ""
		if u.DataLimit != nil {
			limit = fmt.Sprintf("%d", *u.DataLimit)
		}
		expire := ""
		if u.Expire != nil {
			expire = u.Expire.Format("2006-01-02 15:04:05")
		}
		groups := ""
		for i := range u.Groups {
			if i > 0 {
				groups += ", "
			}
			groups += u.Groups[i].Name
		}
		values := []interface{}{
			u.Username, string(u.Status), u.UsedTraffic, u.LifetimeUsedTraffic,
			limit, string(u.DataLimitResetStrategy), expire, groups,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"users_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "write xlsx failed")
		return
	}
}
