package Controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var referralHeaders = map[string]string{
	"A1": "Date",
	"B1": "Name",
	"C1": "Surname",
	"D1": "Email",
	"E1": "Phone",
	"F1": "Treatment",
	"G1": "Treatment Group",
	"H1": "Status",
	"I1": "Commission",
	"J1": "Affiliate",
}

// newReferralWorkbook lays the referrals out on a single sheet, one per row.
func newReferralWorkbook(referrals []Models.Referral) *excelize.File {
	file := excelize.NewFile()
	sheet := "Referrals"
	index := file.NewSheet(sheet)
	file.SetActiveSheet(index)
	file.DeleteSheet("Sheet1")
	for k, v := range referralHeaders {
		file.SetCellValue(sheet, k, v)
	}

	for i := 0; i < len(referrals); i++ {
		appendRowReferral(sheet, file, i, referrals)
	}
	return file
}

func appendRowReferral(sheet string, file *excelize.File, index int, rows []Models.Referral) *excelize.File {
	rowCount := index + 2
	referral := rows[index]

	treatment, group, affiliate := "", "No Group", ""
	if referral.Treatment != nil {
		treatment = referral.Treatment.Name
		if referral.Treatment.Group != nil {
			group = referral.Treatment.Group.Name
		}
	}
	if referral.Affiliate != nil && referral.Affiliate.User != nil {
		affiliate = referral.Affiliate.User.Username
	}
	commission, _ := referral.CommissionAmount.Float64()

	file.SetCellValue(sheet, fmt.Sprintf("A%v", rowCount), referral.CreatedAt.Format(dateLayout))
	file.SetCellValue(sheet, fmt.Sprintf("B%v", rowCount), referral.Name)
	file.SetCellValue(sheet, fmt.Sprintf("C%v", rowCount), referral.Surname)
	file.SetCellValue(sheet, fmt.Sprintf("D%v", rowCount), referral.Email)
	file.SetCellValue(sheet, fmt.Sprintf("E%v", rowCount), referral.Phone)
	file.SetCellValue(sheet, fmt.Sprintf("F%v", rowCount), treatment)
	file.SetCellValue(sheet, fmt.Sprintf("G%v", rowCount), group)
	file.SetCellValue(sheet, fmt.Sprintf("H%v", rowCount), referral.Status)
	file.SetCellValue(sheet, fmt.Sprintf("I%v", rowCount), commission)
	file.SetCellValue(sheet, fmt.Sprintf("J%v", rowCount), affiliate)
	return file
}

func writeWorkbook(c *gin.Context, file *excelize.File, name string) {
	filename := fmt.Sprintf("%s-%s.xlsx", name, time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := file.Write(c.Writer); err != nil {
		Logging.Logger.Error("Failed to write workbook", zap.String("file", filename), zap.Error(err))
	}
}

// ExportAffiliateReferrals streams the authenticated affiliate's referrals.
func ExportAffiliateReferrals(c *gin.Context) {
	affiliate, ok := currentAffiliate(c)
	if !ok {
		return
	}

	referrals, err := Models.ListReferrals(Models.DB, &affiliate.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	writeWorkbook(c, newReferralWorkbook(referrals), "referrals")
}

// ExportReferrals streams every referral created in the optional date range.
func ExportReferrals(c *gin.Context) {
	var input struct {
		DateFrom string `json:"date_from"`
		DateTo   string `json:"date_to"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	start, end, err := parseDateRange(input.DateFrom, input.DateTo)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	query := Models.DB.Preload("Treatment.Group").Preload("Affiliate.User").Order("created_at DESC")
	if !start.IsZero() {
		query = query.Where("created_at >= ?", start)
	}
	if !end.IsZero() {
		query = query.Where("created_at <= ?", end)
	}

	var referrals []Models.Referral
	if err := query.Find(&referrals).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	writeWorkbook(c, newReferralWorkbook(referrals), "all-referrals")
}
