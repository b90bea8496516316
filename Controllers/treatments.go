package Controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TreatmentGroupInput struct {
	Name             string           `json:"name" binding:"required"`
	Description      string           `json:"description"`
	CommissionAmount *decimal.Decimal `json:"commission_amount"`
}

func (input TreatmentGroupInput) amount() decimal.Decimal {
	if input.CommissionAmount == nil {
		return decimal.Zero
	}
	return *input.CommissionAmount
}

func recalculationResponse(message string, updated int, errs []error) gin.H {
	response := gin.H{"message": message, "recalculated": updated}
	if len(errs) > 0 {
		failures := make([]string, 0, len(errs))
		for _, err := range errs {
			failures = append(failures, err.Error())
		}
		response["warnings"] = failures
	}
	return response
}

func FetchTreatmentGroups(c *gin.Context) {
	var groups []Models.TreatmentGroup
	if err := Models.DB.Preload("Treatments").Order("name").Find(&groups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, groups)
}

func AddTreatmentGroup(c *gin.Context) {
	var input TreatmentGroupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group := Models.TreatmentGroup{
		Name:             strings.TrimSpace(input.Name),
		Description:      input.Description,
		CommissionAmount: input.amount(),
	}
	if err := group.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := Models.DB.Create(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error adding treatment group."})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Treatment group added successfully.", "group": group})
}

// EditTreatmentGroup updates the group and re-runs the commission engine for
// every completed referral under it.
func EditTreatmentGroup(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input TreatmentGroupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var group Models.TreatmentGroup
	if err := Models.DB.First(&group, id).Error; err != nil {
		notFoundOr(c, err, "Treatment group")
		return
	}
	group.Name = strings.TrimSpace(input.Name)
	group.Description = input.Description
	group.CommissionAmount = input.amount()
	if err := group.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var updated int
	var errs []error
	err := Models.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&group).Error; err != nil {
			return err
		}
		updated, errs = Models.RecalculateGroupCommissions(tx, group.ID)
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating treatment group."})
		return
	}
	if len(errs) > 0 {
		Logging.Logger.Warn("Some commissions could not be recalculated", zap.Uint("group_id", group.ID), zap.Errors("errors", errs))
	}
	c.JSON(http.StatusOK, recalculationResponse("Treatment group updated successfully.", updated, errs))
}

// DeleteTreatmentGroup removes the group; its treatments become ungrouped.
func DeleteTreatmentGroup(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	err := Models.DB.Transaction(func(tx *gorm.DB) error {
		var group Models.TreatmentGroup
		if err := tx.First(&group, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&Models.Treatment{}).Where("group_id = ?", id).Update("group_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("treatment_group_id = ?", id).Delete(&Models.TreatmentNameMapping{}).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})
	if err != nil {
		notFoundOr(c, err, "Treatment group")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Treatment group deleted successfully."})
}

type TreatmentInput struct {
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	GroupID         *uint  `json:"group_id"`
	AverageDuration *int   `json:"average_duration"`
	Active          *bool  `json:"active"`
}

func validGroup(db *gorm.DB, groupID *uint) error {
	if groupID == nil {
		return nil
	}
	var count int64
	if err := db.Model(&Models.TreatmentGroup{}).Where("id = ?", *groupID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errors.New("Treatment group not found")
	}
	return nil
}

func FetchTreatments(c *gin.Context) {
	var treatments []Models.Treatment
	if err := Models.DB.Preload("Group").Order("name").Find(&treatments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, treatments)
}

func AddTreatment(c *gin.Context) {
	var input TreatmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validGroup(Models.DB, input.GroupID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	treatment := Models.Treatment{
		Name:            strings.TrimSpace(input.Name),
		Description:     input.Description,
		GroupID:         input.GroupID,
		AverageDuration: input.AverageDuration,
		Active:          input.Active == nil || *input.Active,
	}
	if err := Models.DB.Create(&treatment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error adding treatment."})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Treatment added successfully.", "treatment": treatment})
}

// EditTreatment updates the treatment and, when its group changed,
// recalculates the commissions of its completed referrals.
func EditTreatment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input TreatmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validGroup(Models.DB, input.GroupID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var treatment Models.Treatment
	if err := Models.DB.First(&treatment, id).Error; err != nil {
		notFoundOr(c, err, "Treatment")
		return
	}
	groupChanged := !sameGroup(treatment.GroupID, input.GroupID)

	treatment.Name = strings.TrimSpace(input.Name)
	treatment.Description = input.Description
	treatment.GroupID = input.GroupID
	treatment.AverageDuration = input.AverageDuration
	if input.Active != nil {
		treatment.Active = *input.Active
	}

	var updated int
	var errs []error
	err := Models.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Group").Save(&treatment).Error; err != nil {
			return err
		}
		if groupChanged && treatment.GroupID != nil {
			updated, errs = Models.RecalculateTreatmentCommissions(tx, treatment.ID)
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating treatment."})
		return
	}
	c.JSON(http.StatusOK, recalculationResponse("Treatment updated successfully.", updated, errs))
}

func sameGroup(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func ToggleTreatment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var treatment Models.Treatment
	if err := Models.DB.First(&treatment, id).Error; err != nil {
		notFoundOr(c, err, "Treatment")
		return
	}
	active := !treatment.Active
	if err := Models.DB.Model(&treatment).Update("active", active).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	c.JSON(http.StatusOK, gin.H{"message": "Treatment " + state + " successfully.", "active": active})
}

func FetchTreatmentMappings(c *gin.Context) {
	var mappings []Models.TreatmentNameMapping
	if err := Models.DB.Preload("TreatmentGroup").Order("external_name").Find(&mappings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, mappings)
}

func AddTreatmentMapping(c *gin.Context) {
	var input struct {
		ExternalName     string `json:"external_name" binding:"required"`
		TreatmentGroupID uint   `json:"treatment_group_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	groupID := input.TreatmentGroupID
	if err := validGroup(Models.DB, &groupID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(input.ExternalName)
	if _, err := Models.FindMappingByExternalName(Models.DB, name); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Mapping already exists"})
		return
	}

	mapping := Models.TreatmentNameMapping{ExternalName: name, TreatmentGroupID: groupID}
	if err := Models.DB.Create(&mapping).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Mapping added successfully.", "mapping": mapping})
}

func DeleteTreatmentMapping(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result := Models.DB.Delete(&Models.TreatmentNameMapping{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Mapping not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Mapping deleted successfully."})
}
