package Importer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	KindGroups     = "groups"
	KindTreatments = "treatments"
	KindMappings   = "mappings"
)

var ErrUnknownKind = errors.New("unknown import kind, expected groups, treatments or mappings")

var columns = map[string][]string{
	KindGroups:     {"name", "description", "commission_amount"},
	KindTreatments: {"name", "description", "group_name", "active"},
	KindMappings:   {"external_name", "group_name"},
}

var required = map[string][]string{
	KindGroups:     {"name", "commission_amount"},
	KindTreatments: {"name"},
	KindMappings:   {"external_name", "group_name"},
}

type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type Result struct {
	Kind    string     `json:"kind"`
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors"`
}

func (r *Result) fail(line int, format string, args ...interface{}) {
	r.Errors = append(r.Errors, RowError{Line: line, Message: fmt.Sprintf(format, args...)})
}

// row gives named access to one record.
type row struct {
	line   int
	fields []string
	index  map[string]int
}

func (r row) get(name string) string {
	i, ok := r.index[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r row) empty() bool {
	for _, f := range r.fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func headerIndex(kind string, header []string) (map[string]int, error) {
	index := map[string]int{}
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required[kind] {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing required column %q (expected columns: %s)", name, strings.Join(columns[kind], ","))
		}
	}
	return index, nil
}

func ImportFile(db *gorm.DB, kind, filename string, r io.Reader) (*Result, error) {
	rows, err := ReadRows(filename, r)
	if err != nil {
		return nil, err
	}
	return Import(db, kind, rows)
}

// Import upserts rows (header first) of the given kind. Row level problems are
// reported on the result; only a malformed header or unknown kind fails the call.
func Import(db *gorm.DB, kind string, rows [][]string) (*Result, error) {
	handle, ok := map[string]func(*gorm.DB, row, *Result) error{
		KindGroups:     importGroup,
		KindTreatments: importTreatment,
		KindMappings:   importMapping,
	}[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	index, err := headerIndex(kind, rows[0])
	if err != nil {
		return nil, err
	}

	result := &Result{Kind: kind, Errors: []RowError{}}
	for i, fields := range rows[1:] {
		r := row{line: i + 2, fields: fields, index: index}
		if r.empty() {
			result.Skipped++
			continue
		}
		if err := handle(db, r, result); err != nil {
			Logging.Logger.Error("Import row failed", zap.String("kind", kind), zap.Int("line", r.line), zap.Error(err))
			result.fail(r.line, "database error: %v", err)
		}
	}

	Logging.Logger.Info("Import finished",
		zap.String("kind", kind),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

func findGroupByName(db *gorm.DB, name string) (*Models.TreatmentGroup, error) {
	var group Models.TreatmentGroup
	err := db.Where("LOWER(name) = LOWER(?)", name).First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func importGroup(db *gorm.DB, r row, result *Result) error {
	name := r.get("name")
	if name == "" {
		result.fail(r.line, "name is required")
		return nil
	}
	amount, err := decimal.NewFromString(r.get("commission_amount"))
	if err != nil {
		result.fail(r.line, "invalid commission_amount %q", r.get("commission_amount"))
		return nil
	}
	if amount.IsNegative() {
		result.fail(r.line, "%v", Models.ErrNegativeCommission)
		return nil
	}

	existing, err := findGroupByName(db, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		group := Models.TreatmentGroup{Name: name, Description: r.get("description"), CommissionAmount: amount}
		if err := db.Create(&group).Error; err != nil {
			return err
		}
		result.Created++
		return nil
	}
	if err != nil {
		return err
	}

	changed := !existing.CommissionAmount.Equal(amount)
	if err := db.Model(existing).Updates(map[string]interface{}{
		"description":       r.get("description"),
		"commission_amount": amount,
	}).Error; err != nil {
		return err
	}
	result.Updated++

	if changed {
		if _, errs := Models.RecalculateGroupCommissions(db, existing.ID); len(errs) > 0 {
			result.fail(r.line, "group updated but %d commission recalculations failed", len(errs))
		}
	}
	return nil
}

func parseActive(value string) (bool, bool) {
	switch strings.ToLower(value) {
	case "", "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	}
	return false, false
}

func importTreatment(db *gorm.DB, r row, result *Result) error {
	name := r.get("name")
	if name == "" {
		result.fail(r.line, "name is required")
		return nil
	}
	active, ok := parseActive(r.get("active"))
	if !ok {
		result.fail(r.line, "invalid active value %q", r.get("active"))
		return nil
	}

	var groupID *uint
	if groupName := r.get("group_name"); groupName != "" {
		group, err := findGroupByName(db, groupName)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.fail(r.line, "unknown treatment group %q", groupName)
			return nil
		}
		if err != nil {
			return err
		}
		groupID = &group.ID
	}

	var existing Models.Treatment
	err := db.Where("LOWER(name) = LOWER(?)", name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		treatment := Models.Treatment{Name: name, Description: r.get("description"), Active: active, GroupID: groupID}
		if err := db.Create(&treatment).Error; err != nil {
			return err
		}
		result.Created++
		return nil
	}
	if err != nil {
		return err
	}

	groupChanged := (existing.GroupID == nil) != (groupID == nil) ||
		(existing.GroupID != nil && groupID != nil && *existing.GroupID != *groupID)
	if err := db.Model(&existing).Updates(map[string]interface{}{
		"description": r.get("description"),
		"active":      active,
		"group_id":    groupID,
	}).Error; err != nil {
		return err
	}
	result.Updated++

	if groupChanged {
		if _, errs := Models.RecalculateTreatmentCommissions(db, existing.ID); len(errs) > 0 {
			result.fail(r.line, "treatment updated but %d commission recalculations failed", len(errs))
		}
	}
	return nil
}

func importMapping(db *gorm.DB, r row, result *Result) error {
	externalName := r.get("external_name")
	groupName := r.get("group_name")
	if externalName == "" || groupName == "" {
		result.fail(r.line, "external_name and group_name are required")
		return nil
	}

	group, err := findGroupByName(db, groupName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		result.fail(r.line, "unknown treatment group %q", groupName)
		return nil
	}
	if err != nil {
		return err
	}

	existing, err := Models.FindMappingByExternalName(db, externalName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		mapping := Models.TreatmentNameMapping{ExternalName: externalName, TreatmentGroupID: group.ID}
		if err := db.Create(&mapping).Error; err != nil {
			return err
		}
		result.Created++
		return nil
	}
	if err != nil {
		return err
	}

	if existing.TreatmentGroupID == group.ID {
		result.Skipped++
		return nil
	}
	if err := db.Model(existing).Update("treatment_group_id", group.ID).Error; err != nil {
		return err
	}
	result.Updated++
	return nil
}
