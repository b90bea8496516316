package Importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils/TestUtil"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/shopspring/decimal"
)

func TestImportGroupsCSV(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	TestUtil.CreateGroup(t, db, "Dental Treatments", "100")

	csv := "name,description,commission_amount\n" +
		"Hair Transplant,Hair restoration,500\n" +
		"dental treatments,Dental procedures,300\n" +
		",,\n" +
		"Eye Surgery,,-5\n" +
		"Plastic Surgery,,abc\n"

	result, err := ImportFile(db, KindGroups, "groups.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if result.Created != 1 || result.Updated != 1 || result.Skipped != 1 {
		t.Errorf("created=%d updated=%d skipped=%d", result.Created, result.Updated, result.Skipped)
	}
	if len(result.Errors) != 2 || result.Errors[0].Line != 5 || result.Errors[1].Line != 6 {
		t.Errorf("errors = %+v", result.Errors)
	}

	var dental Models.TreatmentGroup
	db.Where("name = ?", "Dental Treatments").First(&dental)
	if !dental.CommissionAmount.Equal(decimal.NewFromInt(300)) || dental.Description != "Dental procedures" {
		t.Errorf("dental group not updated: %+v", dental)
	}
}

func TestImportGroupRecalculatesCompletedReferrals(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	affiliate := TestUtil.CreateAffiliate(t, db, "alice")
	group := TestUtil.CreateGroup(t, db, "Dental", "100")
	treatment := TestUtil.CreateTreatment(t, db, "Implant", group)
	referral := TestUtil.CreateReferral(t, db, affiliate, treatment, "p@example.com")
	if _, err := Models.TransitionReferral(db, referral, Models.StatusCompleted, nil, Models.SourceStatusUpdate); err != nil {
		t.Fatal(err)
	}

	rows := [][]string{{"name", "commission_amount"}, {"Dental", "150"}}
	if _, err := Import(db, KindGroups, rows); err != nil {
		t.Fatal(err)
	}

	var stored Models.Affiliate
	db.First(&stored, affiliate.ID)
	if !stored.TotalEarnings.Equal(decimal.NewFromInt(150)) {
		t.Errorf("earnings = %s, want 150", stored.TotalEarnings)
	}
}

func TestImportTreatmentsAndMappings(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	hair := TestUtil.CreateGroup(t, db, "Hair", "500")
	TestUtil.CreateGroup(t, db, "Eyes", "400")

	treatments := [][]string{
		{"Name", "Description", "Group_Name", "Active"},
		{"FUE", "Follicular unit extraction", "Hair", "yes"},
		{"LASIK", "", "eyes", "0"},
		{"Mystery", "", "Unknown", ""},
		{"Broken", "", "", "maybe"},
	}
	result, err := Import(db, KindTreatments, treatments)
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 2 || len(result.Errors) != 2 {
		t.Errorf("created=%d errors=%+v", result.Created, result.Errors)
	}

	var fue Models.Treatment
	db.Where("name = ?", "FUE").First(&fue)
	if !fue.Active || fue.GroupID == nil || *fue.GroupID != hair.ID {
		t.Errorf("FUE = %+v", fue)
	}
	var lasik Models.Treatment
	db.Where("name = ?", "LASIK").First(&lasik)
	if lasik.Active {
		t.Errorf("LASIK should be inactive")
	}

	mappings := [][]string{
		{"external_name", "group_name"},
		{"Hair Transplant FUE", "Hair"},
		{"hair transplant fue", "Hair"},
		{"Laser Eye", "Eyes"},
		{"Nothing", "Missing"},
	}
	result, err = Import(db, KindMappings, mappings)
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 2 || result.Skipped != 1 || len(result.Errors) != 1 {
		t.Errorf("created=%d skipped=%d errors=%+v", result.Created, result.Skipped, result.Errors)
	}

	mapping, err := Models.FindMappingByExternalName(db, "HAIR TRANSPLANT FUE")
	if err != nil || mapping.TreatmentGroupID != hair.ID {
		t.Errorf("mapping lookup: %+v, %v", mapping, err)
	}
}

func TestImportXLSX(t *testing.T) {
	db := TestUtil.NewTestDB(t)

	file := excelize.NewFile()
	file.SetCellValue("Sheet1", "A1", "name")
	file.SetCellValue("Sheet1", "B1", "description")
	file.SetCellValue("Sheet1", "C1", "commission_amount")
	file.SetCellValue("Sheet1", "A2", "Plastic Surgery")
	file.SetCellValue("Sheet1", "B2", "Cosmetic procedures")
	file.SetCellValue("Sheet1", "C2", "1000")

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		t.Fatal(err)
	}

	result, err := ImportFile(db, KindGroups, "groups.XLSX", &buf)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("created = %d, errors = %+v", result.Created, result.Errors)
	}

	var group Models.TreatmentGroup
	if err := db.Where("name = ?", "Plastic Surgery").First(&group).Error; err != nil {
		t.Fatal(err)
	}
	if !group.CommissionAmount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("commission = %s", group.CommissionAmount)
	}
}

func TestImportRejectsBadInput(t *testing.T) {
	db := TestUtil.NewTestDB(t)

	if _, err := Import(db, "patients", [][]string{{"name"}}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("got %v, want ErrUnknownKind", err)
	}
	if _, err := Import(db, KindGroups, [][]string{{"name", "description"}}); err == nil {
		t.Errorf("missing commission_amount column accepted")
	}
	if _, err := ImportFile(db, KindGroups, "groups.json", strings.NewReader("{}")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
	if _, err := ImportFile(db, KindGroups, "groups.csv", strings.NewReader("")); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("got %v, want ErrEmptyFile", err)
	}
}
