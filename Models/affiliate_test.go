package Models_test

import (
	"errors"
	"testing"

	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils/TestUtil"

	"gorm.io/gorm"
)

func TestRejectAffiliate(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	affiliate := TestUtil.CreateAffiliate(t, db, "bob")

	if err := Models.RejectAffiliate(db, affiliate.ID); err != nil {
		t.Fatal(err)
	}
	if err := Models.RejectAffiliate(db, affiliate.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("second reject err = %v", err)
	}
}

func TestPendingAffiliates(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	TestUtil.CreateAffiliate(t, db, "approved")
	user := TestUtil.CreateUser(t, db, "waiting", Models.RoleAffiliate)
	if _, err := Models.EnsureAffiliate(db, user.ID); err != nil {
		t.Fatal(err)
	}

	pending, err := Models.PendingAffiliates(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].UserID != user.ID || pending[0].User == nil {
		t.Errorf("pending = %+v", pending)
	}
}

func TestAssignTreatment(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	affiliate := TestUtil.CreateAffiliate(t, db, "carol")
	first := TestUtil.CreateTreatment(t, db, "Consultation", nil)
	second := TestUtil.CreateTreatment(t, db, "Implant", TestUtil.CreateGroup(t, db, "Dental", "300"))
	referral := TestUtil.CreateReferral(t, db, affiliate, first, "p@example.com")

	if err := Models.AssignTreatment(db, referral, second); err != nil {
		t.Fatal(err)
	}
	stored, err := Models.LoadReferral(db, referral.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.TreatmentID != second.ID || stored.Treatment.Group == nil {
		t.Errorf("stored treatment = %d", stored.TreatmentID)
	}
}

func TestSeedCatalogueIsIdempotent(t *testing.T) {
	db := TestUtil.NewTestDB(t)

	created, err := Models.SeedCatalogue(db)
	if err != nil {
		t.Fatal(err)
	}
	if created != 4 {
		t.Errorf("created = %d, want 4", created)
	}
	if created, err = Models.SeedCatalogue(db); err != nil || created != 0 {
		t.Errorf("second seed created %d, err %v", created, err)
	}

	var treatments int64
	db.Model(&Models.Treatment{}).Count(&treatments)
	if treatments != 16 {
		t.Errorf("treatments = %d, want 16", treatments)
	}
}
