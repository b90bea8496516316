package Models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils/TestUtil"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils/Token"
)

func TestLoginCheckRequiresVerifiedEmail(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	Token.Setup("test-secret", 1)

	user := &Models.User{Username: "new", Email: "New@Example.com", Password: "pw123456"}
	if _, err := user.SaveUser(db); err != nil {
		t.Fatal(err)
	}
	if user.Role != Models.RoleAffiliate {
		t.Errorf("default role = %s", user.Role)
	}

	if _, _, err := Models.LoginCheck(db, "new@example.com", "pw123456"); !errors.Is(err, Models.ErrEmailNotVerified) {
		t.Fatalf("got %v, want ErrEmailNotVerified", err)
	}
	if _, _, err := Models.LoginCheck(db, "new@example.com", "wrong"); !errors.Is(err, Models.ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}

	if _, err := Models.EnsureAffiliate(db, user.ID); err != nil {
		t.Fatal(err)
	}
	token, err := user.IssueVerificationToken(db, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	verified, err := Models.VerifyEmail(db, token)
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if verified.ID != user.ID {
		t.Errorf("verified wrong user")
	}

	var affiliate Models.Affiliate
	db.Where("user_id = ?", user.ID).First(&affiliate)
	if !affiliate.Approved {
		t.Errorf("affiliate should be approved after verification")
	}

	uid, jwt, err := Models.LoginCheck(db, "NEW@example.com", "pw123456")
	if err != nil || uid != user.ID || jwt == "" {
		t.Fatalf("login failed: uid=%d err=%v", uid, err)
	}

	if _, err := Models.VerifyEmail(db, token); !errors.Is(err, Models.ErrTokenExpired) {
		t.Errorf("token reuse: got %v", err)
	}
}

func TestExpiredVerificationToken(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	user := &Models.User{Username: "late", Email: "late@example.com", Password: "pw"}
	if _, err := user.SaveUser(db); err != nil {
		t.Fatal(err)
	}
	token, err := user.IssueVerificationToken(db, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Models.VerifyEmail(db, token); !errors.Is(err, Models.ErrTokenExpired) {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}

	cleared, err := Models.ClearExpiredVerificationTokens(db, time.Now())
	if err != nil || cleared != 1 {
		t.Fatalf("cleared=%d err=%v", cleared, err)
	}
}

func TestAffiliateSlugsAreUnique(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		affiliate := TestUtil.CreateAffiliate(t, db, "user"+string(rune('a'+i)))
		if len(affiliate.Slug) != Models.SlugLength {
			t.Errorf("slug %q has length %d", affiliate.Slug, len(affiliate.Slug))
		}
		if seen[affiliate.Slug] {
			t.Fatalf("duplicate slug %q", affiliate.Slug)
		}
		seen[affiliate.Slug] = true
	}
}

func TestAPIKeyLookup(t *testing.T) {
	db := TestUtil.NewTestDB(t)
	affiliate := TestUtil.CreateAffiliate(t, db, "keyholder")

	key, err := Models.GenerateAPIKey(db, affiliate.UserID, "integration")
	if err != nil {
		t.Fatal(err)
	}
	found, err := Models.FindActiveAPIKey(db, key.Key)
	if err != nil {
		t.Fatalf("FindActiveAPIKey: %v", err)
	}
	if found.User == nil || found.User.Affiliate == nil || found.User.Affiliate.ID != affiliate.ID {
		t.Errorf("API key not resolved to affiliate: %+v", found.User)
	}

	db.Model(key).Update("is_active", false)
	if _, err := Models.FindActiveAPIKey(db, key.Key); err == nil {
		t.Errorf("revoked key still resolves")
	}
}
