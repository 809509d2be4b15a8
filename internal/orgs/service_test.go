package orgs

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/groupmkl/synergize-api/internal/auth"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Organization{}, &Membership{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:      db,
		OrgID:         "groupmkl",
		OrgName:       "Synergize CRM",
		AllowedDomain: "@groupmkl.com",
		OwnerEmail:    "info@groupmkl.com",
		Clock: func() time.Time {
			return time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func TestEnsureMembershipCreatesOrgAndMember(t *testing.T) {
	service, db := newTestService(t)

	result, err := service.EnsureMembership(context.Background(), auth.Identity{
		UserID: "user-1",
		Email:  "alex@groupmkl.com",
	})
	if err != nil {
		t.Fatalf("ensure membership failed: %v", err)
	}
	if !result.Created {
		t.Fatal("expected membership to be created")
	}
	if result.Role != RoleMember {
		t.Fatalf("expected member role, got %q", result.Role)
	}

	var org Organization
	if err := db.Where("id = ?", "groupmkl").First(&org).Error; err != nil {
		t.Fatalf("organization not persisted: %v", err)
	}
	if org.OwnerEmail != "info@groupmkl.com" {
		t.Fatalf("unexpected owner email: %q", org.OwnerEmail)
	}
}

func TestEnsureMembershipAssignsOwnerRoleToAdminEmail(t *testing.T) {
	service, _ := newTestService(t)

	result, err := service.EnsureMembership(context.Background(), auth.Identity{
		UserID: "admin-1",
		Email:  "info@groupmkl.com",
	})
	if err != nil {
		t.Fatalf("ensure membership failed: %v", err)
	}
	if result.Role != RoleOwner {
		t.Fatalf("expected owner role, got %q", result.Role)
	}
}

func TestEnsureMembershipIsIdempotent(t *testing.T) {
	service, db := newTestService(t)
	identity := auth.Identity{UserID: "user-1", Email: "alex@groupmkl.com"}

	if _, err := service.EnsureMembership(context.Background(), identity); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := service.EnsureMembership(context.Background(), identity)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if second.Created {
		t.Fatal("expected second call to report existing membership")
	}
	if second.Message != "Membership already exists." {
		t.Fatalf("unexpected message: %q", second.Message)
	}

	var count int64
	if err := db.Model(&Membership{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one membership row, got %d", count)
	}
}

func TestEnsureMembershipRejectsForeignDomain(t *testing.T) {
	service, db := newTestService(t)

	_, err := service.EnsureMembership(context.Background(), auth.Identity{
		UserID: "user-2",
		Email:  "mallory@elsewhere.com",
	})
	if !errors.Is(err, ErrInvalidDomain) {
		t.Fatalf("expected ErrInvalidDomain, got %v", err)
	}

	var orgCount, memberCount int64
	if err := db.Model(&Organization{}).Count(&orgCount).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if err := db.Model(&Membership{}).Count(&memberCount).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if orgCount != 0 || memberCount != 0 {
		t.Fatalf("expected no rows for rejected caller, got org=%d member=%d", orgCount, memberCount)
	}
}

func TestRequireMembership(t *testing.T) {
	service, _ := newTestService(t)
	identity := auth.Identity{UserID: "user-1", Email: "alex@groupmkl.com"}

	if _, err := service.EnsureMembership(context.Background(), identity); err != nil {
		t.Fatalf("ensure membership failed: %v", err)
	}

	if err := service.RequireMembership(context.Background(), "groupmkl", "user-1"); err != nil {
		t.Fatalf("expected member to pass, got %v", err)
	}
	if err := service.RequireMembership(context.Background(), "groupmkl", "stranger"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}
