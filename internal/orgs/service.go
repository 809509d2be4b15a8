package orgs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/groupmkl/synergize-api/internal/auth"
)

var (
	// ErrInvalidDomain indicates the caller's email is outside the allowed domain.
	// The client interprets this as a forced sign-out.
	ErrInvalidDomain = errors.New("orgs: email domain not allowed")
	// ErrNotMember indicates the caller has no membership in the requested organization.
	ErrNotMember = errors.New("orgs: caller is not a member of the organization")

	errMissingDatabase = errors.New("orgs: database connection required")
	errMissingOrgID    = errors.New("orgs: default organization id required")
	errMissingIdentity = errors.New("orgs: caller identity required")
)

// ServiceConfig describes the dependencies for the bootstrap service.
type ServiceConfig struct {
	Database      *gorm.DB
	OrgID         string
	OrgName       string
	AllowedDomain string
	OwnerEmail    string
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Service provisions organizations and memberships for authenticated users.
type Service struct {
	db            *gorm.DB
	orgID         string
	orgName       string
	allowedDomain string
	ownerEmail    string
	now           func() time.Time
	logger        *zap.Logger
}

// BootstrapResult reports the outcome of an EnsureMembership call.
type BootstrapResult struct {
	Created bool
	Role    string
	Message string
}

// NewService constructs the bootstrap service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if strings.TrimSpace(cfg.OrgID) == "" {
		return nil, errMissingOrgID
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:            cfg.Database,
		orgID:         strings.TrimSpace(cfg.OrgID),
		orgName:       cfg.OrgName,
		allowedDomain: strings.ToLower(strings.TrimSpace(cfg.AllowedDomain)),
		ownerEmail:    strings.ToLower(strings.TrimSpace(cfg.OwnerEmail)),
		now:           clock,
		logger:        logger,
	}, nil
}

// EnsureMembership provisions the organization and the caller's membership in
// one transaction. Repeated calls are idempotent and report "already exists"
// without mutation.
func (s *Service) EnsureMembership(ctx context.Context, identity auth.Identity) (BootstrapResult, error) {
	if identity.UserID == "" || identity.Email == "" {
		return BootstrapResult{}, errMissingIdentity
	}

	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if s.allowedDomain != "" && !strings.HasSuffix(email, s.allowedDomain) {
		return BootstrapResult{}, fmt.Errorf("%w: %s", ErrInvalidDomain, email)
	}

	var result BootstrapResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org Organization
		err := tx.Where("id = ?", s.orgID).First(&org).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			org = Organization{
				ID:         s.orgID,
				Name:       s.orgName,
				OwnerEmail: s.ownerEmail,
				CreatedAt:  s.now(),
			}
			if err := tx.Create(&org).Error; err != nil {
				return err
			}
			s.logger.Info("organization created", zap.String("org_id", s.orgID))
		} else if err != nil {
			return err
		}

		var membership Membership
		err = tx.Where("org_id = ? AND user_id = ?", s.orgID, identity.UserID).First(&membership).Error
		if err == nil {
			result = BootstrapResult{Created: false, Role: membership.Role, Message: "Membership already exists."}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		role := RoleMember
		if email == s.ownerEmail {
			role = RoleOwner
		}
		membership = Membership{
			OrgID:     s.orgID,
			UserID:    identity.UserID,
			Email:     email,
			Role:      role,
			CreatedAt: s.now(),
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}

		result = BootstrapResult{
			Created: true,
			Role:    role,
			Message: fmt.Sprintf("Membership created with role: %s.", role),
		}
		return nil
	})
	if err != nil {
		return BootstrapResult{}, err
	}

	if result.Created {
		s.logger.Info("membership created",
			zap.String("org_id", s.orgID),
			zap.String("user_id", identity.UserID),
			zap.String("role", result.Role))
	}
	return result, nil
}

// RequireMembership verifies the user belongs to the organization.
func (s *Service) RequireMembership(ctx context.Context, orgID, userID string) error {
	var membership Membership
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotMember
	}
	return err
}
