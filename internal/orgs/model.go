package orgs

import "time"

// Membership roles. The first allowed user whose email matches the configured
// owner email becomes the owner, everyone else joins as a member.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Organization is the tenant boundary grouping users, integrations, and synced records.
type Organization struct {
	ID         string    `gorm:"column:id;primaryKey;size:190;not null"`
	Name       string    `gorm:"column:name;size:320;not null"`
	OwnerEmail string    `gorm:"column:owner_email;size:320;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Organization) TableName() string {
	return "organizations"
}

// Membership ties a user to an organization with a role.
type Membership struct {
	OrgID     string    `gorm:"column:org_id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	Email     string    `gorm:"column:email;size:320;not null"`
	Role      string    `gorm:"column:role;size:32;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Membership) TableName() string {
	return "org_members"
}
