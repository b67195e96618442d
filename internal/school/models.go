package school

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
)

type Tenant struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SchoolName     string    `gorm:"type:varchar(255);not null" json:"school_name"`
	SchoolCode     string    `gorm:"type:varchar(64);uniqueIndex" json:"school_code"`
	PrimaryColor   string    `gorm:"type:varchar(16)" json:"primary_color"`
	SecondaryColor string    `gorm:"type:varchar(16)" json:"secondary_color"`
	ThemeMode      string    `gorm:"type:varchar(16)" json:"theme_mode"`
	LogoURL        string    `gorm:"type:text" json:"logo_url"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Tenant) TableName() string { return "tenants" }

// Profile is the role-tagged record for an authenticated principal. A missing
// row is a normal state.
type Profile struct {
	UserID    string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	TenantID  string    `gorm:"type:varchar(36);index" json:"tenant_id"`
	SchoolID  *string   `gorm:"type:varchar(36);index" json:"school_id,omitempty"`
	Role      Role      `gorm:"type:varchar(16);not null" json:"role"`
	FullName  string    `gorm:"type:varchar(255)" json:"full_name"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (Profile) TableName() string { return "profiles" }

// ProfileSummary is the slice of a profile embedded in teacher rows.
type ProfileSummary struct {
	UserID   string `gorm:"primaryKey" json:"-"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

func (ProfileSummary) TableName() string { return "profiles" }

type Parent struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID  string `gorm:"type:varchar(36);index;not null" json:"user_id"`
	ChildID string `gorm:"type:varchar(36);index" json:"child_id"`
}

func (Parent) TableName() string { return "parents" }

type Student struct {
	ID       string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name     string          `gorm:"type:varchar(255);not null" json:"name"`
	ClassID  string          `gorm:"type:varchar(36);index" json:"class_id"`
	SchoolID string          `gorm:"type:varchar(36);index" json:"school_id"`
	DOB      *datatypes.Date `json:"dob"`
}

func (Student) TableName() string { return "students" }

type Teacher struct {
	ID      string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID  string          `gorm:"type:varchar(36);index;not null" json:"user_id"`
	ClassID string          `gorm:"type:varchar(36);index" json:"class_id"`
	Subject string          `gorm:"type:varchar(128)" json:"subject"`
	Profile *ProfileSummary `gorm:"foreignKey:UserID;references:UserID" json:"profiles,omitempty"`
}

func (Teacher) TableName() string { return "teachers" }

type Class struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Grade    string `gorm:"type:varchar(32);index" json:"grade"`
	Section  string `gorm:"type:varchar(32)" json:"section"`
	SchoolID string `gorm:"type:varchar(36);index" json:"school_id"`
}

func (Class) TableName() string { return "classes" }

// Models lists the tables owned by this package, for migrations.
func Models() []any {
	return []any{&Tenant{}, &Profile{}, &Parent{}, &Student{}, &Teacher{}, &Class{}}
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (t *Tenant) BeforeCreate(*gorm.DB) error { newID(&t.ID); return nil }
func (p *Parent) BeforeCreate(*gorm.DB) error { newID(&p.ID); return nil }
func (s *Student) BeforeCreate(*gorm.DB) error { newID(&s.ID); return nil }
func (t *Teacher) BeforeCreate(*gorm.DB) error { newID(&t.ID); return nil }
func (c *Class) BeforeCreate(*gorm.DB) error { newID(&c.ID); return nil }
