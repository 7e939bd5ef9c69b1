package models

import (
	"time"

	"jobook/internal/constants"
	"jobook/pkg/utils"

	"gorm.io/datatypes"
)

// User 账号表，候选人、公司用户与管理员共用
type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_users_email_unique" json:"email"`
	PasswordHash string    `gorm:"type:varchar(100);not null" json:"-"`
	FullName     string    `gorm:"type:varchar(255)" json:"full_name"`
	Role         string    `gorm:"type:varchar(20);not null;index:idx_users_role" json:"role"`
	Bio          string    `gorm:"type:text" json:"bio"`
	Phone        string    `gorm:"type:varchar(50)" json:"phone"`
	AvatarKey    string    `gorm:"type:varchar(512)" json:"avatar_key,omitempty"`
	CreatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Company 公司资料，每个公司用户最多一条
type Company struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID     uint64     `gorm:"not null;uniqueIndex:idx_companies_owner_unique" json:"owner_id"`
	Name        string     `gorm:"type:varchar(255);not null;index:idx_companies_name" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Website     string     `gorm:"type:varchar(512)" json:"website"`
	Address     string     `gorm:"type:varchar(512)" json:"address"`
	LogoKey     string     `gorm:"type:varchar(512)" json:"logo_key,omitempty"`
	Status      string     `gorm:"type:varchar(20);default:'PENDING';index:idx_companies_status" json:"status"`
	ReviewNote  string     `gorm:"type:text" json:"review_note,omitempty"`
	ReviewedAt  *time.Time `gorm:"type:datetime(6)" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`

	Owner *User `gorm:"foreignKey:OwnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (Company) TableName() string {
	return "companies"
}

// CV 候选人上传的简历及其解析结果
type CV struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           uint64    `gorm:"not null;index:idx_cvs_user_id" json:"user_id"`
	Name             string    `gorm:"type:varchar(255);not null" json:"name"`
	OriginalFilename string    `gorm:"type:varchar(255)" json:"original_filename"`
	FileKey          string    `gorm:"type:varchar(1024);not null" json:"-"`
	TextKey          string    `gorm:"type:varchar(1024)" json:"-"`
	TextMD5          string    `gorm:"type:char(32);index:idx_cvs_text_md5" json:"-"`
	ContentText      string    `gorm:"type:mediumtext" json:"-"`
	Summary          string    `gorm:"type:text" json:"summary"`
	Status           string    `gorm:"type:varchar(20);default:'PENDING';index:idx_cvs_status" json:"status"`
	IsDefault        bool      `gorm:"default:false" json:"is_default"`
	ErrorMessage     string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt        time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (CV) TableName() string {
	return "cvs"
}

// Post 帖子：候选人求职(find_job)或公司招聘(find_candidate)
type Post struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorID        uint64         `gorm:"not null;index:idx_posts_author_id" json:"author_id"`
	CompanyID       *uint64        `gorm:"index:idx_posts_company_id" json:"company_id,omitempty"`
	PostType        string         `gorm:"type:varchar(20);not null;index:idx_posts_type_status,priority:1" json:"post_type"`
	Title           string         `gorm:"type:varchar(255);not null" json:"title"`
	Description     string         `gorm:"type:mediumtext" json:"description"`
	DescriptionText string         `gorm:"type:mediumtext" json:"description_text"`
	Location        string         `gorm:"type:varchar(255)" json:"location"`
	Salary          string         `gorm:"type:varchar(100)" json:"salary"`
	Tags            datatypes.JSON `gorm:"type:json" json:"tags"`
	Status          string         `gorm:"type:varchar(20);default:'OPEN';index:idx_posts_type_status,priority:2" json:"status"`
	StartAt         *time.Time     `gorm:"type:datetime(6)" json:"start_at,omitempty"`
	EndAt           *time.Time     `gorm:"type:datetime(6);index:idx_posts_end_at" json:"end_at,omitempty"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_posts_created_at" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`

	Author  *User    `gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"author,omitempty"`
	Company *Company `gorm:"foreignKey:CompanyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"company,omitempty"`
}

func (Post) TableName() string {
	return "posts"
}

// IsExpired 状态为 EXPIRED 或结束时间早于 now
func (p *Post) IsExpired(now time.Time) bool {
	if p.Status == constants.PostExpired {
		return true
	}
	return p.EndAt != nil && p.EndAt.Before(now)
}

// TagList 解析 tags JSON 数组
func (p *Post) TagList() []string {
	return utils.ConvertJSONToArray(p.Tags)
}

// Application 候选人对招聘帖的投递
type Application struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID      uint64    `gorm:"not null;uniqueIndex:idx_applications_post_applicant,priority:1" json:"post_id"`
	ApplicantID uint64    `gorm:"not null;uniqueIndex:idx_applications_post_applicant,priority:2;index:idx_applications_applicant" json:"applicant_id"`
	CVID        uint64    `gorm:"column:cv_id;not null" json:"cv_id"`
	Message     string    `gorm:"type:text" json:"message"`
	Status      string    `gorm:"type:varchar(20);default:'PENDING';index:idx_applications_status" json:"status"`
	CreatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`

	Post      *Post `gorm:"foreignKey:PostID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"post,omitempty"`
	Applicant *User `gorm:"foreignKey:ApplicantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"applicant,omitempty"`
	CV        *CV   `gorm:"foreignKey:CVID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"cv,omitempty"`
}

func (Application) TableName() string {
	return "applications"
}

// Follow 关注关系，target_type 为 USER 或 COMPANY
type Follow struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FollowerID uint64    `gorm:"not null;uniqueIndex:idx_follows_unique,priority:1" json:"follower_id"`
	TargetType string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_follows_unique,priority:2;index:idx_follows_target,priority:1" json:"target_type"`
	TargetID   uint64    `gorm:"not null;uniqueIndex:idx_follows_unique,priority:3;index:idx_follows_target,priority:2" json:"target_id"`
	CreatedAt  time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
}

func (Follow) TableName() string {
	return "follows"
}
