package sprinkle

import (
	"time"

	"sprinkle-migrator/internal/usecase"
)

const accountNamespace = `UserFrosting\Sprinkle\Account\Database\Migrations\v400\`

// Timestamps は作成・更新日時のカラム。
type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

type activity struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement"`
	IPAddress   string `gorm:"column:ip_address;size:45"`
	UserID      uint   `gorm:"column:user_id;not null"`
	Type        string `gorm:"column:type;not null"`
	OccurredAt  *time.Time
	Description string `gorm:"column:description;type:text"`
}

type group struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Slug        string `gorm:"column:slug;not null"`
	Name        string `gorm:"column:name;not null"`
	Description string `gorm:"column:description;type:text"`
	Icon        string `gorm:"column:icon;not null;default:fa fa-user"`
	Timestamps
}

type passwordReset struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement"`
	UserID      uint   `gorm:"column:user_id;not null"`
	Hash        string `gorm:"column:hash;not null"`
	Completed   bool   `gorm:"column:completed;not null;default:false"`
	ExpiresAt   *time.Time
	CompletedAt *time.Time
	Timestamps
}

type permissionRole struct {
	PermissionID uint `gorm:"column:permission_id;primaryKey;autoIncrement:false"`
	RoleID       uint `gorm:"column:role_id;primaryKey;autoIncrement:false"`
	Timestamps
}

type permission struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Slug        string `gorm:"column:slug;not null"`
	Name        string `gorm:"column:name;not null"`
	Conditions  string `gorm:"column:conditions;type:text;not null"`
	Description string `gorm:"column:description;type:text"`
	Timestamps
}

type persistence struct {
	ID              uint   `gorm:"column:id;primaryKey;autoIncrement"`
	UserID          uint   `gorm:"column:user_id;not null"`
	Token           string `gorm:"column:token;size:40;not null"`
	PersistentToken string `gorm:"column:persistent_token;size:40;not null"`
	ExpiresAt       *time.Time
	Timestamps
}

type roleUser struct {
	UserID uint `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	RoleID uint `gorm:"column:role_id;primaryKey;autoIncrement:false"`
	Timestamps
}

type role struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Slug        string `gorm:"column:slug;not null"`
	Name        string `gorm:"column:name;not null"`
	Description string `gorm:"column:description;type:text"`
	Timestamps
}

type user struct {
	ID           uint   `gorm:"column:id;primaryKey;autoIncrement"`
	UserName     string `gorm:"column:user_name;size:50;not null"`
	Email        string `gorm:"column:email;not null"`
	FirstName    string `gorm:"column:first_name;size:20;not null"`
	LastName     string `gorm:"column:last_name;size:30;not null"`
	Locale       string `gorm:"column:locale;size:10;not null;default:en_US"`
	Theme        string `gorm:"column:theme;size:100"`
	GroupID      uint   `gorm:"column:group_id;not null;default:1"`
	FlagVerified bool   `gorm:"column:flag_verified;not null;default:true"`
	FlagEnabled  bool   `gorm:"column:flag_enabled;not null;default:true"`
	Password     string `gorm:"column:password;not null"`
	DeletedAt    *time.Time
	Timestamps
}

type verification struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement"`
	UserID      uint   `gorm:"column:user_id;not null"`
	Hash        string `gorm:"column:hash;not null"`
	Completed   bool   `gorm:"column:completed;not null;default:false"`
	ExpiresAt   *time.Time
	CompletedAt *time.Time
	Timestamps
}

// AccountMigrations は account スプリンクルのマイグレーションをクラス名順で返す。
// 依存先が後に宣言されていても適用時に先へ移動される。
func AccountMigrations() []usecase.Migration {
	const (
		groups      = accountNamespace + "GroupsTable"
		permissions = accountNamespace + "PermissionsTable"
		roles       = accountNamespace + "RolesTable"
		users       = accountNamespace + "UsersTable"
	)

	return []usecase.Migration{
		createTable(accountNamespace+"ActivitiesTable", "activities", &activity{}, users),
		createTable(groups, "groups", &group{}),
		createTable(accountNamespace+"PasswordResetsTable", "password_resets", &passwordReset{}, users),
		createTable(accountNamespace+"PermissionRolesTable", "permission_roles", &permissionRole{}, permissions, roles),
		createTable(permissions, "permissions", &permission{}),
		createTable(accountNamespace+"PersistencesTable", "persistences", &persistence{}, users),
		createTable(accountNamespace+"RoleUsersTable", "role_users", &roleUser{}, users, roles),
		createTable(roles, "roles", &role{}),
		createTable(users, "users", &user{}, groups),
		createTable(accountNamespace+"VerificationsTable", "verifications", &verification{}, users),
	}
}
