package sprinkle

import "sprinkle-migrator/internal/usecase"

const coreNamespace = `UserFrosting\Sprinkle\Core\Database\Migrations\v400\`

type session struct {
	ID           string `gorm:"column:id;type:varchar(255);primaryKey"`
	UserID       *uint  `gorm:"column:user_id"`
	IPAddress    string `gorm:"column:ip_address;size:45"`
	UserAgent    string `gorm:"column:user_agent;type:text"`
	Payload      string `gorm:"column:payload;type:text;not null"`
	LastActivity int    `gorm:"column:last_activity;not null"`
}

type throttle struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Type        string `gorm:"column:type;not null"`
	IP          string `gorm:"column:ip"`
	RequestData string `gorm:"column:request_data;type:text"`
	Timestamps
}

// CoreMigrations は core スプリンクルのマイグレーションを返す。
func CoreMigrations() []usecase.Migration {
	return []usecase.Migration{
		createTable(coreNamespace+"SessionsTable", "sessions", &session{}),
		createTable(coreNamespace+"ThrottlesTable", "throttles", &throttle{}),
	}
}
