package models

// Setting is a generic key/value configuration row. The admin settings
// endpoint writes here; senders and the event builder read through
// internal/settings at send time so toggles take effect live.
type Setting struct {
	Key   string `gorm:"column:key;size:120;primaryKey"`
	Value string `gorm:"column:value;type:text"`
}

// TableName implements the gorm naming override.
func (Setting) TableName() string {
	return "settings"
}
