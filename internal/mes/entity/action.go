package entity

import (
	"time"

	"gorm.io/gorm"
)

// UIAction 界面动作定义，由前端按 XMLID 解析并渲染
type UIAction struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	XMLID     string    `json:"xml_id" gorm:"column:xml_id;size:128;not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Type      string    `json:"type" gorm:"size:64;not null"`
	ResModel  string    `json:"res_model" gorm:"size:64"`
	ViewMode  string    `json:"view_mode" gorm:"size:64"`
	Target    string    `json:"target" gorm:"size:20"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UIAction) TableName() string {
	return "mes_ui_actions"
}

func (a *UIAction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return nil
}
