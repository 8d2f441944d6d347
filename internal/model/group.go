package model

import (
	"time"
)

// Group 轮次的所属社群
type Group struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `json:"name" gorm:"not null"`
}

// TableName 自定义表名
func (Group) TableName() string {
	return "community_group"
}

// GroupMembership 社群成员关系
type GroupMembership struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	GroupId int64  `json:"group_id" gorm:"not null;uniqueIndex:idx_membership_group_user"`
	UserId  int64  `json:"user_id" gorm:"not null;uniqueIndex:idx_membership_group_user"`
	Role    string `json:"role" gorm:"default:'member'"`
}

// 成员角色，coordinator 拥有轮次管理能力
const (
	RoleMember      = "member"
	RoleCoordinator = "coordinator"
)

// TableName 自定义表名
func (GroupMembership) TableName() string {
	return "group_membership"
}
