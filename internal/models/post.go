package models

// Post is read by the relay only to resolve the owner of a liked or commented post
type Post struct {
	Base
	UserID      string `gorm:"not null;index;type:varchar(64)" json:"userId"`
	Description string `json:"description,omitempty"`
}

// Comment is read to resolve the author of a liked or replied comment
type Comment struct {
	Base
	PostID   string  `gorm:"not null;index;type:varchar(64)" json:"postId"`
	UserID   string  `gorm:"not null;index;type:varchar(64)" json:"userId"`
	ParentID *string `gorm:"index;type:varchar(64)" json:"parentId,omitempty"`
	Content  string  `gorm:"type:text" json:"content"`
}
