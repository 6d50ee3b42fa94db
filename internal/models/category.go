package models

// Category 固定的分类目录，启动时播种
type Category struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Title string `gorm:"size:64;not null" json:"title"`
}
