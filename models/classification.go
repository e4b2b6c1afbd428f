package models

import "time"

// ImageFeatures is the dermoscopic feature vector extracted for one image.
type ImageFeatures struct {
	ID              uint    `gorm:"primaryKey" json:"-"`
	ImageID         uint    `gorm:"uniqueIndex;not null" json:"image_id"`
	Image           Image   `gorm:"foreignKey:ImageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Asymmetry       float64 `json:"asymmetry"`
	PigmentNetwork  float64 `json:"pigment_network"`
	DotsGlobules    float64 `json:"dots_globules"`
	Streaks         float64 `json:"streaks"`
	RegressionAreas float64 `json:"regression_areas"`
	BlueWhitishVeil float64 `json:"blue_whitish_veil"`
	ColorWhite      bool    `json:"color_white"`
	ColorRed        bool    `json:"color_red"`
	ColorLightBrown bool    `json:"color_light_brown"`
	ColorDarkBrown  bool    `json:"color_dark_brown"`
	ColorBlueGray   bool    `json:"color_blue_gray"`
	ColorBlack      bool    `json:"color_black"`
}

// Classification is the label produced for one image. Rows are append-only.
type Classification struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	CreatedAt            time.Time `json:"created_at"`
	ImageID              uint      `gorm:"uniqueIndex;not null" json:"image_id"`
	Image                Image     `gorm:"foreignKey:ImageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ClassificationResult string    `gorm:"size:128;not null" json:"classification_result"`
	ConfidenceScore      float64   `gorm:"not null" json:"confidence_score"`
}

// ClassificationView is the joined read model of a classification and the
// features of the same image. Features is nil when no feature row exists.
type ClassificationView struct {
	Classification
	Features *ImageFeatures `json:"features"`
}
