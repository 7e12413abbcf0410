package model

import (
	"time"
)

type AcademicLevel string

const (
	Elementary    AcademicLevel = "elementary"
	MiddleSchool  AcademicLevel = "middle_school"
	HighSchool    AcademicLevel = "high_school"
	Undergraduate AcademicLevel = "undergraduate"
	Graduate      AcademicLevel = "graduate"
)

type StudyStyle string

const (
	Visual      StudyStyle = "visual"
	Auditory    StudyStyle = "auditory"
	Kinesthetic StudyStyle = "kinesthetic"
	Mixed       StudyStyle = "mixed"
)

// swagger:model User
type User struct {
	BaseModel
	Name          string        `gorm:"size:100;not null" json:"name"`
	Email         string        `gorm:"size:100;unique;not null" json:"email"`
	Password      string        `gorm:"size:100;not null" json:"-"`
	AcademicLevel AcademicLevel `gorm:"type:enum('elementary','middle_school','high_school','undergraduate','graduate');default:'undergraduate'" json:"academicLevel"`
	Subjects      StringList    `gorm:"type:json" json:"subjects"`
	StudyStyle    StudyStyle    `gorm:"type:enum('visual','auditory','kinesthetic','mixed');default:'mixed'" json:"studyStyle"`
	LastLogin     time.Time     `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastLogin"`
	LastSeen      time.Time     `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}
