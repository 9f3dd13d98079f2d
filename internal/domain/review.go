package domain

import (
	"strings"
	"time"
)

type Review struct {
	ID                 uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID          uint       `json:"productId" gorm:"not null;uniqueIndex:idx_review_product_customer"`
	CustomerID         uint       `json:"customerId" gorm:"not null;uniqueIndex:idx_review_product_customer"`
	Rating             int        `json:"rating" gorm:"not null"`
	Title              string     `json:"title,omitempty" gorm:"size:200"`
	Comment            string     `json:"comment,omitempty" gorm:"type:text"`
	IsApproved         bool       `json:"isApproved" gorm:"not null;index"`
	IsVerifiedPurchase bool       `json:"isVerifiedPurchase" gorm:"not null"`
	HelpfulCount       int        `json:"helpfulCount" gorm:"not null"`
	ModeratedBy        *uint      `json:"moderatedBy,omitempty"`
	ModeratedAt        *time.Time `json:"moderatedAt,omitempty"`
	ModerationNotes    string     `json:"moderationNotes,omitempty" gorm:"size:500"`
	CreatedAt          time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt          time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (r *Review) Validate() error {
	verr := NewValidationError()
	if r.Rating < 1 || r.Rating > 5 {
		verr.Add("rating must be between 1 and 5")
	}
	if strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Comment) == "" {
		verr.Add("either title or comment is required")
	}
	if r.ProductID == 0 {
		verr.Add("productId is required")
	}
	return verr.OrNil()
}

func (r *Review) Moderate(approved bool, adminID uint, notes string, now time.Time) {
	r.IsApproved = approved
	r.ModeratedBy = &adminID
	r.ModeratedAt = &now
	r.ModerationNotes = notes
}

type ReviewVote struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ReviewID  uint      `json:"reviewId" gorm:"not null;uniqueIndex:idx_vote_review_user"`
	UserID    uint      `json:"userId" gorm:"not null;uniqueIndex:idx_vote_review_user"`
	IsHelpful bool      `json:"isHelpful" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}
