package models

import (
	"math"
	"time"
)

// Review is feedback left by one user about another, optionally tied to a session
type Review struct {
	ID         string    `json:"id"`
	ReviewerID string    `json:"reviewerId"`
	RevieweeID string    `json:"revieweeId"`
	SessionID  *string   `json:"sessionId,omitempty"`
	Rating     int       `json:"rating"`
	Comment    *string   `json:"comment,omitempty"`
	Approved   bool      `json:"approved"`
	Flagged    bool      `json:"flagged"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Visible reports whether the review counts toward public listings and ratings
func (r *Review) Visible() bool {
	return r.Approved && !r.Flagged
}

// SubmitReviewRequest is the payload for submitting a review.
// ReviewerID is taken from the authenticated session, never from the body.
type SubmitReviewRequest struct {
	RevieweeID string  `json:"revieweeId" binding:"required,max=64"`
	SessionID  *string `json:"sessionId" binding:"omitempty,uuid"`
	Rating     int     `json:"rating" binding:"required,min=1,max=5"`
	Comment    *string `json:"comment" binding:"omitempty,max=5000"`
}

// SubmitReviewResponse is returned after a review is stored
type SubmitReviewResponse struct {
	Success  bool   `json:"success"`
	ReviewID string `json:"reviewId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ModerateReviewRequest approves or flags a review
type ModerateReviewRequest struct {
	Approved bool `json:"approved"`
	Flagged  bool `json:"flagged"`
}

// ReviewsResponse is the response for listing reviews of a user
type ReviewsResponse struct {
	RevieweeID string    `json:"revieweeId"`
	Reviews    []*Review `json:"reviews"`
}

// RatingSummary aggregates visible reviews of one user
type RatingSummary struct {
	RevieweeID   string  `json:"revieweeId"`
	Count        int     `json:"count"`
	Average      float64 `json:"average"`
	Distribution [5]int  `json:"distribution"`
}

// Summarize builds a RatingSummary over the visible reviews in reviews
func Summarize(revieweeID string, reviews []*Review) *RatingSummary {
	summary := &RatingSummary{RevieweeID: revieweeID}
	total := 0
	for _, r := range reviews {
		if !r.Visible() || r.Rating < 1 || r.Rating > 5 {
			continue
		}
		summary.Count++
		summary.Distribution[r.Rating-1]++
		total += r.Rating
	}
	if summary.Count > 0 {
		summary.Average = math.Round(float64(total)/float64(summary.Count)*100) / 100
	}
	return summary
}
