/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  JSON shapes exchanged with clients. Domain types stay inside the
  service packages; handlers convert at the boundary.
*/
package api

import (
	"time"

	"github.com/warp/adboost/ads"
	"github.com/warp/adboost/ledger"
	"github.com/warp/adboost/merchant"
)

// =============================================================================
// REQUESTS
// =============================================================================

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateAdRequest struct {
	Title          string `json:"title"`
	Type           string `json:"type"`
	TargetURL      string `json:"targetUrl"`
	BannerImageURL string `json:"bannerImageUrl"`
	AppStoreURL    string `json:"appStoreUrl"`
	GooglePlayURL  string `json:"googlePlayUrl"`
	BudgetCredits  int64  `json:"budgetCredits"`
	EndDate        string `json:"endDate"` // RFC3339, optional
}

type RechargeRequest struct {
	Amount int64 `json:"amount"`
}

type AdjustRequest struct {
	MerchantID string `json:"merchantId"`
	Amount     int64  `json:"amount"`
	Note       string `json:"note"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type MerchantDTO struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Credits     int64  `json:"credits"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	LastLoginAt string `json:"lastLoginAt,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

type AdDTO struct {
	ID             string     `json:"id"`
	MerchantID     string     `json:"merchantId"`
	Title          string     `json:"title"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	TargetURL      string     `json:"targetUrl,omitempty"`
	BannerImageURL string     `json:"bannerImageUrl,omitempty"`
	AppStoreURL    string     `json:"appStoreUrl,omitempty"`
	GooglePlayURL  string     `json:"googlePlayUrl,omitempty"`
	CostPerDay     int64      `json:"costPerDay"`
	BudgetCredits  int64      `json:"budgetCredits"`
	Impressions    int64      `json:"impressions"`
	Clicks         int64      `json:"clicks"`
	StartDate      string     `json:"startDate,omitempty"`
	EndDate        string     `json:"endDate,omitempty"`
	CreatedAt      string     `json:"createdAt"`
}

type TransactionDTO struct {
	ID           string `json:"id"`
	MerchantID   string `json:"merchantId"`
	AdID         string `json:"adId,omitempty"`
	Type         string `json:"type"`
	Amount       int64  `json:"amount"`
	BalanceAfter int64  `json:"balanceAfter"`
	Note         string `json:"note,omitempty"`
	Source       string `json:"source"`
	CreatedAt    string `json:"createdAt"`
}

type BalanceResponse struct {
	NewBalance int64 `json:"newBalance"`
}

type ClickResponse struct {
	RedirectURL string     `json:"redirectUrl"`
	AdData      ClickAdDTO `json:"adData"`
}

type ClickAdDTO struct {
	Title          string `json:"title"`
	Type           string `json:"type"`
	BannerImageURL string `json:"bannerImageUrl,omitempty"`
}

type TickResponse struct {
	Charged int `json:"charged"`
	Paused  int `json:"paused"`
	Ended   int `json:"ended"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toMerchantDTO(m merchant.Merchant) MerchantDTO {
	dto := MerchantDTO{
		ID:        string(m.ID),
		Username:  m.Username,
		Email:     m.Email,
		Credits:   m.Credits,
		Role:      string(m.Role),
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
	if m.LastLoginAt != nil {
		dto.LastLoginAt = m.LastLoginAt.Format(time.RFC3339)
	}
	return dto
}

func toAdDTO(a ads.Ad) AdDTO {
	dto := AdDTO{
		ID:             string(a.ID),
		MerchantID:     string(a.MerchantID),
		Title:          a.Title,
		Type:           string(a.Type),
		Status:         string(a.Status),
		TargetURL:      a.TargetURL,
		BannerImageURL: a.BannerImageURL,
		AppStoreURL:    a.AppStoreURL,
		GooglePlayURL:  a.GooglePlayURL,
		CostPerDay:     a.CostPerDay,
		BudgetCredits:  a.BudgetCredits,
		Impressions:    a.Metrics.Impressions,
		Clicks:         a.Metrics.Clicks,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
	}
	if a.StartDate != nil {
		dto.StartDate = a.StartDate.Format(time.RFC3339)
	}
	if a.EndDate != nil {
		dto.EndDate = a.EndDate.Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:           string(tx.ID),
		MerchantID:   string(tx.MerchantID),
		AdID:         string(tx.AdID),
		Type:         string(tx.Type),
		Amount:       tx.Amount,
		BalanceAfter: tx.BalanceAfter,
		Note:         tx.Note,
		Source:       string(tx.Source),
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339Nano),
	}
}
