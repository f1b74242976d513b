// Package catalog holds the tenant-scoped advertiser and ad plan records.
// Every read and write is scoped by tenant id; a record of another tenant is
// indistinguishable from a missing one.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ad_copy_planner/generator"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrInvalid  = errors.New("invalid record")
)

// PlanStatus 广告计划的审批状态。
type PlanStatus string

const (
	PlanDraft    PlanStatus = "draft"
	PlanInReview PlanStatus = "in_review"
	PlanApproved PlanStatus = "approved"
)

// Advertiser is a brand guideline record.
type Advertiser struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"-"`
	Name            string    `json:"name"`
	Industry        string    `json:"industry,omitempty"`
	BrandGuidelines string    `json:"brand_guidelines,omitempty"`
	Tone            string    `json:"tone,omitempty"`
	NGWords         []string  `json:"ng_words,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Brand 转换为生成提示词使用的品牌信息。
func (a Advertiser) Brand() *generator.Brand {
	return &generator.Brand{
		Name:       a.Name,
		Guidelines: a.BrandGuidelines,
		Tone:       a.Tone,
		NGWords:    a.NGWords,
	}
}

func (a Advertiser) validate() error {
	if a.TenantID == "" {
		return fmt.Errorf("%w: tenant is required", ErrInvalid)
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	return nil
}

// Plan is an ad plan document.
type Plan struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"-"`
	AdvertiserID string     `json:"advertiser_id"`
	Title        string     `json:"title"`
	Objective    string     `json:"objective,omitempty"`
	Target       string     `json:"target,omitempty"`
	KeyMessage   string     `json:"key_message,omitempty"`
	Channels     []string   `json:"channels,omitempty"`
	Body         string     `json:"body,omitempty"`
	Status       PlanStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Progress is the share of filled plan sections, 0-100.
func (p Plan) Progress() int {
	filled := 0
	for _, s := range []string{p.Title, p.Objective, p.Target, p.KeyMessage, p.Body} {
		if strings.TrimSpace(s) != "" {
			filled++
		}
	}
	if len(p.Channels) > 0 {
		filled++
	}
	return filled * 100 / 6
}

func (p *Plan) validate() error {
	if p.TenantID == "" {
		return fmt.Errorf("%w: tenant is required", ErrInvalid)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if p.AdvertiserID == "" {
		return fmt.Errorf("%w: advertiser_id is required", ErrInvalid)
	}
	switch p.Status {
	case "":
		p.Status = PlanDraft
	case PlanDraft, PlanInReview, PlanApproved:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, p.Status)
	}
	return nil
}

// Store is the persistence port for advertisers and plans. Save creates a
// record when ID is empty and updates it otherwise.
type Store interface {
	ListAdvertisers(ctx context.Context, tenantID string) ([]Advertiser, error)
	GetAdvertiser(ctx context.Context, tenantID, id string) (Advertiser, error)
	SaveAdvertiser(ctx context.Context, a Advertiser) (Advertiser, error)
	DeleteAdvertiser(ctx context.Context, tenantID, id string) error

	ListPlans(ctx context.Context, tenantID, advertiserID string) ([]Plan, error)
	GetPlan(ctx context.Context, tenantID, id string) (Plan, error)
	SavePlan(ctx context.Context, p Plan) (Plan, error)
	DeletePlan(ctx context.Context, tenantID, id string) error
}
