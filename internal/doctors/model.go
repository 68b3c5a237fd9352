package doctors

import (
	"strings"
	"time"
)

// ApprovalStatus tracks a doctor's standing on the platform. Only active
// doctors appear in the public directory.
type ApprovalStatus string

const (
	StatusActive   ApprovalStatus = "active"
	StatusPending  ApprovalStatus = "pending"
	StatusRejected ApprovalStatus = "rejected"
)

// Profile is a doctor's profile layered onto the base account record in the
// users collection.
type Profile struct {
	ID              string         `json:"id"`
	Email           string         `json:"email"`
	Role            string         `json:"role"`
	Status          ApprovalStatus `json:"status"`
	FirstName       string         `json:"firstName"`
	LastName        string         `json:"lastName"`
	Specialty       string         `json:"specialty,omitempty"`
	LicenseNumber   string         `json:"licenseNumber,omitempty"`
	Experience      string         `json:"experience,omitempty"`
	Education       string         `json:"education,omitempty"`
	Bio             string         `json:"bio,omitempty"`
	CalendlyURL     string         `json:"calendlyUrl,omitempty"`
	ProfileImageURL string         `json:"profileImageUrl,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt,omitempty"`
}

// DisplayName returns the doctor's patient-facing name.
func (p *Profile) DisplayName() string {
	return strings.TrimSpace("Dr. " + strings.TrimSpace(p.FirstName+" "+p.LastName))
}

// placeholderLinkFragments mark scheduling links that were never really
// configured (demo values shipped with the onboarding docs).
var placeholderLinkFragments = []string{"demo-doctor", "your-doctor", "calendly.com/demo"}

// Bookable reports whether patients can book this doctor: the profile must be
// active and carry a real scheduling link.
func Bookable(p *Profile) bool {
	if p == nil || p.Status != StatusActive {
		return false
	}
	link := strings.TrimSpace(p.CalendlyURL)
	if link == "" {
		return false
	}
	for _, frag := range placeholderLinkFragments {
		if strings.Contains(link, frag) {
			return false
		}
	}
	return true
}

// UpdateParams are the profile fields a doctor may edit. Nil fields are left
// untouched; an empty string clears the field (a cleared scheduling link means
// "not bookable").
type UpdateParams struct {
	FirstName       *string
	LastName        *string
	Specialty       *string
	LicenseNumber   *string
	Experience      *string
	Education       *string
	Bio             *string
	CalendlyURL     *string
	ProfileImageURL *string
}
