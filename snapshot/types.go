// Package snapshot holds the read-only candidate, project and client records
// that one nudge evaluation pass works over, and the single normalization
// step that turns loosely shaped records into them.
package snapshot

import (
	"strings"
	"time"
)

// Compliance carries a candidate's certificate dates.
type Compliance struct {
	SiteSafetyExpiry time.Time `mapstructure:"sitesafetyexpiry" json:"siteSafetyExpiry,omitempty"`
}

// Candidate is a worker on the books. Zero times mean the date is unknown.
type Candidate struct {
	ID             string     `mapstructure:"id" json:"id"`
	FirstName      string     `mapstructure:"firstname" json:"firstName"`
	LastName       string     `mapstructure:"lastname" json:"lastName"`
	Phone          string     `mapstructure:"phone" json:"phone,omitempty"`
	Email          string     `mapstructure:"email" json:"email,omitempty"`
	StartDate      time.Time  `mapstructure:"startdate" json:"startDate,omitempty"`
	ProjectID      string     `mapstructure:"projectid" json:"projectId,omitempty"`
	CurrentProject string     `mapstructure:"currentproject" json:"currentProject,omitempty"`
	SiteAddress    string     `mapstructure:"siteaddress" json:"siteAddress,omitempty"`
	VisaExpiry     time.Time  `mapstructure:"visaexpiry" json:"visaExpiry,omitempty"`
	Compliance     Compliance `mapstructure:"compliance" json:"compliance"`
}

// FullName joins first and last name.
func (c Candidate) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Project is a client site that needs crew.
type Project struct {
	ID           string    `mapstructure:"id" json:"id"`
	Name         string    `mapstructure:"name" json:"name"`
	ClientID     string    `mapstructure:"clientid" json:"clientId,omitempty"`
	StartDate    time.Time `mapstructure:"startdate" json:"startDate,omitempty"`
	SSAStatus    string    `mapstructure:"ssastatus" json:"ssaStatus,omitempty"`
	SiteAddress  string    `mapstructure:"siteaddress" json:"siteAddress,omitempty"`
	Status       string    `mapstructure:"status" json:"status,omitempty"`
	ContactName  string    `mapstructure:"contactname" json:"contactName,omitempty"`
	ContactPhone string    `mapstructure:"contactphone" json:"contactPhone,omitempty"`
}

// Client is a company that hires crew.
type Client struct {
	ID          string    `mapstructure:"id" json:"id"`
	Name        string    `mapstructure:"name" json:"name"`
	ContactName string    `mapstructure:"contactname" json:"contactName,omitempty"`
	Phone       string    `mapstructure:"phone" json:"phone,omitempty"`
	Email       string    `mapstructure:"email" json:"email,omitempty"`
	LastContact time.Time `mapstructure:"lastcontact" json:"lastContact,omitempty"`
}

// Snapshot is everything one evaluation pass reads. Generators must not
// modify it.
type Snapshot struct {
	Candidates []Candidate
	Projects   []Project
	Clients    []Client
}

// AssignedTo returns the candidates that reference p, either by project ID or
// by current project name.
func (s Snapshot) AssignedTo(p Project) []Candidate {
	name := normalizeName(p.Name)
	var assigned []Candidate
	for _, c := range s.Candidates {
		if p.ID != "" && c.ProjectID == p.ID {
			assigned = append(assigned, c)
			continue
		}
		if name != "" && normalizeName(c.CurrentProject) == name {
			assigned = append(assigned, c)
		}
	}
	return assigned
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
