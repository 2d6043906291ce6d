package models

import (
	"fmt"
	"strings"
	"time"
)

// Profile is the vault identity a scan runs against: the set of personal
// identifiers we look for in external sources. Sensitive identifiers are
// stored encrypted at rest by the vault; in-memory they are plaintext.
type Profile struct {
	ID          string    `json:"id" bson:"_id"`
	DisplayName string    `json:"display_name" bson:"display_name"`
	FullName    string    `json:"full_name" bson:"full_name"`
	Emails      []string  `json:"emails" bson:"emails"`
	Phones      []string  `json:"phones" bson:"phones"`
	Usernames   []string  `json:"usernames" bson:"usernames"`
	Addresses   []string  `json:"addresses" bson:"addresses"`
	DateOfBirth string    `json:"date_of_birth,omitempty" bson:"date_of_birth"`
	SSN         string    `json:"ssn,omitempty" bson:"ssn"`
	Employer    string    `json:"employer,omitempty" bson:"employer"`
	Aliases     []string  `json:"aliases,omitempty" bson:"aliases"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// SearchIdentifiers is the subset of profile data handed to intelligence
// providers. Providers never see the full vault.
type SearchIdentifiers struct {
	FullName  string   `json:"full_name,omitempty"`
	Emails    []string `json:"emails,omitempty"`
	Phones    []string `json:"phones,omitempty"`
	Usernames []string `json:"usernames,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

func (p *Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile id is required")
	}
	if p.FullName == "" && len(p.Emails) == 0 && len(p.Usernames) == 0 {
		return fmt.Errorf("profile needs at least a name, email, or username to scan")
	}
	return nil
}

func (p *Profile) Identifiers() SearchIdentifiers {
	return SearchIdentifiers{
		FullName:  p.FullName,
		Emails:    append([]string(nil), p.Emails...),
		Phones:    append([]string(nil), p.Phones...),
		Usernames: append([]string(nil), p.Usernames...),
		Addresses: append([]string(nil), p.Addresses...),
	}
}

func (ids SearchIdentifiers) Empty() bool {
	return ids.FullName == "" && len(ids.Emails) == 0 && len(ids.Phones) == 0 &&
		len(ids.Usernames) == 0 && len(ids.Addresses) == 0
}

func (p *Profile) HasEmail(email string) bool {
	for _, e := range p.Emails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}
