package models

import "carbon-scribe/credit-registry-backend/internal/store"

type StakeholderCategory string

const (
	StakeholderDeveloper  StakeholderCategory = "developer"
	StakeholderVerifier   StakeholderCategory = "verifier"
	StakeholderGovernment StakeholderCategory = "government"
	StakeholderNGO        StakeholderCategory = "ngo"
	StakeholderCommunity  StakeholderCategory = "community"
	StakeholderInvestor   StakeholderCategory = "investor"
	StakeholderBuyer      StakeholderCategory = "buyer"
	StakeholderLandowner  StakeholderCategory = "landowner"
	StakeholderOther      StakeholderCategory = "other"
)

func (c StakeholderCategory) Valid() bool {
	switch c {
	case StakeholderDeveloper, StakeholderVerifier, StakeholderGovernment, StakeholderNGO,
		StakeholderCommunity, StakeholderInvestor, StakeholderBuyer, StakeholderLandowner, StakeholderOther:
		return true
	}
	return false
}

type StakeholderStatus string

const (
	StakeholderActive    StakeholderStatus = "active"
	StakeholderInactive  StakeholderStatus = "inactive"
	StakeholderSuspended StakeholderStatus = "suspended"
)

func (s StakeholderStatus) Valid() bool {
	return s == StakeholderActive || s == StakeholderInactive || s == StakeholderSuspended
}

type Contact struct {
	Email   string `json:"email,omitempty" bson:"email,omitempty"`
	Phone   string `json:"phone,omitempty" bson:"phone,omitempty"`
	Address string `json:"address,omitempty" bson:"address,omitempty"`
	Website string `json:"website,omitempty" bson:"website,omitempty"`
}

type Stakeholder struct {
	store.Meta   `bson:",inline"`
	Name         string              `json:"name" bson:"name"`
	Category     StakeholderCategory `json:"category" bson:"category"`
	Organization string              `json:"organization,omitempty" bson:"organization,omitempty"`
	Contact      Contact             `json:"contact" bson:"contact"`
	ProjectIDs   []string            `json:"project_ids" bson:"project_ids"`
	Status       StakeholderStatus   `json:"status" bson:"status"`
}

// LinkID appends id to list unless it is already present.
func LinkID(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}

// UnlinkID removes every occurrence of id from list.
func UnlinkID(list []string, id string) []string {
	out := list[:0]
	for _, existing := range list {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
