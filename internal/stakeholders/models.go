package stakeholders

import "carbon-scribe/credit-registry-backend/internal/models"

type ContactInput struct {
	Email   string `json:"email" binding:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Website string `json:"website" binding:"omitempty,url"`
}

type CreateStakeholderRequest struct {
	Name         string                     `json:"name" binding:"required"`
	Category     models.StakeholderCategory `json:"category" binding:"required"`
	Organization string                     `json:"organization"`
	Contact      ContactInput               `json:"contact"`
	Status       models.StakeholderStatus   `json:"status"`
}

type UpdateStakeholderRequest struct {
	Name         *string                     `json:"name"`
	Category     *models.StakeholderCategory `json:"category"`
	Organization *string                     `json:"organization"`
	Contact      *ContactInput               `json:"contact"`
	Status       *models.StakeholderStatus   `json:"status"`
}

type Filter struct {
	Category models.StakeholderCategory
	Status   models.StakeholderStatus
}

func (c ContactInput) toModel() models.Contact {
	return models.Contact{Email: c.Email, Phone: c.Phone, Address: c.Address, Website: c.Website}
}
