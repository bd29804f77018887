package fakeapi

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// User is an account of the fake marketplace, profile fields flattened
type User struct {
	ID             string    `gorm:"primaryKey;type:varchar(26)"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	Email          string    `gorm:"uniqueIndex;not null"`
	PasswordHash   string    `gorm:"not null"`
	IsProfessional bool      `gorm:"not null;default:false"`

	FullName    string
	PhoneNumber string
	Bio         string
	Address     string
	CNPJ        string
	CEP         string
	Profession  string
	Keywords    string
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = ulid.Make().String()
	}
	return nil
}

type profileDetails struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Bio         string `json:"bio"`
	Address     string `json:"address"`
	CNPJ        string `json:"cnpj"`
	CEP         string `json:"cep"`
	Profession  string `json:"profession"`
	Keywords    string `json:"palavras_chave"`
}

type profileResponse struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	IsProfessional bool           `json:"is_professional"`
	Profile        profileDetails `json:"profile"`
}

func (u *User) response() profileResponse {
	return profileResponse{
		ID:             u.ID,
		Email:          u.Email,
		IsProfessional: u.IsProfessional,
		Profile: profileDetails{
			FullName:    u.FullName,
			PhoneNumber: u.PhoneNumber,
			Bio:         u.Bio,
			Address:     u.Address,
			CNPJ:        u.CNPJ,
			CEP:         u.CEP,
			Profession:  u.Profession,
			Keywords:    u.Keywords,
		},
	}
}
