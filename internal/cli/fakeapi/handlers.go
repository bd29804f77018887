package fakeapi

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type setPasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ReNewPassword   string `json:"re_new_password" binding:"required"`
}

type profilePatch struct {
	FullName    *string `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
	Bio         *string `json:"bio"`
	Address     *string `json:"address"`
	CNPJ        *string `json:"cnpj"`
	CEP         *string `json:"cep"`
	Profession  *string `json:"profession"`
	Keywords    *string `json:"palavras_chave"`
}

type mePatch struct {
	IsProfessional *bool         `json:"is_professional"`
	Profile        *profilePatch `json:"profile"`
}

// bindError renders binding failures the way DRF serializers do:
// {"field": ["message"]}
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error - " + err.Error()})
		return
	}

	fields := gin.H{}
	for _, fe := range verrs {
		msg := "This field is required."
		if fe.Tag() == "email" {
			msg = "Enter a valid email address."
		}
		fields[fe.Field()] = []string{msg}
	}
	c.JSON(http.StatusBadRequest, fields)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var user User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Unable to log in with provided credentials."}})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	if err := verifyPassword(req.Password, user.PasswordHash); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Unable to log in with provided credentials."}})
		return
	}

	s.mu.Lock()
	secret := s.secret
	s.mu.Unlock()

	token, _, err := generateToken(secret, user.ID, user.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to generate token"})
		return
	}

	s.logger.Debug().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")

	resp := gin.H{"user": gin.H{"id": user.ID, "email": user.Email}}
	if s.tokenField != "" {
		resp[s.tokenField] = token
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) logout(c *gin.Context) {
	s.mu.Lock()
	s.revoked[c.GetString("token_id")] = struct{}{}
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *Server) getMe(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c).response())
}

func (s *Server) patchMe(c *gin.Context) {
	var req mePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user := currentUser(c)
	if p := req.Profile; p != nil && p.CNPJ != nil && !validCNPJ(*p.CNPJ) {
		c.JSON(http.StatusBadRequest, gin.H{"profile": gin.H{"cnpj": []string{"Enter a valid CNPJ."}}})
		return
	}

	if req.IsProfessional != nil {
		// a professional going back to client loses the public listing fields
		if user.IsProfessional && !*req.IsProfessional {
			user.Bio, user.Address, user.CNPJ = "", "", ""
		}
		user.IsProfessional = *req.IsProfessional
	}
	if p := req.Profile; p != nil {
		assign(&user.FullName, p.FullName)
		assign(&user.PhoneNumber, p.PhoneNumber)
		assign(&user.Bio, p.Bio)
		assign(&user.Address, p.Address)
		assign(&user.CNPJ, p.CNPJ)
		assign(&user.CEP, p.CEP)
		assign(&user.Profession, p.Profession)
		assign(&user.Keywords, p.Keywords)
	}

	if err := s.db.Save(user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to update user")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, user.response())
}

func (s *Server) setPassword(c *gin.Context) {
	var req setPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user := currentUser(c)
	if err := verifyPassword(req.CurrentPassword, user.PasswordHash); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"current_password": []string{"Invalid password."}})
		return
	}
	if req.NewPassword != req.ReNewPassword {
		c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"The two password fields didn't match."}})
		return
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	if err := s.db.Model(user).Update("password_hash", hash).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to update password")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// passwordReset answers 204 whether or not the account exists
func (s *Server) passwordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	s.mu.Lock()
	s.resets = append(s.resets, req.Email)
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func assign(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func validCNPJ(v string) bool {
	if v == "" {
		return true
	}
	for _, r := range v {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(v) >= 11 && len(v) <= 14
}
