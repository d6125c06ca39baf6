package transport

type BusinessHours struct {
	Start    int    `json:"start" validate:"min=0,max=23"`
	End      int    `json:"end" validate:"min=1,max=24,gtfield=Start"`
	Days     []int  `json:"days" validate:"required,min=1,max=7,dive,weekday"`
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
}

type RegisterRequest struct {
	Email                     string         `json:"email" validate:"required,email,max=254"`
	Password                  string         `json:"password" validate:"required,min=8,max=72"`
	Name                      string         `json:"name" validate:"required,min=1,max=120"`
	Slug                      string         `json:"slug" validate:"required,min=2,max=60,slug"`
	OwnerPhone                string         `json:"ownerPhone" validate:"omitempty,max=32"`
	WhatsAppToken             string         `json:"whatsappToken" validate:"omitempty,max=1024"`
	WhatsAppPhoneNumberID     string         `json:"whatsappPhoneNumberId" validate:"omitempty,numeric,max=32"`
	GoogleServiceAccountEmail string         `json:"googleServiceAccountEmail" validate:"omitempty,email"`
	GooglePrivateKey          string         `json:"googlePrivateKey" validate:"omitempty,max=8192"`
	GoogleCalendarID          string         `json:"googleCalendarId" validate:"omitempty,max=254"`
	BusinessHours             *BusinessHours `json:"businessHours" validate:"omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TenantResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Email string `json:"email"`
}

type AuthResponse struct {
	AccessToken string         `json:"accessToken"`
	ExpiresIn   int64          `json:"expiresIn"`
	Tenant      TenantResponse `json:"tenant"`
}
