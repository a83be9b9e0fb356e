package jwt

type Role int

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Agent is the identity embedded in session tokens. Agents are provisioned
// out of band; there is no signup flow.
type Agent struct {
	Id    string `json:"id"`
	Email string `json:"email"`
}
