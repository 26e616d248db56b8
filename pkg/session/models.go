package session

// User is the signed-in account as reported by the backend
type User struct {
	ID           int    `json:"userId"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Coins        int    `json:"coins"`
	ReferralCode string `json:"referralCode,omitempty"`
}

// Referral returns the code other users can sign up with. The backend may
// omit it, in which case the username doubles as the code.
func (u *User) Referral() string {
	if u.ReferralCode != "" {
		return u.ReferralCode
	}
	return u.Username
}

type authResponse struct {
	User
	Token string `json:"token"`
}

type signInRequest struct {
	Username string `json:"username"`
}

type signUpRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	ReferralCode string `json:"referralCode,omitempty"`
}

type addCoinsRequest struct {
	Amount   int    `json:"amount"`
	TaskType string `json:"taskType"`
}

type coinsResponse struct {
	Coins int `json:"coins"`
}

type errorResponse struct {
	Error string `json:"error"`
}
