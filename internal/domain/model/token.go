package model

// DeviceAuthorization is the provider's response to a device-authorization
// request. The caller displays VerificationURI and UserCode to the user and
// polls the token endpoint with DeviceCode every Interval seconds until the
// code expires (ExpiresIn seconds from issuance).
type DeviceAuthorization struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// TokenGrant is a decoded success response from the provider's token
// endpoint. Raw preserves the response body byte-for-byte; the credential
// store persists Raw so that refresh replaces the whole blob rather than
// merging fields.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	Scope        []string
	TokenType    string
	Raw          []byte
}

// PollStatus is the outcome of a single device-code poll attempt.
type PollStatus string

const (
	// PollSuccess means the user authorized and a token grant was issued.
	PollSuccess PollStatus = "success"
	// PollPending means the user has not yet authorized; poll again after
	// the provider's advertised interval.
	PollPending PollStatus = "pending"
	// PollExpired means the device code expired before authorization.
	// Terminal; a new device authorization must be started.
	PollExpired PollStatus = "expired"
	// PollFailed means the provider rejected the exchange outright.
	// Terminal; Detail carries the provider's error field.
	PollFailed PollStatus = "failed"
)

// DevicePollResult is the discriminated result of one poll attempt.
// Grant is non-nil only when Status is PollSuccess.
type DevicePollResult struct {
	Status PollStatus
	Grant  *TokenGrant
	Detail string
}

// Terminal reports whether no further polling should occur for this device code.
func (r *DevicePollResult) Terminal() bool {
	return r.Status != PollPending
}
