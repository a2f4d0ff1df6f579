package api

// Auth holds the tenant credentials sent with every API request.
type Auth struct {
	Token  string `json:"token,omitempty"`
	Tenant string `json:"tenant,omitempty"`
}

// IsAuthenticated returns true if a bearer token is configured.
func (a *Auth) IsAuthenticated() bool {
	return a != nil && a.Token != ""
}

// TenantHeader is the header carrying the tenant identifier.
const TenantHeader = "X-Tenant-ID"
