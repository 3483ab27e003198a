package services

import "strings"

// Keys mirror the document paths: users/{uid}, users/{uid}/library, ...
const (
	KeyUser                  = "users/%s"
	KeyUserLibrary           = "users/%s/library"
	KeyUserWishlist          = "users/%s/wishlist"
	KeyUserApplications      = "users/%s/developer_applications"
	KeyGame                  = "games/%s"
	KeyGamesIndex            = "games:index"
	KeySales                 = "sales"
	KeySalesIndex            = "sales:index"
	KeyNonce                 = "nonces/%s"
	KeyAdminMessages         = "admin_messages"
	KeyAdminMessagesIndex    = "admin_messages:index"
	KeyPendingApplications   = "developer_applications:pending"
	KeyPermissionDiagnostics = "diagnostics:permission_denied"
	KeyRateLimit             = "ratelimit:%s:%s"
	ChannelUserEvents        = "events:user:%s"

	DefaultListLimit = 50
	MaxListLimit     = 500
)

// NormalizeAddress is how wallet addresses are keyed: lower-cased hex with the
// 0x prefix.
func NormalizeAddress(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	if address != "" && !strings.HasPrefix(address, "0x") {
		address = "0x" + address
	}
	return address
}

func splitApplicationMember(member string) (string, string, bool) {
	userID, appID, ok := strings.Cut(member, "/")
	if !ok || userID == "" || appID == "" {
		return "", "", false
	}
	return userID, appID, true
}

func clampLimit(limit int64) int64 {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
