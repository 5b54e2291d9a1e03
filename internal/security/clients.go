package security

// In-memory client registry (replace with DB/config later)
type Client struct {
	ID      string
	Secret  string
	Perms   []string // e.g. {"orders.read","orders.write"}
	Enabled bool
}

const (
	PermOrdersRead    = "orders.read"
	PermOrdersWrite   = "orders.write"
	PermOrdersAdmin   = "orders.admin"
	PermPaymentsWrite = "payments.write"
)

var Clients = map[string]Client{
	"storefront":    {ID: "storefront", Secret: "storefront-secret", Perms: []string{PermOrdersRead, PermOrdersWrite, PermPaymentsWrite}, Enabled: true},
	"admin-console": {ID: "admin-console", Secret: "admin-secret", Perms: []string{PermOrdersRead, PermOrdersWrite, PermOrdersAdmin, PermPaymentsWrite}, Enabled: true},
	"svc-analytics": {ID: "svc-analytics", Secret: "ana-secret", Perms: []string{PermOrdersRead}, Enabled: true},
}
