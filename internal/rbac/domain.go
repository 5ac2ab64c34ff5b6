package rbac

import "time"

// Role groups a set of permissions.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission names a single guarded capability, e.g. "inventory.adjust".
type Permission struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Well-known permission names used across the application.
const (
	PermInventoryView   = "inventory.view"
	PermInventoryAdjust = "inventory.adjust"
	PermQuotesView      = "quotes.view"
	PermQuotesEdit      = "quotes.edit"
	PermQuotesApprove   = "quotes.approve"
	PermInvoicesView    = "invoices.view"
	PermInvoicesEdit    = "invoices.edit"
	PermFinanceView     = "finance.view"
	PermPayrollView     = "payroll.view"
	PermPayrollEdit     = "payroll.edit"
	PermSuppliersView   = "suppliers.view"
	PermSuppliersEdit   = "suppliers.edit"
	PermSalesEdit       = "sales.edit"
	PermPurchasesEdit   = "purchases.edit"
	PermAdmin           = "admin"
)
