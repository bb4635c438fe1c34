package constants

// Static route constants
const (
	PublicRoute   = "/"
	LoginRoute    = "/login"
	RegisterRoute = "/register"
	CheckoutRoute = "/checkout"
	InvoicesRoute = "/invoices"
)
