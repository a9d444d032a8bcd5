package entity

// Address dirección postal (proveedor o comprador).
type Address struct {
	Line1      string
	Line2      string
	Line3      string
	City       string
	PostalCode string
	State      string // nombre o código de estado malasio
	Country    string // ISO 3166-1 alpha-3; vacío = MYS
}

// Customer comprador de la factura.
type Customer struct {
	ID                 string
	TenantID           string
	Code               string // código interno; no se usa como identificación fiscal
	Name               string
	TIN                string // vacío = comprador no registrado (se usa el TIN genérico LHDN)
	RegistrationType   string // BRN, NRIC, PASSPORT, ARMY; vacío = BRN
	RegistrationNumber string // vacío = "NA"
	SSTNumber          string
	Email              string
	Phone              string
	Address            Address
}
