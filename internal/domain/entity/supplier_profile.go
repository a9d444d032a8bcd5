package entity

// Claves de tenant_settings que componen el perfil del proveedor.
const (
	SettingPrefix                   = "myinvois."
	SettingSupplierTIN              = "myinvois.supplier_tin"
	SettingSupplierBRN              = "myinvois.supplier_brn"
	SettingSupplierRegistrationType = "myinvois.supplier_registration_type"
	SettingSupplierSST              = "myinvois.supplier_sst"
	SettingSupplierTourismTax       = "myinvois.supplier_ttx"
	SettingSupplierMSIC             = "myinvois.msic_code"
	SettingSupplierActivity         = "myinvois.business_activity"
	SettingSupplierName             = "myinvois.registered_name"
	SettingSupplierAddress1         = "myinvois.address_line1"
	SettingSupplierAddress2         = "myinvois.address_line2"
	SettingSupplierAddress3         = "myinvois.address_line3"
	SettingSupplierCity             = "myinvois.city"
	SettingSupplierPostalCode       = "myinvois.postal_code"
	SettingSupplierState            = "myinvois.state"
	SettingSupplierCountry          = "myinvois.country"
	SettingSupplierPhone            = "myinvois.phone"
	SettingSupplierEmail            = "myinvois.email"
	SettingSupplierBankAccount      = "myinvois.bank_account"
)

// SupplierProfile identidad fiscal del emisor, armada desde la configuración del tenant.
// TIN, MSICCode, BusinessActivity y RegisteredName son obligatorios: nunca se rellenan por defecto.
type SupplierProfile struct {
	TenantID         string
	TIN              string
	RegistrationType string // vacío = BRN
	BRN              string
	SSTNumber        string // vacío = "NA"
	TourismTaxNumber string // vacío = "NA"
	MSICCode         string
	BusinessActivity string
	RegisteredName   string
	Address          Address
	Phone            string
	Email            string
	BankAccount      string // cuenta del beneficiario para PaymentMeans
}

// SupplierProfileFromSettings arma el perfil a partir de los pares clave/valor del tenant.
// No valida: los campos obligatorios faltantes se reportan en la validación.
func SupplierProfileFromSettings(tenantID string, s map[string]string) *SupplierProfile {
	return &SupplierProfile{
		TenantID:         tenantID,
		TIN:              s[SettingSupplierTIN],
		RegistrationType: s[SettingSupplierRegistrationType],
		BRN:              s[SettingSupplierBRN],
		SSTNumber:        s[SettingSupplierSST],
		TourismTaxNumber: s[SettingSupplierTourismTax],
		MSICCode:         s[SettingSupplierMSIC],
		BusinessActivity: s[SettingSupplierActivity],
		RegisteredName:   s[SettingSupplierName],
		Address: Address{
			Line1:      s[SettingSupplierAddress1],
			Line2:      s[SettingSupplierAddress2],
			Line3:      s[SettingSupplierAddress3],
			City:       s[SettingSupplierCity],
			PostalCode: s[SettingSupplierPostalCode],
			State:      s[SettingSupplierState],
			Country:    s[SettingSupplierCountry],
		},
		Phone:       s[SettingSupplierPhone],
		Email:       s[SettingSupplierEmail],
		BankAccount: s[SettingSupplierBankAccount],
	}
}
