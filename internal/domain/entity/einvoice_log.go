package entity

import "time"

// Acciones registradas en la bitácora de la e-Invoice.
const (
	LogActionCreate        = "create"
	LogActionBuild         = "build"
	LogActionSubmitPending = "submit_pending"
	LogActionSubmit        = "submit"
	LogActionRetry         = "retry"
	LogActionSync          = "sync"
	LogActionCancel        = "cancel"
)

// Códigos de error propios (los de LHDN se guardan tal cual).
const (
	ErrorCodeSubmission = "SUBMISSION_ERROR"
	ErrorCodeCancel     = "CANCEL_ERROR"
)

// EInvoiceLog entrada de solo-anexar por cada acción que cambia (o intenta cambiar) el estado.
// Nunca se modifica ni se elimina.
type EInvoiceLog struct {
	ID           string
	TenantID     string
	EInvoiceID   string
	Action       string
	Status       EInvoiceStatus // estado resultante
	Message      string
	ResponseJSON string
	ErrorCode    string
	ErrorMessage string
	CreatedAt    time.Time
}
