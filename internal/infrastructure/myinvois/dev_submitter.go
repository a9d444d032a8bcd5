package myinvois

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DevSubmitter simula MyInvois en modo dev: acepta todo documento y lo da por válido.
// No hace llamadas de red.
type DevSubmitter struct {
	mu   sync.Mutex
	now  func() time.Time
	docs map[string]*DocumentDetails
}

// NewDevSubmitter crea el simulador. now puede ser nil (time.Now).
func NewDevSubmitter(now func() time.Time) *DevSubmitter {
	if now == nil {
		now = time.Now
	}
	return &DevSubmitter{now: now, docs: make(map[string]*DocumentDetails)}
}

func (d *DevSubmitter) SubmitDocuments(_ context.Context, docs []SubmitDocument) (*SubmissionResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := &SubmissionResponse{SubmissionUID: mockID("SUB")}
	validated := d.now().UTC()
	for _, doc := range docs {
		id := mockID("DOC")
		out.AcceptedDocuments = append(out.AcceptedDocuments, AcceptedDocument{UUID: id, InvoiceCodeNumber: doc.CodeNumber})
		d.docs[id] = &DocumentDetails{
			UUID:              id,
			SubmissionUID:     out.SubmissionUID,
			LongID:            mockID("LONG"),
			InternalID:        doc.CodeNumber,
			Status:            "Valid",
			DateTimeValidated: &validated,
		}
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return out, nil
}

func (d *DevSubmitter) GetDocumentDetails(_ context.Context, id string) (*DocumentDetails, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.docs[id]
	if !ok {
		return nil, &APIError{StatusCode: 404, Code: "NotFound", Message: fmt.Sprintf("documento %s no existe (dev)", id)}
	}
	cp := *doc
	raw, err := json.Marshal(cp)
	if err != nil {
		return nil, err
	}
	cp.Raw = raw
	return &cp, nil
}

func (d *DevSubmitter) CancelDocument(_ context.Context, id, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.docs[id]
	if !ok {
		return &APIError{StatusCode: 404, Code: "NotFound", Message: fmt.Sprintf("documento %s no existe (dev)", id)}
	}
	doc.Status = "Cancelled"
	return nil
}

// mockID identificador de 26 caracteres como los de LHDN, con prefijo reconocible.
func mockID(prefix string) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "MOCK" + prefix + raw[:26-4-len(prefix)]
}
