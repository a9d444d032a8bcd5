package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	"github.com/jhoicas/myinvois-api/internal/domain/repository"
)

var _ repository.InvoiceReader = (*InvoiceRepo)(nil)

// InvoiceRepo lectura de la factura comercial del ERP (cabecera, comprador y líneas).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// GetInvoice obtiene la factura con su comprador (si tiene) y sus líneas ordenadas.
func (r *InvoiceRepo) GetInvoice(ctx context.Context, tenantID, invoiceID string) (*entity.Invoice, error) {
	const query = `
		SELECT i.id, i.tenant_id, i.number, i.date, i.due_date, i.currency, i.exchange_rate,
		       i.subtotal, i.discount_amount, i.tax_amount, i.total_amount,
		       i.payment_mode, i.payment_terms, i.notes, i.created_at, i.updated_at,
		       c.id, c.code, c.name, c.tin, c.registration_type, c.registration_number, c.sst_number,
		       c.email, c.phone, c.address_line1, c.address_line2, c.address_line3,
		       c.city, c.postal_code, c.state, c.country
		FROM invoices i
		LEFT JOIN customers c ON c.id = i.customer_id
		WHERE i.tenant_id = $1 AND i.id = $2`

	var inv entity.Invoice
	var (
		custID                                                 *string
		code, name, tin, regType, regNumber, sst, email, phone *string
		line1, line2, line3, city, postalCode, state, country  *string
	)
	err := r.q.QueryRow(ctx, query, tenantID, invoiceID).Scan(
		&inv.ID, &inv.TenantID, &inv.Number, &inv.Date, &inv.DueDate, &inv.Currency, &inv.ExchangeRate,
		&inv.Subtotal, &inv.DiscountAmount, &inv.TaxAmount, &inv.TotalAmount,
		&inv.PaymentMode, &inv.PaymentTerms, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
		&custID, &code, &name, &tin, &regType, &regNumber, &sst,
		&email, &phone, &line1, &line2, &line3,
		&city, &postalCode, &state, &country,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("factura %s: %w", invoiceID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if custID != nil {
		inv.Customer = &entity.Customer{
			ID:                 *custID,
			TenantID:           inv.TenantID,
			Code:               derefStr(code),
			Name:               derefStr(name),
			TIN:                derefStr(tin),
			RegistrationType:   derefStr(regType),
			RegistrationNumber: derefStr(regNumber),
			SSTNumber:          derefStr(sst),
			Email:              derefStr(email),
			Phone:              derefStr(phone),
			Address: entity.Address{
				Line1: derefStr(line1), Line2: derefStr(line2), Line3: derefStr(line3),
				City: derefStr(city), PostalCode: derefStr(postalCode),
				State: derefStr(state), Country: derefStr(country),
			},
		}
	}

	lines, err := r.lines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return &inv, nil
}

func (r *InvoiceRepo) lines(ctx context.Context, invoiceID string) ([]*entity.InvoiceLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, product_id, product_code, description, category, unit,
		       quantity, unit_price, tax_type, tax_rate, tax_amount,
		       discount_amount, discount_rate, subtotal, total_amount, sort_order
		FROM invoice_lines WHERE invoice_id = $1
		ORDER BY sort_order, id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	defer rows.Close()

	var list []*entity.InvoiceLine
	for rows.Next() {
		var l entity.InvoiceLine
		if err := rows.Scan(
			&l.ID, &l.InvoiceID, &l.ProductID, &l.ProductCode, &l.Description, &l.Category, &l.Unit,
			&l.Quantity, &l.UnitPrice, &l.TaxType, &l.TaxRate, &l.TaxAmount,
			&l.DiscountAmount, &l.DiscountRate, &l.Subtotal, &l.TotalAmount, &l.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
