package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	"github.com/jhoicas/myinvois-api/internal/domain/repository"
)

var _ repository.EInvoiceRepository = (*EInvoiceRepo)(nil)

const einvoiceColumns = `
	id, tenant_id, invoice_id, invoice_type, status, version,
	lhdn_uuid, lhdn_long_id, lhdn_submission_uid,
	document_format, request_document, document_hash, response_json,
	error_code, error_message, validation_errors,
	retry_count, last_retry_at, submitted_at, validated_at, cancelled_at, rejected_at,
	cancel_reason, original_einvoice_id, invoice_number, currency, total_amount,
	created_at, updated_at, submitted_digest`

// EInvoiceRepo implementación PostgreSQL de EInvoiceRepository.
// Las escrituras de estado van en transacción junto con su entrada de bitácora.
type EInvoiceRepo struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewEInvoiceRepository construye el adaptador.
func NewEInvoiceRepository(pool *pgxpool.Pool) *EInvoiceRepo {
	return &EInvoiceRepo{pool: pool, tx: NewTxRunner(pool)}
}

func (r *EInvoiceRepo) Create(ctx context.Context, einv *entity.EInvoice, items []*entity.EInvoiceItem, log *entity.EInvoiceLog) error {
	return r.tx.Run(ctx, func(q Querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO einvoices (`+einvoiceColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30)`,
			einv.ID, einv.TenantID, einv.InvoiceID, einv.InvoiceType, einv.Status, einv.Version,
			einv.LhdnUUID, einv.LhdnLongID, einv.LhdnSubmissionUID,
			einv.DocumentFormat, einv.RequestDocument, einv.DocumentHash, einv.ResponseJSON,
			einv.ErrorCode, einv.ErrorMessage, einv.ValidationErrors,
			einv.RetryCount, utcPtr(einv.LastRetryAt), utcPtr(einv.SubmittedAt), utcPtr(einv.ValidatedAt),
			utcPtr(einv.CancelledAt), utcPtr(einv.RejectedAt),
			einv.CancelReason, nullIfEmpty(einv.OriginalEInvoiceID), einv.InvoiceNumber, einv.Currency, einv.TotalAmount,
			einv.CreatedAt.UTC(), einv.UpdatedAt.UTC(), einv.SubmittedDigest,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("factura %s ya tiene una e-invoice activa: %w", einv.InvoiceID, domain.ErrConflict)
			}
			return fmt.Errorf("insert einvoice: %w", err)
		}

		for _, it := range items {
			_, err := q.Exec(ctx, `
				INSERT INTO einvoice_items (id, einvoice_id, product_id, product_code, description, classification_code,
					quantity, unit_code, unit_price, tax_type, tax_rate, tax_amount, subtotal,
					discount_amount, discount_rate, total_amount, sort_order)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
				it.ID, einv.ID, it.ProductID, it.ProductCode, it.Description, it.ClassificationCode,
				it.Quantity, it.UnitCode, it.UnitPrice, it.TaxType, it.TaxRate, it.TaxAmount, it.Subtotal,
				it.DiscountAmount, it.DiscountRate, it.TotalAmount, it.SortOrder,
			)
			if err != nil {
				return fmt.Errorf("insert einvoice item: %w", err)
			}
		}
		if log != nil {
			return insertLog(ctx, q, log)
		}
		return nil
	})
}

func (r *EInvoiceRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.EInvoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+einvoiceColumns+` FROM einvoices WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	einv, err := scanEInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("e-invoice %s: %w", id, domain.ErrNotFound)
	}
	return einv, err
}

func (r *EInvoiceRepo) GetByInvoiceID(ctx context.Context, tenantID, invoiceID string) (*entity.EInvoice, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+einvoiceColumns+` FROM einvoices
		WHERE tenant_id = $1 AND invoice_id = $2
		ORDER BY created_at DESC, id DESC LIMIT 1`, tenantID, invoiceID)
	einv, err := scanEInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("e-invoice de la factura %s: %w", invoiceID, domain.ErrNotFound)
	}
	return einv, err
}

func (r *EInvoiceRepo) FindActiveByInvoiceID(ctx context.Context, tenantID, invoiceID string) (*entity.EInvoice, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+einvoiceColumns+` FROM einvoices
		WHERE tenant_id = $1 AND invoice_id = $2 AND status NOT IN ('CANCELLED', 'REJECTED', 'ERROR')
		LIMIT 1`, tenantID, invoiceID)
	einv, err := scanEInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("e-invoice activa de la factura %s: %w", invoiceID, domain.ErrNotFound)
	}
	return einv, err
}

func (r *EInvoiceRepo) GetItems(ctx context.Context, tenantID, einvoiceID string) ([]*entity.EInvoiceItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.einvoice_id, i.product_id, i.product_code, i.description, i.classification_code,
		       i.quantity, i.unit_code, i.unit_price, i.tax_type, i.tax_rate, i.tax_amount, i.subtotal,
		       i.discount_amount, i.discount_rate, i.total_amount, i.sort_order
		FROM einvoice_items i
		JOIN einvoices e ON e.id = i.einvoice_id
		WHERE e.tenant_id = $1 AND i.einvoice_id = $2
		ORDER BY i.sort_order, i.id`, tenantID, einvoiceID)
	if err != nil {
		return nil, fmt.Errorf("list einvoice items: %w", err)
	}
	defer rows.Close()

	var out []*entity.EInvoiceItem
	for rows.Next() {
		var it entity.EInvoiceItem
		if err := rows.Scan(
			&it.ID, &it.EInvoiceID, &it.ProductID, &it.ProductCode, &it.Description, &it.ClassificationCode,
			&it.Quantity, &it.UnitCode, &it.UnitPrice, &it.TaxType, &it.TaxRate, &it.TaxAmount, &it.Subtotal,
			&it.DiscountAmount, &it.DiscountRate, &it.TotalAmount, &it.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("scan einvoice item: %w", err)
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

// UpdateIfCurrent UPDATE ... WHERE status = expected AND version = einv.Version; 0 filas = perdió la carrera.
func (r *EInvoiceRepo) UpdateIfCurrent(ctx context.Context, einv *entity.EInvoice, expected entity.EInvoiceStatus, log *entity.EInvoiceLog) (bool, error) {
	written := false
	err := r.tx.Run(ctx, func(q Querier) error {
		tag, err := q.Exec(ctx, `
			UPDATE einvoices SET
				status = $5, version = version + 1,
				lhdn_uuid = $6, lhdn_long_id = $7, lhdn_submission_uid = $8,
				document_format = $9, request_document = $10, document_hash = $11, response_json = $12,
				error_code = $13, error_message = $14, validation_errors = $15,
				retry_count = $16, last_retry_at = $17, submitted_at = $18, validated_at = $19,
				cancelled_at = $20, rejected_at = $21, cancel_reason = $22, updated_at = $23,
				submitted_digest = $24
			WHERE id = $1 AND tenant_id = $2 AND status = $3 AND version = $4`,
			einv.ID, einv.TenantID, expected, einv.Version,
			einv.Status,
			einv.LhdnUUID, einv.LhdnLongID, einv.LhdnSubmissionUID,
			einv.DocumentFormat, einv.RequestDocument, einv.DocumentHash, einv.ResponseJSON,
			einv.ErrorCode, einv.ErrorMessage, einv.ValidationErrors,
			einv.RetryCount, utcPtr(einv.LastRetryAt), utcPtr(einv.SubmittedAt), utcPtr(einv.ValidatedAt),
			utcPtr(einv.CancelledAt), utcPtr(einv.RejectedAt), einv.CancelReason, einv.UpdatedAt.UTC(),
			einv.SubmittedDigest,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("factura %s ya tiene una e-invoice activa: %w", einv.InvoiceID, domain.ErrConflict)
			}
			return fmt.Errorf("update einvoice: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if log != nil {
			if err := insertLog(ctx, q, log); err != nil {
				return err
			}
		}
		written = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if written {
		einv.Version++
	}
	return written, nil
}

func (r *EInvoiceRepo) AppendLog(ctx context.Context, log *entity.EInvoiceLog) error {
	return insertLog(ctx, r.pool, log)
}

func (r *EInvoiceRepo) ListLogs(ctx context.Context, tenantID, einvoiceID string) ([]*entity.EInvoiceLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, einvoice_id, action, status, message, response_json, error_code, error_message, created_at
		FROM einvoice_logs
		WHERE tenant_id = $1 AND einvoice_id = $2
		ORDER BY seq`, tenantID, einvoiceID)
	if err != nil {
		return nil, fmt.Errorf("list einvoice logs: %w", err)
	}
	defer rows.Close()

	var out []*entity.EInvoiceLog
	for rows.Next() {
		var l entity.EInvoiceLog
		if err := rows.Scan(&l.ID, &l.TenantID, &l.EInvoiceID, &l.Action, &l.Status, &l.Message,
			&l.ResponseJSON, &l.ErrorCode, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan einvoice log: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (r *EInvoiceRepo) List(ctx context.Context, tenantID string, f entity.EInvoiceFilter, page, pageSize int) (*entity.EInvoicePage, error) {
	where, args := filterClause(tenantID, f)

	out := &entity.EInvoicePage{Page: page, PageSize: pageSize, Items: []*entity.EInvoice{}}
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM einvoices WHERE `+where, args...).Scan(&out.Total); err != nil {
		return nil, fmt.Errorf("count einvoices: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM einvoices WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, einvoiceColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("list einvoices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		einv, err := scanEInvoice(rows)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, einv)
	}
	return out, rows.Err()
}

func (r *EInvoiceRepo) CountByStatus(ctx context.Context, tenantID string) (entity.StatusSummary, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM einvoices WHERE tenant_id = $1 GROUP BY status`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count einvoices by status: %w", err)
	}
	defer rows.Close()

	sum := make(entity.StatusSummary, len(entity.AllEInvoiceStatuses))
	for _, st := range entity.AllEInvoiceStatuses {
		sum[st] = 0
	}
	for rows.Next() {
		var st entity.EInvoiceStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		sum[st] = n
	}
	return sum, rows.Err()
}

func (r *EInvoiceRepo) ListByStatus(ctx context.Context, tenantID string, status entity.EInvoiceStatus, limit int) ([]*entity.EInvoice, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+einvoiceColumns+` FROM einvoices
		WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at, id
		LIMIT $3`, tenantID, status, lim)
	if err != nil {
		return nil, fmt.Errorf("list einvoices by status: %w", err)
	}
	defer rows.Close()

	var out []*entity.EInvoice
	for rows.Next() {
		einv, err := scanEInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, einv)
	}
	return out, rows.Err()
}

// ── helpers privados ─────────────────────────────────────────────────────────

func insertLog(ctx context.Context, q Querier, l *entity.EInvoiceLog) error {
	_, err := q.Exec(ctx, `
		INSERT INTO einvoice_logs (id, tenant_id, einvoice_id, action, status, message, response_json, error_code, error_message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		l.ID, l.TenantID, l.EInvoiceID, l.Action, l.Status, l.Message, l.ResponseJSON, l.ErrorCode, l.ErrorMessage, l.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert einvoice log: %w", err)
	}
	return nil
}

func scanEInvoice(row pgx.Row) (*entity.EInvoice, error) {
	var e entity.EInvoice
	var original *string
	err := row.Scan(
		&e.ID, &e.TenantID, &e.InvoiceID, &e.InvoiceType, &e.Status, &e.Version,
		&e.LhdnUUID, &e.LhdnLongID, &e.LhdnSubmissionUID,
		&e.DocumentFormat, &e.RequestDocument, &e.DocumentHash, &e.ResponseJSON,
		&e.ErrorCode, &e.ErrorMessage, &e.ValidationErrors,
		&e.RetryCount, &e.LastRetryAt, &e.SubmittedAt, &e.ValidatedAt, &e.CancelledAt, &e.RejectedAt,
		&e.CancelReason, &original, &e.InvoiceNumber, &e.Currency, &e.TotalAmount,
		&e.CreatedAt, &e.UpdatedAt, &e.SubmittedDigest,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan einvoice: %w", err)
	}
	e.OriginalEInvoiceID = derefStr(original)
	return &e, nil
}

// filterClause arma el WHERE del listado con argumentos posicionales.
func filterClause(tenantID string, f entity.EInvoiceFilter) (string, []any) {
	conds := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.InvoiceType != "" {
		add("invoice_type = $%d", f.InvoiceType)
	}
	if f.InvoiceID != "" {
		add("invoice_id = $%d", f.InvoiceID)
	}
	if f.From != nil {
		add("created_at >= $%d", f.From.UTC())
	}
	if f.To != nil {
		add("created_at < $%d", f.To.UTC())
	}
	return strings.Join(conds, " AND "), args
}
