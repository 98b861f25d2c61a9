package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"ecommerce-platform/internal/models"
)

// TicketRepository handles purchase ticket data operations. Tickets are
// append-only: there are no update or delete paths.
type TicketRepository struct {
	db *sql.DB
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, code, purchase_datetime, amount, purchaser, user_id,
	payment_id, preference_id, external_reference, payment_status,
	currency, payment_method, installments, payer_email, receipt_url`

// Create persists a ticket and its line items in a single transaction.
// A unique violation on payment_id is surfaced as ErrDuplicateEntry so the
// reconciler can recover by reading back the existing ticket.
func (r *TicketRepository) Create(req *models.TicketCreateRequest) (*models.Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	purchasedAt := req.PurchaseDatetime
	if purchasedAt.IsZero() {
		purchasedAt = time.Now()
	}

	query := `
		INSERT INTO tickets (code, purchase_datetime, amount, purchaser, user_id,
			payment_id, preference_id, external_reference, payment_status,
			currency, payment_method, installments, payer_email, receipt_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	ticket := &models.Ticket{
		Code:              req.Code,
		PurchaseDatetime:  purchasedAt,
		Amount:            req.Amount,
		Purchaser:         req.Purchaser,
		UserID:            req.UserID,
		Items:             req.Items,
		PaymentID:         req.PaymentID,
		PreferenceID:      req.PreferenceID,
		ExternalReference: req.ExternalReference,
		PaymentStatus:     req.PaymentStatus,
		Currency:          req.Currency,
		PaymentMethod:     req.PaymentMethod,
		Installments:      req.Installments,
		PayerEmail:        req.PayerEmail,
		ReceiptURL:        req.ReceiptURL,
	}

	err = tx.QueryRow(
		query,
		req.Code,
		purchasedAt,
		req.Amount,
		req.Purchaser,
		req.UserID,
		nullString(req.PaymentID),
		nullString(req.PreferenceID),
		nullString(req.ExternalReference),
		nullString(req.PaymentStatus),
		nullString(req.Currency),
		nullString(req.PaymentMethod),
		req.Installments,
		nullString(req.PayerEmail),
		nullString(req.ReceiptURL),
	).Scan(&ticket.ID)

	if err != nil {
		if uniqueViolationOn(err, "tickets_payment_id_key") {
			return nil, fmt.Errorf("payment %s already recorded: %w", req.PaymentID, models.ErrDuplicateEntry)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("ticket code %s: %w", req.Code, models.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	for _, item := range req.Items {
		_, err := tx.Exec(
			`INSERT INTO ticket_items (ticket_id, product_id, quantity, unit_price, title)
			 VALUES ($1, $2, $3, $4, $5)`,
			ticket.ID, item.ProductID, item.Quantity, item.UnitPrice, item.Title,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create ticket item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ticket: %w", err)
	}

	return ticket, nil
}

// GetByID retrieves a ticket by ID
func (r *TicketRepository) GetByID(id int) (*models.Ticket, error) {
	return r.getOne(`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
}

// GetByCode retrieves a ticket by its unique code
func (r *TicketRepository) GetByCode(code string) (*models.Ticket, error) {
	return r.getOne(`SELECT `+ticketColumns+` FROM tickets WHERE code = $1`, code)
}

// GetByPaymentID retrieves the ticket recorded for an external payment id
func (r *TicketRepository) GetByPaymentID(paymentID string) (*models.Ticket, error) {
	return r.getOne(`SELECT `+ticketColumns+` FROM tickets WHERE payment_id = $1`, paymentID)
}

// FindExistingForPayment looks for a ticket already recorded under any of
// the payment's identifiers (payment id or preference id). Gateways can
// report the same logical purchase through more than one field, so matching
// on a single identifier is not sufficient.
func (r *TicketRepository) FindExistingForPayment(paymentID, preferenceID string) (*models.Ticket, error) {
	clauses := ""
	args := []interface{}{}
	if paymentID != "" {
		args = append(args, paymentID)
		clauses = fmt.Sprintf("payment_id = $%d", len(args))
	}
	if preferenceID != "" {
		args = append(args, preferenceID)
		if clauses != "" {
			clauses += " OR "
		}
		clauses += fmt.Sprintf("preference_id = $%d", len(args))
	}
	if clauses == "" {
		return nil, models.ErrTicketNotFound
	}

	return r.getOne(`SELECT `+ticketColumns+` FROM tickets WHERE `+clauses+` ORDER BY id LIMIT 1`, args...)
}

// GetByExternalReference retrieves tickets tied to an external reference
// (normally the cart id carried through the payment gateway).
func (r *TicketRepository) GetByExternalReference(ref string) ([]*models.Ticket, error) {
	return r.getMany(`SELECT `+ticketColumns+` FROM tickets WHERE external_reference = $1 ORDER BY id`, ref)
}

// GetByPurchaser retrieves tickets owned by the given purchaser identity
func (r *TicketRepository) GetByPurchaser(email string, userID int) ([]*models.Ticket, error) {
	clauses := ""
	args := []interface{}{}
	if userID != 0 {
		args = append(args, userID)
		clauses = fmt.Sprintf("user_id = $%d", len(args))
	}
	if email != "" {
		args = append(args, email)
		if clauses != "" {
			clauses += " OR "
		}
		clauses += fmt.Sprintf("purchaser = $%d OR payer_email = $%d", len(args), len(args))
	}
	if clauses == "" {
		return nil, nil
	}

	return r.getMany(`SELECT `+ticketColumns+` FROM tickets WHERE `+clauses+` ORDER BY purchase_datetime DESC`, args...)
}

func (r *TicketRepository) getOne(query string, args ...interface{}) (*models.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	if err := r.loadItems(ticket); err != nil {
		return nil, err
	}

	return ticket, nil
}

func (r *TicketRepository) getMany(query string, args ...interface{}) ([]*models.Ticket, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, ticket := range tickets {
		if err := r.loadItems(ticket); err != nil {
			return nil, err
		}
	}

	return tickets, nil
}

func (r *TicketRepository) loadItems(ticket *models.Ticket) error {
	rows, err := r.db.Query(
		`SELECT product_id, quantity, unit_price, title FROM ticket_items WHERE ticket_id = $1 ORDER BY product_id`,
		ticket.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get ticket items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item := models.TicketItem{}
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice, &item.Title); err != nil {
			return fmt.Errorf("failed to scan ticket item: %w", err)
		}
		ticket.Items = append(ticket.Items, item)
	}

	return rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row scanner) (*models.Ticket, error) {
	ticket := &models.Ticket{}
	var (
		userID        sql.NullInt64
		paymentID     sql.NullString
		preferenceID  sql.NullString
		externalRef   sql.NullString
		paymentStatus sql.NullString
		currency      sql.NullString
		paymentMethod sql.NullString
		installments  sql.NullInt64
		payerEmail    sql.NullString
		receiptURL    sql.NullString
	)

	err := row.Scan(
		&ticket.ID,
		&ticket.Code,
		&ticket.PurchaseDatetime,
		&ticket.Amount,
		&ticket.Purchaser,
		&userID,
		&paymentID,
		&preferenceID,
		&externalRef,
		&paymentStatus,
		&currency,
		&paymentMethod,
		&installments,
		&payerEmail,
		&receiptURL,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		id := int(userID.Int64)
		ticket.UserID = &id
	}
	ticket.PaymentID = paymentID.String
	ticket.PreferenceID = preferenceID.String
	ticket.ExternalReference = externalRef.String
	ticket.PaymentStatus = paymentStatus.String
	ticket.Currency = currency.String
	ticket.PaymentMethod = paymentMethod.String
	ticket.Installments = int(installments.Int64)
	ticket.PayerEmail = payerEmail.String
	ticket.ReceiptURL = receiptURL.String

	return ticket, nil
}

// nullString maps "" to NULL so sparse unique indexes are not tripped by
// empty strings.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
