package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ecommerce-platform/internal/models"
)

// amountTolerance is the largest difference between the paid amount and
// the amount recomputed from fulfilled lines that still counts as equal.
const amountTolerance = 0.01

// PurchaseItem is a fulfillable cart line with its price and title
// snapshotted at reconciliation time.
type PurchaseItem struct {
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Title     string  `json:"title"`
}

// Subtotal returns the line total for this item
func (i PurchaseItem) Subtotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// PurchaseResult reports the outcome of reconciling a cart into a ticket.
// Ticket is nil when nothing was fulfillable or when reconciliation
// aborted; NotPurchasedIDs lists the products left behind in the cart.
type PurchaseResult struct {
	Ticket           *models.Ticket `json:"ticket,omitempty"`
	PurchasedItems   []PurchaseItem `json:"purchased_items"`
	NotPurchasedIDs  []int          `json:"not_purchased_ids"`
	TotalAmount      float64        `json:"total_amount"`
	CartID           int            `json:"cart_id"`
	AlreadyProcessed bool           `json:"already_processed,omitempty"`
	AmountMismatch   bool           `json:"amount_mismatch,omitempty"`
	PaidAmount       float64        `json:"paid_amount,omitempty"`
	EmailTarget      string         `json:"-"`
}

// PurchaseService turns cart contents into immutable tickets. It is the
// single writer for stock debits and ticket minting, for both the direct
// checkout path and the payment webhook path.
type PurchaseService struct {
	products ProductRepository
	carts    CartRepository
	tickets  TicketRepository
	users    UserRepository
	email    NotificationService
	sms      SMSService

	adminPhone string
}

func NewPurchaseService(products ProductRepository, carts CartRepository, tickets TicketRepository, users UserRepository, email NotificationService, sms SMSService, adminPhone string) *PurchaseService {
	return &PurchaseService{
		products:   products,
		carts:      carts,
		tickets:    tickets,
		users:      users,
		email:      email,
		sms:        sms,
		adminPhone: adminPhone,
	}
}

// ProcessCartPurchase reconciles a cart directly, without a gateway
// payment: it debits stock for every fulfillable line, mints a ticket for
// what was debited and rewrites the cart down to the leftovers.
func (s *PurchaseService) ProcessCartPurchase(cartID int, purchaserEmail string, userID *int) (*PurchaseResult, error) {
	cart, err := s.loadCart(cartID)
	if err != nil {
		return nil, err
	}

	items, notPurchased := s.buildPurchaseItems(cart)
	if len(items) == 0 {
		return &PurchaseResult{
			PurchasedItems:  []PurchaseItem{},
			NotPurchasedIDs: notPurchased,
			CartID:          cartID,
		}, nil
	}

	debited, failed := s.debitStock(items)
	notPurchased = append(notPurchased, failed...)
	if len(debited) == 0 {
		s.rewriteCart(cart, notPurchased)
		return &PurchaseResult{
			PurchasedItems:  []PurchaseItem{},
			NotPurchasedIDs: notPurchased,
			CartID:          cartID,
		}, nil
	}

	amount := totalAmount(debited)
	purchaser := purchaserEmail
	if purchaser == "" {
		purchaser = models.PurchaserUnknown
	}

	ticket, _, err := s.createTicketSafe(&models.TicketCreateRequest{
		Code:              uuid.New().String(),
		PurchaseDatetime:  time.Now().UTC(),
		Amount:            amount,
		Purchaser:         purchaser,
		UserID:            userID,
		ExternalReference: strconv.Itoa(cartID),
		Items:             ticketItems(debited),
	})
	if err != nil {
		s.compensateStock(debited)
		return nil, fmt.Errorf("creating ticket for cart %d: %w", cartID, err)
	}

	s.rewriteCart(cart, notPurchased)

	result := &PurchaseResult{
		Ticket:          ticket,
		PurchasedItems:  debited,
		NotPurchasedIDs: notPurchased,
		TotalAmount:     amount,
		CartID:          cartID,
		EmailTarget:     purchaserEmail,
	}
	s.dispatchNotifications(result)
	return result, nil
}

// ProcessPaymentNotification reconciles a cart against an approved gateway
// payment. It is safe to call any number of times for the same payment:
// replays and late duplicates resolve to the already-minted ticket.
func (s *PurchaseService) ProcessPaymentNotification(payment *PaymentConfirmation) (*PurchaseResult, error) {
	if err := payment.Validate(); err != nil {
		return nil, fmt.Errorf("payment %s: %w", payment.ID, err)
	}

	cartID, err := strconv.Atoi(payment.CartReference())
	if err != nil {
		return nil, fmt.Errorf("payment %s has cart reference %q: %w", payment.ID, payment.CartReference(), models.ErrInvalidInput)
	}

	if existing, err := s.tickets.GetByPaymentID(payment.ID); err == nil {
		return alreadyProcessed(existing, cartID), nil
	} else if !errors.Is(err, models.ErrTicketNotFound) {
		return nil, fmt.Errorf("looking up payment %s: %w", payment.ID, err)
	}

	if existing, err := s.tickets.FindExistingForPayment(payment.ID, payment.PreferenceID); err == nil {
		return alreadyProcessed(existing, cartID), nil
	} else if !errors.Is(err, models.ErrTicketNotFound) {
		return nil, fmt.Errorf("looking up preference %s: %w", payment.PreferenceID, err)
	}

	cart, err := s.loadCart(cartID)
	if err != nil {
		return nil, err
	}

	// Catches the window where the cart survived a prior reconciliation's
	// best-effort rewrite: a ticket for this cart means the work is done.
	if prior, err := s.tickets.GetByExternalReference(strconv.Itoa(cartID)); err == nil && len(prior) > 0 {
		return alreadyProcessed(prior[0], cartID), nil
	}

	items, notPurchased := s.buildPurchaseItems(cart)
	if len(items) == 0 {
		return &PurchaseResult{
			PurchasedItems:  []PurchaseItem{},
			NotPurchasedIDs: notPurchased,
			CartID:          cartID,
			PaidAmount:      payment.TransactionAmount,
		}, nil
	}

	debited, failed := s.debitStock(items)
	notPurchased = append(notPurchased, failed...)
	if len(debited) == 0 {
		s.rewriteCart(cart, notPurchased)
		return &PurchaseResult{
			PurchasedItems:  []PurchaseItem{},
			NotPurchasedIDs: notPurchased,
			CartID:          cartID,
			PaidAmount:      payment.TransactionAmount,
		}, nil
	}

	amount := totalAmount(debited)
	if amount <= 0 && payment.TransactionAmount > 0 {
		amount = payment.TransactionAmount
	}

	if payment.TransactionAmount > 0 && math.Abs(amount-payment.TransactionAmount) > amountTolerance {
		log.Printf("WARN: payment %s paid %.2f but cart %d fulfills to %.2f, aborting", payment.ID, payment.TransactionAmount, cartID, amount)
		s.compensateStock(debited)
		return &PurchaseResult{
			PurchasedItems:  []PurchaseItem{},
			NotPurchasedIDs: notPurchased,
			TotalAmount:     amount,
			CartID:          cartID,
			AmountMismatch:  true,
			PaidAmount:      payment.TransactionAmount,
		}, nil
	}

	identity := s.resolvePurchaser(cartID, payment)

	ticket, recovered, err := s.createTicketSafe(&models.TicketCreateRequest{
		Code:              uuid.New().String(),
		PurchaseDatetime:  paymentTime(payment),
		Amount:            amount,
		Purchaser:         identity.purchaser,
		UserID:            identity.userID,
		PaymentID:         payment.ID,
		PreferenceID:      payment.PreferenceID,
		ExternalReference: strconv.Itoa(cartID),
		PaymentStatus:     payment.Status,
		Currency:          payment.Currency,
		PaymentMethod:     payment.PaymentMethod,
		Installments:      payment.Installments,
		PayerEmail:        payment.PayerEmail,
		ReceiptURL:        payment.ReceiptURL,
		Items:             ticketItems(debited),
	})
	if err != nil {
		s.compensateStock(debited)
		return nil, fmt.Errorf("creating ticket for payment %s: %w", payment.ID, err)
	}
	if recovered {
		// A concurrent delivery of this payment won the insert race and
		// already debited the cart's stock; ours must not stand too.
		s.compensateStock(debited)
		return alreadyProcessed(ticket, cartID), nil
	}

	s.rewriteCart(cart, notPurchased)

	result := &PurchaseResult{
		Ticket:          ticket,
		PurchasedItems:  debited,
		NotPurchasedIDs: notPurchased,
		TotalAmount:     amount,
		CartID:          cartID,
		PaidAmount:      payment.TransactionAmount,
		EmailTarget:     identity.emailTarget,
	}
	s.dispatchNotifications(result)
	return result, nil
}

type purchaserIdentity struct {
	purchaser   string
	userID      *int
	emailTarget string
}

// resolvePurchaser works out who bought the cart, in priority order:
// platform identity carried in the preference metadata, then the platform
// user the cart belongs to, then the gateway payer email.
func (s *PurchaseService) resolvePurchaser(cartID int, payment *PaymentConfirmation) purchaserIdentity {
	email := payment.Metadata[MetadataUserEmail]
	var userID *int
	if raw := payment.Metadata[MetadataUserID]; raw != "" {
		if id, err := strconv.Atoi(raw); err == nil {
			userID = &id
		}
	}

	if email == "" || userID == nil {
		if user, err := s.users.GetByCartID(cartID); err == nil {
			if email == "" {
				email = user.Email
			}
			if userID == nil {
				userID = &user.ID
			}
		}
	}

	purchaser := email
	if purchaser == "" {
		purchaser = payment.Metadata[MetadataBuyerEmail]
	}
	if purchaser == "" {
		purchaser = payment.PayerEmail
	}
	if purchaser == "" {
		purchaser = models.PurchaserUnknown
	}

	target := email
	if target == "" {
		target = payment.Metadata[MetadataBuyerEmail]
	}
	if target == "" {
		target = payment.PayerEmail
	}

	return purchaserIdentity{purchaser: purchaser, userID: userID, emailTarget: target}
}

func (s *PurchaseService) loadCart(cartID int) (*models.Cart, error) {
	cart, err := s.carts.GetByID(cartID)
	if err != nil {
		return nil, fmt.Errorf("loading cart %d: %w", cartID, err)
	}
	if cart.IsEmpty() {
		return nil, fmt.Errorf("cart %d: %w", cartID, models.ErrCartEmpty)
	}
	return cart, nil
}

// buildPurchaseItems resolves every cart line against the current catalog.
// Lines whose product cannot be resolved go to the unfulfilled list; a
// single bad line never fails the whole cart.
func (s *PurchaseService) buildPurchaseItems(cart *models.Cart) ([]PurchaseItem, []int) {
	var items []PurchaseItem
	var notPurchased []int
	seen := make(map[int]int) // product id -> index into items

	for _, line := range cart.Items {
		if line.Quantity <= 0 {
			continue
		}
		product, err := s.products.GetByID(line.ProductID)
		if err != nil {
			log.Printf("WARN: cart %d references product %d: %v", cart.ID, line.ProductID, err)
			notPurchased = append(notPurchased, line.ProductID)
			continue
		}
		if idx, ok := seen[product.ID]; ok {
			items[idx].Quantity += line.Quantity
			continue
		}
		seen[product.ID] = len(items)
		items = append(items, PurchaseItem{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
			Title:     product.Title,
		})
	}
	return items, notPurchased
}

// debitStock attempts the atomic stock decrement for every line. Items
// whose debit fails are dropped from the fulfilled set rather than
// failing the purchase.
func (s *PurchaseService) debitStock(items []PurchaseItem) ([]PurchaseItem, []int) {
	var debited []PurchaseItem
	var failed []int
	for _, item := range items {
		if _, err := s.products.AdjustStock(item.ProductID, -item.Quantity); err != nil {
			log.Printf("WARN: could not debit %d x product %d: %v", item.Quantity, item.ProductID, err)
			failed = append(failed, item.ProductID)
			continue
		}
		debited = append(debited, item)
	}
	return debited, failed
}

// compensateStock re-credits debits that must not stand, after an aborted
// reconciliation. Failures are logged for operator review; there is no
// further retry here.
func (s *PurchaseService) compensateStock(debited []PurchaseItem) {
	for _, item := range debited {
		if _, err := s.products.AdjustStock(item.ProductID, item.Quantity); err != nil {
			log.Printf("ERROR: could not restore %d x product %d after aborted purchase: %v", item.Quantity, item.ProductID, err)
		}
	}
}

// createTicketSafe creates the ticket, recovering the existing one when a
// concurrent reconciliation of the same payment won the unique race.
// recovered is true when the returned ticket was minted by the winner, not
// this call.
func (s *PurchaseService) createTicketSafe(req *models.TicketCreateRequest) (ticket *models.Ticket, recovered bool, err error) {
	ticket, err = s.tickets.Create(req)
	if err == nil {
		return ticket, false, nil
	}
	if req.PaymentID != "" && errors.Is(err, models.ErrDuplicateEntry) {
		existing, lookupErr := s.tickets.GetByPaymentID(req.PaymentID)
		if lookupErr == nil {
			return existing, true, nil
		}
	}
	return nil, false, err
}

// rewriteCart replaces the cart contents with only the unfulfilled lines.
// Best effort: a ticket already exists at this point, so a failure here is
// logged rather than unwinding the purchase.
func (s *PurchaseService) rewriteCart(cart *models.Cart, notPurchased []int) {
	keep := make(map[int]bool, len(notPurchased))
	for _, id := range notPurchased {
		keep[id] = true
	}

	var residue []models.CartItemInput
	for _, line := range cart.Items {
		if keep[line.ProductID] {
			residue = append(residue, models.CartItemInput{ProductID: line.ProductID, Quantity: line.Quantity})
		}
	}

	if err := s.carts.ReplaceItems(cart.ID, residue); err != nil {
		log.Printf("WARN: could not rewrite cart %d after purchase: %v", cart.ID, err)
	}
}

// dispatchNotifications hands the minted ticket to the notification
// channels. Failures never change the reconciliation outcome.
func (s *PurchaseService) dispatchNotifications(result *PurchaseResult) {
	if result.Ticket == nil {
		return
	}
	if s.email != nil && result.EmailTarget != "" {
		if err := s.email.SendPurchaseConfirmation(result.EmailTarget, result.Ticket, result.PurchasedItems); err != nil {
			log.Printf("WARN: purchase email for ticket %s failed: %v", result.Ticket.Code, err)
		}
	}
	if s.sms != nil && s.adminPhone != "" {
		if err := s.sms.SendPurchaseSMS(s.adminPhone, result.Ticket); err != nil {
			log.Printf("WARN: purchase SMS for ticket %s failed: %v", result.Ticket.Code, err)
		}
	}
}

func alreadyProcessed(ticket *models.Ticket, cartID int) *PurchaseResult {
	return &PurchaseResult{
		Ticket:           ticket,
		PurchasedItems:   []PurchaseItem{},
		TotalAmount:      ticket.Amount,
		CartID:           cartID,
		AlreadyProcessed: true,
	}
}

func totalAmount(items []PurchaseItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

func ticketItems(items []PurchaseItem) []models.TicketItem {
	out := make([]models.TicketItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.TicketItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Title:     item.Title,
		})
	}
	return out
}

func paymentTime(payment *PaymentConfirmation) time.Time {
	if payment.DateApproved != nil {
		return payment.DateApproved.UTC()
	}
	return time.Now().UTC()
}
