package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecommerce-platform/internal/models"
)

// Mock implementations for testing

type mockProductRepository struct {
	mu            sync.Mutex
	products      map[int]*models.Product
	nextID        int
	shouldFailOps map[string]bool
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products:      make(map[int]*models.Product),
		nextID:        1,
		shouldFailOps: make(map[string]bool),
	}
}

func (m *mockProductRepository) add(title string, price float64, stock int) *models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &models.Product{
		ID:       m.nextID,
		Title:    title,
		Code:     fmt.Sprintf("CODE-%d", m.nextID),
		Category: "test",
		Price:    price,
		Stock:    stock,
		Status:   true,
	}
	m.products[m.nextID] = p
	m.nextID++
	return p
}

func (m *mockProductRepository) Create(req *models.ProductCreateRequest) (*models.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p := m.add(req.Title, req.Price, req.Stock)
	return p, nil
}

func (m *mockProductRepository) GetByID(id int) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailOps["GetByID"] {
		return nil, errors.New("mock error")
	}
	p, ok := m.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *mockProductRepository) GetByCode(code string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Code == code {
			clone := *p
			return &clone, nil
		}
	}
	return nil, models.ErrProductNotFound
}

func (m *mockProductRepository) Search(filters models.ProductFilters) ([]*models.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockProductRepository) Update(id int, req *models.ProductUpdateRequest) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	p.Title = req.Title
	p.Price = req.Price
	p.Stock = req.Stock
	p.Status = req.Status
	clone := *p
	return &clone, nil
}

func (m *mockProductRepository) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return models.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) AdjustStock(productID, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailOps["AdjustStock"] {
		return 0, errors.New("mock error")
	}
	p, ok := m.products[productID]
	if !ok {
		return 0, models.ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return 0, fmt.Errorf("product %d: %w", productID, models.ErrInsufficientStock)
	}
	p.Stock += delta
	return p.Stock, nil
}

func (m *mockProductRepository) stockOf(id int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

type mockCartRepository struct {
	mu            sync.Mutex
	carts         map[int][]models.CartItemInput
	products      *mockProductRepository
	nextID        int
	replaceCalls  int
	shouldFailOps map[string]bool
}

func newMockCartRepository(products *mockProductRepository) *mockCartRepository {
	return &mockCartRepository{
		carts:         make(map[int][]models.CartItemInput),
		products:      products,
		nextID:        1,
		shouldFailOps: make(map[string]bool),
	}
}

func (m *mockCartRepository) Create(items []models.CartItemInput) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.carts[id] = append([]models.CartItemInput{}, items...)
	return &models.Cart{ID: id, CreatedAt: time.Now(), UpdatedAt: time.Now()}, nil
}

func (m *mockCartRepository) GetByID(id int) (*models.Cart, error) {
	m.mu.Lock()
	items, ok := m.carts[id]
	m.mu.Unlock()
	if !ok {
		return nil, models.ErrCartNotFound
	}

	cart := &models.Cart{ID: id}
	for _, line := range items {
		item := models.CartItem{ProductID: line.ProductID, Quantity: line.Quantity}
		if product, err := m.products.GetByID(line.ProductID); err == nil {
			item.Product = product
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, nil
}

func (m *mockCartRepository) AddProduct(cartID, productID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.carts[cartID]
	if !ok {
		return models.ErrCartNotFound
	}
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity += quantity
			return nil
		}
	}
	m.carts[cartID] = append(items, models.CartItemInput{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *mockCartRepository) UpdateItemQuantity(cartID, productID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.carts[cartID]
	if !ok {
		return models.ErrCartNotFound
	}
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
			return nil
		}
	}
	return models.ErrProductNotFound
}

func (m *mockCartRepository) RemoveProduct(cartID, productID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.carts[cartID]
	if !ok {
		return models.ErrCartNotFound
	}
	var kept []models.CartItemInput
	for _, line := range items {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	m.carts[cartID] = kept
	return nil
}

func (m *mockCartRepository) ReplaceItems(cartID int, items []models.CartItemInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailOps["ReplaceItems"] {
		return errors.New("mock error")
	}
	if _, ok := m.carts[cartID]; !ok {
		return models.ErrCartNotFound
	}
	m.replaceCalls++
	m.carts[cartID] = append([]models.CartItemInput{}, items...)
	return nil
}

func (m *mockCartRepository) Delete(cartID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[cartID]; !ok {
		return models.ErrCartNotFound
	}
	delete(m.carts, cartID)
	return nil
}

func (m *mockCartRepository) List() ([]*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Cart
	for id := range m.carts {
		out = append(out, &models.Cart{ID: id})
	}
	return out, nil
}

func (m *mockCartRepository) contents(cartID int) []models.CartItemInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CartItemInput{}, m.carts[cartID]...)
}

type mockTicketRepository struct {
	mu       sync.Mutex
	tickets  map[int]*models.Ticket
	nextID   int
	onCreate func() // invoked before Create takes effect
}

func newMockTicketRepository() *mockTicketRepository {
	return &mockTicketRepository{
		tickets: make(map[int]*models.Ticket),
		nextID:  1,
	}
}

func (m *mockTicketRepository) Create(req *models.TicketCreateRequest) (*models.Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if m.onCreate != nil {
		m.onCreate()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if req.PaymentID != "" {
		for _, t := range m.tickets {
			if t.PaymentID == req.PaymentID {
				return nil, fmt.Errorf("payment %s already recorded: %w", req.PaymentID, models.ErrDuplicateEntry)
			}
		}
	}

	ticket := &models.Ticket{
		ID:                m.nextID,
		Code:              req.Code,
		PurchaseDatetime:  req.PurchaseDatetime,
		Amount:            req.Amount,
		Purchaser:         req.Purchaser,
		UserID:            req.UserID,
		Items:             append([]models.TicketItem{}, req.Items...),
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
	m.tickets[m.nextID] = ticket
	m.nextID++
	return ticket, nil
}

func (m *mockTicketRepository) GetByID(id int) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, models.ErrTicketNotFound
	}
	return t, nil
}

func (m *mockTicketRepository) GetByCode(code string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.Code == code {
			return t, nil
		}
	}
	return nil, models.ErrTicketNotFound
}

func (m *mockTicketRepository) GetByPaymentID(paymentID string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.PaymentID != "" && t.PaymentID == paymentID {
			return t, nil
		}
	}
	return nil, models.ErrTicketNotFound
}

func (m *mockTicketRepository) FindExistingForPayment(paymentID, preferenceID string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.PaymentID != "" && t.PaymentID == paymentID {
			return t, nil
		}
		if preferenceID != "" && t.PreferenceID == preferenceID {
			return t, nil
		}
	}
	return nil, models.ErrTicketNotFound
}

func (m *mockTicketRepository) GetByExternalReference(ref string) ([]*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Ticket
	for _, t := range m.tickets {
		if t.ExternalReference == ref {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTicketRepository) GetByPurchaser(email string, userID int) ([]*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Ticket
	for _, t := range m.tickets {
		if t.BelongsTo(email, userID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTicketRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets)
}

type mockUserRepository struct {
	mu     sync.Mutex
	users  map[int]*models.User
	nextID int
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[int]*models.User), nextID: 1}
}

func (m *mockUserRepository) add(email string, cartID *int) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{ID: m.nextID, FirstName: "Test", Email: email, Role: models.RoleUser, CartID: cartID}
	m.users[m.nextID] = u
	m.nextID++
	return u
}

func (m *mockUserRepository) Create(req *models.UserCreateRequest, passwordHash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == req.Email {
			return nil, models.ErrDuplicateEntry
		}
	}
	u := &models.User{
		ID:           m.nextID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Age:          req.Age,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		Phone:        req.Phone,
	}
	m.users[m.nextID] = u
	m.nextID++
	return u, nil
}

func (m *mockUserRepository) GetByID(id int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserRepository) GetByEmail(email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *mockUserRepository) GetByCartID(cartID int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.CartID != nil && *u.CartID == cartID {
			return u, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *mockUserRepository) SetCart(userID, cartID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	u.CartID = &cartID
	return nil
}

type mockNotifier struct {
	mu     sync.Mutex
	emails []string
	fail   bool
}

func (m *mockNotifier) SendPurchaseConfirmation(email string, ticket *models.Ticket, items []PurchaseItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.emails = append(m.emails, email)
	return nil
}

type purchaseFixture struct {
	products *mockProductRepository
	carts    *mockCartRepository
	tickets  *mockTicketRepository
	users    *mockUserRepository
	notifier *mockNotifier
	svc      *PurchaseService
}

func newPurchaseFixture() *purchaseFixture {
	products := newMockProductRepository()
	carts := newMockCartRepository(products)
	tickets := newMockTicketRepository()
	users := newMockUserRepository()
	notifier := &mockNotifier{}
	return &purchaseFixture{
		products: products,
		carts:    carts,
		tickets:  tickets,
		users:    users,
		notifier: notifier,
		svc:      NewPurchaseService(products, carts, tickets, users, notifier, nil, ""),
	}
}

func approvedPayment(id string, cartID int, amount float64) *PaymentConfirmation {
	return &PaymentConfirmation{
		ID:                id,
		Status:            PaymentStatusApproved,
		TransactionAmount: amount,
		Currency:          "ARS",
		ExternalReference: fmt.Sprintf("%d", cartID),
		PreferenceID:      "pref-" + id,
		PaymentMethod:     "credit_card",
		Installments:      1,
		PayerEmail:        "payer@example.com",
	}
}

func TestProcessCartPurchase_PartialFulfillment(t *testing.T) {
	f := newPurchaseFixture()
	inStock := f.products.add("Widget", 10.00, 5)
	outOfStock := f.products.add("Gadget", 7.50, 0)
	cart, err := f.carts.Create([]models.CartItemInput{
		{ProductID: inStock.ID, Quantity: 2},
		{ProductID: outOfStock.ID, Quantity: 1},
	})
	require.NoError(t, err)

	result, err := f.svc.ProcessCartPurchase(cart.ID, "buyer@example.com", nil)
	require.NoError(t, err)

	require.NotNil(t, result.Ticket)
	assert.Equal(t, 20.00, result.Ticket.Amount)
	assert.Equal(t, "buyer@example.com", result.Ticket.Purchaser)
	require.Len(t, result.Ticket.Items, 1)
	assert.Equal(t, inStock.ID, result.Ticket.Items[0].ProductID)
	assert.Equal(t, 2, result.Ticket.Items[0].Quantity)
	assert.Equal(t, 10.00, result.Ticket.Items[0].UnitPrice)
	assert.Equal(t, "Widget", result.Ticket.Items[0].Title)

	assert.Equal(t, []int{outOfStock.ID}, result.NotPurchasedIDs)
	assert.Equal(t, 20.00, result.TotalAmount)

	// Stock is debited for fulfilled lines only
	assert.Equal(t, 3, f.products.stockOf(inStock.ID))
	assert.Equal(t, 0, f.products.stockOf(outOfStock.ID))

	// The cart keeps only the unfulfilled line
	residue := f.carts.contents(cart.ID)
	require.Len(t, residue, 1)
	assert.Equal(t, outOfStock.ID, residue[0].ProductID)
	assert.Equal(t, 1, residue[0].Quantity)

	assert.Equal(t, []string{"buyer@example.com"}, f.notifier.emails)
}

func TestProcessCartPurchase_NothingFulfillable(t *testing.T) {
	f := newPurchaseFixture()
	ghost := f.products.add("Ghost", 5.00, 3)
	cart, err := f.carts.Create([]models.CartItemInput{{ProductID: ghost.ID, Quantity: 1}})
	require.NoError(t, err)
	require.NoError(t, f.products.Delete(ghost.ID))

	result, err := f.svc.ProcessCartPurchase(cart.ID, "buyer@example.com", nil)
	require.NoError(t, err)

	assert.Nil(t, result.Ticket)
	assert.Equal(t, []int{ghost.ID}, result.NotPurchasedIDs)
	assert.Zero(t, result.TotalAmount)
	assert.Zero(t, f.tickets.count())
	// Short-circuits before any mutation, the cart is left as it was
	assert.Zero(t, f.carts.replaceCalls)
	assert.Empty(t, f.notifier.emails)
}

func TestProcessCartPurchase_AllDebitsFail(t *testing.T) {
	f := newPurchaseFixture()
	product := f.products.add("Rare", 99.00, 0)
	cart, err := f.carts.Create([]models.CartItemInput{{ProductID: product.ID, Quantity: 1}})
	require.NoError(t, err)

	result, err := f.svc.ProcessCartPurchase(cart.ID, "buyer@example.com", nil)
	require.NoError(t, err)

	assert.Nil(t, result.Ticket)
	assert.Equal(t, []int{product.ID}, result.NotPurchasedIDs)
	assert.Zero(t, f.tickets.count())
	// The cart rewrite still runs so its contents reflect the outcome
	assert.Equal(t, 1, f.carts.replaceCalls)
	residue := f.carts.contents(cart.ID)
	require.Len(t, residue, 1)
	assert.Equal(t, product.ID, residue[0].ProductID)
}

func TestProcessCartPurchase_CartErrors(t *testing.T) {
	f := newPurchaseFixture()

	_, err := f.svc.ProcessCartPurchase(99, "buyer@example.com", nil)
	assert.ErrorIs(t, err, models.ErrCartNotFound)

	cart, err := f.carts.Create(nil)
	require.NoError(t, err)
	_, err = f.svc.ProcessCartPurchase(cart.ID, "buyer@example.com", nil)
	assert.ErrorIs(t, err, models.ErrCartEmpty)
}

func TestProcessCartPurchase_BestEffortRewriteAndNotify(t *testing.T) {
	f := newPurchaseFixture()
	f.notifier.fail = true
	f.carts.shouldFailOps["ReplaceItems"] = true
	product := f.products.add("Widget", 10.00, 5)
	cart, err := f.carts.Create([]models.CartItemInput{{ProductID: product.ID, Quantity: 1}})
	require.NoError(t, err)

	result, err := f.svc.ProcessCartPurchase(cart.ID, "buyer@example.com", nil)
	require.NoError(t, err)
	require.NotNil(t, result.Ticket)
	assert.Equal(t, 1, f.tickets.count())
}

func TestProcessPaymentNotification_MintsTicket(t *testing.T) {
	f := newPurchaseFixture()
	product := f.products.add("Widget", 10.00, 5)
	cart, err := f.carts.Create([]models.CartItemInput{{ProductID: product.ID, Quantity: 2}})
	require.NoError(t, err)

	payment := approvedPayment("p-1", cart.ID, 20.00)
	payment.Metadata = map[string]string{
		MetadataUserEmail: "member@example.com",
		MetadataUserID:    "42",
	}

	result, err := f.svc.ProcessPaymentNotification(payment)
	require.NoError(t, err)

	require.NotNil(t, result.Ticket)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, "p-1", result.Ticket.PaymentID)
	assert.Equal(t, "pref-p-1", result.Ticket.PreferenceID)
	assert.Equal(t, fmt.Sprintf("%d", cart.ID), result.Ticket.ExternalReference)
	assert.Equal(t, "approved", result.Ticket.PaymentStatus)
	assert.Equal(t, "member@example.com", result.Ticket.Purchaser)
	require.NotNil(t, result.Ticket.UserID)
	assert.Equal(t, 42, *result.Ticket.UserID)
	assert.Equal(t, 20.00, result.Ticket.Amount)
	assert.True(t, result.Ticket.AmountMatchesItems())

	assert.Equal(t, 3, f.products.stockOf(product.ID))
	assert.Empty(t, f.carts.contents(cart.ID))
	assert.Equal(t, []string{"member@example.com"}, f.notifier.emails)
}

func TestProcessPaymentNotification_DuplicateWebhook(t *testing.T) {
	f := newPurchaseFixture()
	product := f.products.add("Widget", 10.00, 5)
	cart, err := f.carts.Create([]models.CartItemInput{{ProductID: product.ID, Quantity: 2}})
	require.NoError(t, err)

	first, err := f.svc.ProcessPaymentNotification(approvedPayment("p-1", cart.ID, 20.00))
	require.NoError(t, err)
	require.NotNil(t, first.Ticket)

	second, err := f.svc.ProcessPaymentNotification(approvedPayment("p-1", cart.ID, 20.00))
	require.NoError(t, err)

	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, first.Ticket.Code, second.Ticket.Code)
	assert.Equal(t, 1, f.tickets.count())
	// Stock was debited exactly once
	assert.Equal(t, 3, f.products.stockOf(product.ID))
}

func TestProcessPaymentNotification_PreferenceGuard(t *testing.T) {
	f := newPurchaseFixture()
	product := f.products.add("Widget", 10.00, 5)
	cart, err := f.carts.Create([]models.CartItemInput{{ProductID: product.ID, Quantity: 2}})
	require.NoError(t, err)

	first := approvedPayment("p-1", cart.ID, 20.00)
	_, err = f.svc.ProcessPaymentNotification(first)
	require.NoError(t, err)

	// Same preference, different payment id: the gateway sometimes reports
	// the same approval under two ids.
	replay := approvedPayment("p-2", cart.ID, 20.00)
	replay.PreferenceID = first.PreferenceID

	result, err := f.svc.ProcessPaymentNotification(replay)
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, 1, f.tickets.count())
	assert.Equal(t, 3, f.products.stockOf(product.ID))
}

func TestProcessPaymentNotification_CartReferenceGuard(t *testing.T) {
	f := newPurchaseFixture()
	product := f.products.add("Widget", 10.00, 5)
	cart, err := f.carts.Create([]models.CartItemInput{{ProductID: product.ID, Quantity: 2}})
	require.NoError(t, err)

	// Simulate a prior reconciliation whose cart rewrite failed: a ticket
	// exists for this cart but the cart still has its items.
	_, err = f.tickets.Create(&models.TicketCreateRequest{
		Code:              "prior",
		PurchaseDatetime:  time.Now(),
		Amount:            20.00,
		Purchaser:         "buyer@example.com",
		PaymentID:         "p-old",
		ExternalReference: fmt.Sprintf("%d", cart.ID),
		Items:             []models.TicketItem{{ProductID: product.ID, Quantity: 2, UnitPrice: 10.00, Title: "Widget"}},
	})
	require.NoError(t, err)

	result, err := f.svc.ProcessPaymentNotification(approvedPayment("p-new", cart.ID, 20.00))
	require.NoError(t, err)

	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, "prior", result.Ticket.Code)
	assert.Equal(t, 1, f.tickets.count())
	assert.Equal(t, 5, f.products.stockOf(product.ID))
}

func TestProcessPaymentNotification_AmountMismatch(t *testing.T) {
	f := newPurchaseFixture()
	product := f.products.add("Widget", 10.00, 5)
	cart, err := f.carts.Create([]models.CartItemInput{{ProductID: product.ID, Quantity: 2}})
	require.NoError(t, err)

	result, err := f.svc.ProcessPaymentNotification(approvedPayment("p-1", cart.ID, 15.00))
	require.NoError(t, err)

	assert.True(t, result.AmountMismatch)
	assert.Nil(t, result.Ticket)
	assert.Equal(t, 15.00, result.PaidAmount)
	assert.Equal(t, 20.00, result.TotalAmount)
	assert.Zero(t, f.tickets.count())

	// The debit is compensated, net stock is untouched
	assert.Equal(t, 5, f.products.stockOf(product.ID))
	// The cart is untouched too
	require.Len(t, f.carts.contents(cart.ID), 1)
	assert.Empty(t, f.notifier.emails)
}

func TestProcessPaymentNotification_IdentityResolution(t *testing.T) {
	t.Run("platform user found by cart", func(t *testing.T) {
		f := newPurchaseFixture()
		product := f.products.add("Widget", 10.00, 5)
		cart, err := f.carts.Create([]models.CartItemInput{{ProductID: product.ID, Quantity: 1}})
		require.NoError(t, err)
		owner := f.users.add("owner@example.com", &cart.ID)

		result, err := f.svc.ProcessPaymentNotification(approvedPayment("p-1", cart.ID, 10.00))
		require.NoError(t, err)

		assert.Equal(t, "owner@example.com", result.Ticket.Purchaser)
		require.NotNil(t, result.Ticket.UserID)
		assert.Equal(t, owner.ID, *result.Ticket.UserID)
	})

	t.Run("falls back to payer email", func(t *testing.T) {
		f := newPurchaseFixture()
		product := f.products.add("Widget", 10.00, 5)
		cart, err := f.carts.Create([]models.CartItemInput{{ProductID: product.ID, Quantity: 1}})
		require.NoError(t, err)

		result, err := f.svc.ProcessPaymentNotification(approvedPayment("p-1", cart.ID, 10.00))
		require.NoError(t, err)

		assert.Equal(t, "payer@example.com", result.Ticket.Purchaser)
		assert.Nil(t, result.Ticket.UserID)
	})

	t.Run("records unknown when nothing resolves", func(t *testing.T) {
		f := newPurchaseFixture()
		product := f.products.add("Widget", 10.00, 5)
		cart, err := f.carts.Create([]models.CartItemInput{{ProductID: product.ID, Quantity: 1}})
		require.NoError(t, err)

		payment := approvedPayment("p-1", cart.ID, 10.00)
		payment.PayerEmail = ""

		result, err := f.svc.ProcessPaymentNotification(payment)
		require.NoError(t, err)

		assert.Equal(t, models.PurchaserUnknown, result.Ticket.Purchaser)
		// No address resolved, so nothing to email
		assert.Empty(t, f.notifier.emails)
	})
}

func TestProcessPaymentNotification_InvalidReference(t *testing.T) {
	f := newPurchaseFixture()

	payment := approvedPayment("p-1", 1, 10.00)
	payment.ExternalReference = "not-a-number"

	_, err := f.svc.ProcessPaymentNotification(payment)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	payment.ExternalReference = ""
	_, err = f.svc.ProcessPaymentNotification(payment)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestProcessPaymentNotification_CreateRaceRecovers(t *testing.T) {
	f := newPurchaseFixture()
	product := f.products.add("Widget", 10.00, 5)
	cart, err := f.carts.Create([]models.CartItemInput{{ProductID: product.ID, Quantity: 2}})
	require.NoError(t, err)

	// A competing reconciliation commits its ticket between the idempotency
	// checks and our insert.
	raced := false
	f.tickets.onCreate = func() {
		if raced {
			return
		}
		raced = true
		f.tickets.onCreate = nil
		_, err := f.tickets.Create(&models.TicketCreateRequest{
			Code:              "winner",
			PurchaseDatetime:  time.Now(),
			Amount:            20.00,
			Purchaser:         "buyer@example.com",
			PaymentID:         "p-1",
			ExternalReference: fmt.Sprintf("%d", cart.ID),
			Items:             []models.TicketItem{{ProductID: product.ID, Quantity: 2, UnitPrice: 10.00, Title: "Widget"}},
		})
		require.NoError(t, err)
	}

	result, err := f.svc.ProcessPaymentNotification(approvedPayment("p-1", cart.ID, 20.00))
	require.NoError(t, err)

	// The loser reads back the winner's ticket instead of failing, reports
	// the payment as already processed, and re-credits its own debits so
	// the stock is only down by the winner's.
	assert.Equal(t, "winner", result.Ticket.Code)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, 1, f.tickets.count())
	assert.Equal(t, 5, f.products.stockOf(product.ID))
}

func TestProcessPaymentNotification_ConcurrentPaymentsNeverOversell(t *testing.T) {
	f := newPurchaseFixture()
	product := f.products.add("Last One", 10.00, 1)

	const buyers = 8
	cartIDs := make([]int, buyers)
	for i := 0; i < buyers; i++ {
		cart, err := f.carts.Create([]models.CartItemInput{{ProductID: product.ID, Quantity: 1}})
		require.NoError(t, err)
		cartIDs[i] = cart.ID
	}

	var wg sync.WaitGroup
	results := make([]*PurchaseResult, buyers)
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.ProcessPaymentNotification(approvedPayment(fmt.Sprintf("p-%d", i), cartIDs[i], 10.00))
		}(i)
	}
	wg.Wait()

	minted := 0
	for i, result := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, result)
		if result.Ticket != nil {
			minted++
		}
	}
	assert.Equal(t, 1, minted, "exactly one buyer gets the last unit")
	assert.Equal(t, 0, f.products.stockOf(product.ID))
}
