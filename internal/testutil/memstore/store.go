// Package memstore is an in-memory implementation of every billing repository port.
// Transactions run through a mocks.MockDBPort; a failed callback restores the
// snapshot taken when it began, so tests observe the same atomicity as Postgres.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
	"github.com/peiffer1998/EIPR-Portal-sub001/internal/testutil/mocks"
)

type state struct {
	reservations map[string]domain.Reservation
	rules        []domain.PriceRule
	promotions   map[string]domain.Promotion
	invoices     map[string]domain.Invoice
	items        map[string][]domain.InvoiceItem
	deposits     []domain.Deposit
	transactions map[string]domain.PaymentTransaction
	events       map[string]domain.PaymentEvent
}

func newState() state {
	return state{
		reservations: make(map[string]domain.Reservation),
		promotions:   make(map[string]domain.Promotion),
		invoices:     make(map[string]domain.Invoice),
		items:        make(map[string][]domain.InvoiceItem),
		transactions: make(map[string]domain.PaymentTransaction),
		events:       make(map[string]domain.PaymentEvent),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	c.rules = append(c.rules, s.rules...)
	for k, v := range s.promotions {
		c.promotions[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]domain.InvoiceItem(nil), v...)
	}
	c.deposits = append(c.deposits, s.deposits...)
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	return c
}

// Store holds all billing tables in memory
type Store struct {
	mu       sync.Mutex
	data     state
	snapshot *state
	db       *mocks.MockDBPort
}

// New creates an empty store
func New() *Store {
	s := &Store{data: newState()}
	s.db = &mocks.MockDBPort{
		OnBegin: func() {
			s.mu.Lock()
			snap := s.data.clone()
			s.snapshot = &snap
			s.mu.Unlock()
		},
		OnCommit: func() {
			s.mu.Lock()
			s.snapshot = nil
			s.mu.Unlock()
		},
		OnRollback: func(error) {
			s.mu.Lock()
			if s.snapshot != nil {
				s.data = *s.snapshot
				s.snapshot = nil
			}
			s.mu.Unlock()
		},
	}
	return s
}

// DB returns the transaction manager bound to this store
func (s *Store) DB() *mocks.MockDBPort {
	return s.db
}

// Seeding helpers

func (s *Store) AddReservation(r *domain.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.reservations[r.ID] = *r
}

func (s *Store) AddPriceRule(rule domain.PriceRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.rules = append(s.data.rules, rule)
}

func (s *Store) AddPromotion(p *domain.Promotion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.promotions[p.AccountID+"/"+p.Code] = *p
}

// Inspection helpers

// EventCount returns how many webhook events were recorded
func (s *Store) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.events)
}

// Event returns a recorded webhook event
func (s *Store) Event(providerEventID string) (domain.PaymentEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data.events[providerEventID]
	return e, ok
}

// Transaction returns a stored payment transaction by provider intent id
func (s *Store) Transaction(intentID string) (domain.PaymentTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.data.transactions {
		if t.ProviderPaymentIntentID == intentID {
			return t, true
		}
	}
	return domain.PaymentTransaction{}, false
}

// Deposits returns every deposit of a reservation in insertion order
func (s *Store) Deposits(reservationID string) []domain.Deposit {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Deposit
	for _, d := range s.data.deposits {
		if d.ReservationID == reservationID {
			out = append(out, d)
		}
	}
	return out
}

// Reservations

type ReservationReader struct{ s *Store }

func (s *Store) Reservations() *ReservationReader { return &ReservationReader{s} }

func (r *ReservationReader) GetByID(_ context.Context, _ ports.DBTX, id string) (*domain.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.data.reservations[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return &res, nil
}

// Price rules

type PriceRuleReader struct{ s *Store }

func (s *Store) PriceRules() *PriceRuleReader { return &PriceRuleReader{s} }

func (r *PriceRuleReader) ListActive(_ context.Context, _ ports.DBTX, accountID string) ([]domain.PriceRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.PriceRule
	for _, rule := range r.s.data.rules {
		if rule.AccountID == accountID && rule.Active {
			out = append(out, rule)
		}
	}
	return out, nil
}

// Promotions

type PromotionReader struct{ s *Store }

func (s *Store) Promotions() *PromotionReader { return &PromotionReader{s} }

func (r *PromotionReader) GetByCode(_ context.Context, _ ports.DBTX, accountID, code string) (*domain.Promotion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.promotions[accountID+"/"+code]
	if !ok {
		return nil, domain.ErrPromotionNotFound
	}
	return &p, nil
}

// Invoices

type InvoiceRepository struct{ s *Store }

func (s *Store) Invoices() *InvoiceRepository { return &InvoiceRepository{s} }

func (r *InvoiceRepository) Create(_ context.Context, _ ports.DBTX, inv *domain.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.invoices {
		if existing.ReservationID == inv.ReservationID {
			return domain.ErrInvoiceAlreadyExists
		}
	}
	items := make([]domain.InvoiceItem, 0, len(inv.Items))
	for i := range inv.Items {
		if inv.Items[i].ID == "" {
			inv.Items[i].ID = uuid.NewString()
		}
		inv.Items[i].InvoiceID = inv.ID
		items = append(items, inv.Items[i])
	}
	header := *inv
	header.Items = nil
	r.s.data.invoices[inv.ID] = header
	r.s.data.items[inv.ID] = items
	return nil
}

func (r *InvoiceRepository) load(id string) (*domain.Invoice, error) {
	header, ok := r.s.data.invoices[id]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	header.Items = append([]domain.InvoiceItem(nil), r.s.data.items[id]...)
	return &header, nil
}

func (r *InvoiceRepository) GetByID(_ context.Context, _ ports.DBTX, id string) (*domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.load(id)
}

func (r *InvoiceRepository) GetForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.Invoice, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *InvoiceRepository) GetByReservation(_ context.Context, _ ports.DBTX, reservationID string) (*domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, inv := range r.s.data.invoices {
		if inv.ReservationID == reservationID {
			return r.load(id)
		}
	}
	return nil, domain.ErrInvoiceNotFound
}

func (r *InvoiceRepository) InsertItem(_ context.Context, _ ports.DBTX, item *domain.InvoiceItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.invoices[item.InvoiceID]; !ok {
		return domain.ErrInvoiceNotFound
	}
	existing := r.s.data.items[item.InvoiceID]
	item.ID = uuid.NewString()
	item.Position = len(existing)
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	r.s.data.items[item.InvoiceID] = append(existing, *item)
	return nil
}

func (r *InvoiceRepository) ListItems(_ context.Context, _ ports.DBTX, invoiceID string) ([]domain.InvoiceItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := append([]domain.InvoiceItem(nil), r.s.data.items[invoiceID]...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

func (r *InvoiceRepository) Update(_ context.Context, _ ports.DBTX, inv *domain.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.invoices[inv.ID]; !ok {
		return domain.ErrInvoiceNotFound
	}
	header := *inv
	header.Items = nil
	r.s.data.invoices[inv.ID] = header
	return nil
}

// Deposits

type DepositRepository struct{ s *Store }

func (s *Store) DepositRepo() *DepositRepository { return &DepositRepository{s} }

func (r *DepositRepository) Create(_ context.Context, _ ports.DBTX, d *domain.Deposit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.deposits {
		if existing.ReservationID == d.ReservationID && existing.Status == domain.DepositStatusHeld {
			return domain.ErrDepositAlreadyHeld
		}
	}
	r.s.data.deposits = append(r.s.data.deposits, *d)
	return nil
}

func (r *DepositRepository) GetHeldForUpdate(_ context.Context, _ ports.DBTX, reservationID string) (*domain.Deposit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.data.deposits) - 1; i >= 0; i-- {
		d := r.s.data.deposits[i]
		if d.ReservationID == reservationID && d.Status == domain.DepositStatusHeld {
			return &d, nil
		}
	}
	return nil, domain.ErrNoActiveDeposit
}

func (r *DepositRepository) UpdateStatus(_ context.Context, _ ports.DBTX, d *domain.Deposit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.data.deposits {
		if r.s.data.deposits[i].ID == d.ID {
			r.s.data.deposits[i] = *d
			return nil
		}
	}
	return domain.ErrNoActiveDeposit
}

func (r *DepositRepository) ListByReservation(_ context.Context, _ ports.DBTX, reservationID string) ([]domain.Deposit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Deposit
	for i := len(r.s.data.deposits) - 1; i >= 0; i-- {
		if r.s.data.deposits[i].ReservationID == reservationID {
			out = append(out, r.s.data.deposits[i])
		}
	}
	return out, nil
}

// Payment transactions

type PaymentTransactionRepository struct{ s *Store }

func (s *Store) PaymentTransactions() *PaymentTransactionRepository {
	return &PaymentTransactionRepository{s}
}

func (r *PaymentTransactionRepository) Create(_ context.Context, _ ports.DBTX, txn *domain.PaymentTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.transactions {
		if existing.ProviderPaymentIntentID == txn.ProviderPaymentIntentID {
			return domain.ErrAlreadyExists
		}
	}
	r.s.data.transactions[txn.ID] = *txn
	return nil
}

func (r *PaymentTransactionRepository) GetByIntentIDForUpdate(_ context.Context, _ ports.DBTX, intentID string) (*domain.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.data.transactions {
		if t.ProviderPaymentIntentID == intentID {
			return &t, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (r *PaymentTransactionRepository) Update(_ context.Context, _ ports.DBTX, txn *domain.PaymentTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.transactions[txn.ID]; !ok {
		return domain.ErrTransactionNotFound
	}
	r.s.data.transactions[txn.ID] = *txn
	return nil
}

// Payment events

type PaymentEventRepository struct{ s *Store }

func (s *Store) PaymentEvents() *PaymentEventRepository { return &PaymentEventRepository{s} }

func (r *PaymentEventRepository) InsertIfAbsent(_ context.Context, _ ports.DBTX, e *domain.PaymentEvent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.events[e.ProviderEventID]; ok {
		return false, nil
	}
	r.s.data.events[e.ProviderEventID] = *e
	return true, nil
}

var (
	_ ports.ReservationReader            = (*ReservationReader)(nil)
	_ ports.PriceRuleReader              = (*PriceRuleReader)(nil)
	_ ports.PromotionReader              = (*PromotionReader)(nil)
	_ ports.InvoiceRepository            = (*InvoiceRepository)(nil)
	_ ports.DepositRepository            = (*DepositRepository)(nil)
	_ ports.PaymentTransactionRepository = (*PaymentTransactionRepository)(nil)
	_ ports.PaymentEventRepository       = (*PaymentEventRepository)(nil)
)
