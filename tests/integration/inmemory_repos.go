package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// The in-memory repos store deep copies so that unlocked reads in the services
// never observe a wallet another goroutine is mutating. Write serialization
// comes from the transactor below, which models row locking with one mutex.

func cloneWallet(w *domain.Wallet) *domain.Wallet {
	cp := *w
	cp.CurrencyAccounts = make([]*domain.CurrencyAccount, 0, len(w.CurrencyAccounts))
	for _, a := range w.CurrencyAccounts {
		ac := *a
		cp.CurrencyAccounts = append(cp.CurrencyAccounts, &ac)
	}
	cp.BankAccounts = make([]*domain.BankAccount, 0, len(w.BankAccounts))
	for _, b := range w.BankAccounts {
		bc := *b
		cp.BankAccounts = append(cp.BankAccounts, &bc)
	}
	cp.Credits = make([]*domain.Credit, 0, len(w.Credits))
	for _, c := range w.Credits {
		cc := *c
		cp.Credits = append(cp.Credits, &cc)
	}
	return &cp
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	cp := *t
	if t.DueDate != nil {
		d := *t.DueDate
		cp.DueDate = &d
	}
	if t.ProcessedAt != nil {
		p := *t.ProcessedAt
		cp.ProcessedAt = &p
	}
	if t.RelatedTransactionID != nil {
		r := *t.RelatedTransactionID
		cp.RelatedTransactionID = &r
	}
	return &cp
}

// --- In-memory wallet repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[w.ID]; ok {
		return fmt.Errorf("wallet already exists")
	}
	r.wallets[w.ID] = cloneWallet(w)
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	return cloneWallet(w), nil
}

func (r *inMemoryWalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.UserID == userID && !w.IsDeleted {
			return cloneWallet(w), nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryWalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *inMemoryWalletRepo) Save(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[w.ID] = cloneWallet(w)
	return nil
}

// --- In-memory transaction repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[uuid.UUID]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[t.ID] = cloneTransaction(t)
	return nil
}

func (r *inMemoryTransactionRepo) Update(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transactions[t.ID]; !ok {
		return fmt.Errorf("transaction not found")
	}
	r.transactions[t.ID] = cloneTransaction(t)
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	return cloneTransaction(t), nil
}

func (r *inMemoryTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryTransactionRepo) GetByNumber(ctx context.Context, number string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.transactions {
		if t.TransactionNumber == number {
			return cloneTransaction(t), nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) GetByPaymentReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.transactions {
		if t.PaymentReferenceID == reference {
			return cloneTransaction(t), nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) SumCompletedRefunds(ctx context.Context, tx pgx.Tx, originalTxnID uuid.UUID) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := decimal.Zero
	for _, t := range r.transactions {
		if t.RelatedTransactionID != nil && *t.RelatedTransactionID == originalTxnID &&
			t.Type == domain.TypeRefund && t.Status == domain.StatusCompleted {
			total = total.Add(t.Amount.Value)
		}
	}
	return total, nil
}

func (r *inMemoryTransactionRepo) SumDailyOutflow(ctx context.Context, accountID uuid.UUID, day time.Time) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	total := decimal.Zero
	for _, t := range r.transactions {
		if t.CurrencyAccountID != accountID || t.Direction != domain.DirectionOut || t.Status != domain.StatusCompleted {
			continue
		}
		if t.ProcessedAt == nil || t.ProcessedAt.Before(start) || !t.ProcessedAt.Before(end) {
			continue
		}
		total = total.Add(t.Amount.Value)
	}
	return total, nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		if t.WalletID != params.WalletID {
			continue
		}
		if params.AccountID != nil && t.CurrencyAccountID != *params.AccountID {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		if params.From != nil && t.TransactionDate.Before(*params.From) {
			continue
		}
		if params.To != nil && t.TransactionDate.After(*params.To) {
			continue
		}
		result = append(result, *cloneTransaction(t))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TransactionDate.After(result[j].TransactionDate)
	})
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-memory event outbox ---

type inMemoryOutbox struct {
	mu     sync.Mutex
	events []domain.Event
}

func newInMemoryOutbox() *inMemoryOutbox {
	return &inMemoryOutbox{}
}

func (o *inMemoryOutbox) Append(ctx context.Context, tx pgx.Tx, events []domain.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, events...)
	return nil
}

func (o *inMemoryOutbox) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

// --- In-memory transactor ---

// memTransactor models the database's row locking with a single mutex: every
// transaction holds it from Begin until Commit or Rollback.
type memTransactor struct {
	mu sync.Mutex
}

func newMemTransactor() *memTransactor {
	return &memTransactor{}
}

func (t *memTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &memTx{tr: t}, nil
}

// memTx is a pgx.Tx that only tracks commit/rollback; the repos apply changes
// immediately.
type memTx struct {
	tr   *memTransactor
	done atomic.Bool
}

func (t *memTx) release() {
	if t.done.CompareAndSwap(false, true) {
		t.tr.mu.Unlock()
	}
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }

func (t *memTx) Commit(ctx context.Context) error {
	if t.done.Load() {
		return pgx.ErrTxClosed
	}
	t.release()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done.Load() {
		return pgx.ErrTxClosed
	}
	t.release()
	return nil
}

func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *memTx) Conn() *pgx.Conn                                               { return nil }

// --- Fake payment gateway ---

// fakeGateway records reservations so VerifyPayment can confirm them, the way
// the provider's sandbox does.
type fakeGateway struct {
	mu       sync.Mutex
	seq      int64
	payments map[string]domain.Money
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]domain.Money)}
}

func (g *fakeGateway) CreatePayment(ctx context.Context, req ports.GatewayPaymentRequest) (*ports.GatewayPaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	authority := fmt.Sprintf("A%09d", g.seq)
	g.payments[authority] = req.Amount
	return &ports.GatewayPaymentResponse{
		Authority:  authority,
		PaymentURL: "https://gateway.test/pay/" + authority,
	}, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, authority string, amount domain.Money) (*ports.GatewayVerifyResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	reserved, ok := g.payments[authority]
	if !ok {
		return nil, fmt.Errorf("unknown authority %s", authority)
	}
	return &ports.GatewayVerifyResponse{
		ReferenceID: fmt.Sprintf("REF-%s", authority),
		Amount:      reserved,
		CardPan:     "502229******1234",
	}, nil
}
