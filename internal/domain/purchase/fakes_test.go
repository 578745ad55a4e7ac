package purchase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/devmarket/marketplace-api/internal/domain/project"
	"github.com/devmarket/marketplace-api/internal/domain/settlement"
	"github.com/devmarket/marketplace-api/internal/domain/user"
	"github.com/devmarket/marketplace-api/internal/pkg/gateway"
	"github.com/devmarket/marketplace-api/internal/pkg/paytabs"
)

// memPurchases is an in-memory Repository.
type memPurchases struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*Purchase
	messages  []*Message
	nextMsgID int64

	// failUpdate, when set, is returned by the next Update.
	failUpdate error
}

func newMemPurchases() *memPurchases {
	return &memPurchases{items: make(map[uuid.UUID]*Purchase)}
}

func clonePurchase(p *Purchase) *Purchase {
	cp := *p
	cp.PaymentDetails = append(PaymentRecords{}, p.PaymentDetails...)
	if p.DeliveryRequirements != nil {
		d := *p.DeliveryRequirements
		d.Attachments = append([]string(nil), p.DeliveryRequirements.Attachments...)
		cp.DeliveryRequirements = &d
	}
	return &cp
}

func (s *memPurchases) Create(_ context.Context, p *Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; ok {
		return fmt.Errorf("duplicate id %s", p.ID)
	}
	if p.GatewayReference != nil {
		for _, existing := range s.items {
			if existing.GatewayReference != nil && *existing.GatewayReference == *p.GatewayReference {
				return ErrDuplicateRef
			}
		}
	}
	s.items[p.ID] = clonePurchase(p)
	return nil
}

func (s *memPurchases) GetByID(_ context.Context, id uuid.UUID) (*Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePurchase(p), nil
}

func (s *memPurchases) GetForUpdate(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	return s.GetByID(ctx, id)
}

func (s *memPurchases) GetByReferenceForUpdate(_ context.Context, reference string) (*Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.items {
		if p.GatewayReference != nil && *p.GatewayReference == reference {
			return clonePurchase(p), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memPurchases) Update(_ context.Context, p *Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failUpdate; err != nil {
		s.failUpdate = nil
		return err
	}
	stored, ok := s.items[p.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != p.Version {
		return ErrConcurrentUpdate
	}
	p.Version++
	s.items[p.ID] = clonePurchase(p)
	return nil
}

func (s *memPurchases) List(_ context.Context, filter ListFilter) ([]*Purchase, int, error) {
	return s.page(func(p *Purchase) bool {
		if filter.BuyerID != nil && p.BuyerID != *filter.BuyerID {
			return false
		}
		if filter.SellerID != nil && p.SellerID != *filter.SellerID {
			return false
		}
		return filter.Status == "" || p.Status == filter.Status
	}, filter.Limit, filter.Offset)
}

func (s *memPurchases) ListReviews(_ context.Context, filter ReviewFilter) ([]*Purchase, int, error) {
	return s.page(func(p *Purchase) bool {
		if !p.IsRated {
			return false
		}
		switch {
		case filter.All:
			return true
		case filter.Approved == nil:
			return p.ReviewApproved == nil && (p.Rating != nil || p.Review != nil)
		default:
			return p.ReviewApproved != nil && *p.ReviewApproved == *filter.Approved
		}
	}, filter.Limit, filter.Offset)
}

func (s *memPurchases) page(match func(*Purchase) bool, limit, offset int) ([]*Purchase, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*Purchase
	for _, p := range s.items {
		if match(p) {
			all = append(all, clonePurchase(p))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return []*Purchase{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *memPurchases) AppendMessage(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[m.PurchaseID]; !ok {
		return fmt.Errorf("purchase %s does not exist", m.PurchaseID)
	}
	s.nextMsgID++
	m.ID = s.nextMsgID
	m.CreatedAt = time.Now()
	cp := *m
	s.messages = append(s.messages, &cp)
	return nil
}

func (s *memPurchases) ListMessages(_ context.Context, purchaseID uuid.UUID) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Message
	for _, m := range s.messages {
		if m.PurchaseID == purchaseID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// put stores p as is, bypassing the version check.
func (s *memPurchases) put(p *Purchase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID] = clonePurchase(p)
}

func (s *memPurchases) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

func (s *memPurchases) removeMessage(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

func (s *memPurchases) idByReference(reference string) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.items {
		if p.GatewayReference != nil && *p.GatewayReference == reference {
			return id, true
		}
	}
	return uuid.Nil, false
}

func (s *memPurchases) systemMessages(purchaseID uuid.UUID) []*Message {
	msgs, _ := s.ListMessages(context.Background(), purchaseID)
	var out []*Message
	for _, m := range msgs {
		if m.IsSystem {
			out = append(out, m)
		}
	}
	return out
}

func (s *memPurchases) failNextUpdate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdate = err
}

func (s *memPurchases) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// memAccounts is an in-memory settlement.Store.
type memAccounts struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]*settlement.Account
	logs      []settlement.EarningLog
	movements []settlement.BalanceMovement
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[uuid.UUID]*settlement.Account)}
}

func (s *memAccounts) set(userID uuid.UUID, balance, earnings string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[userID] = &settlement.Account{
		UserID:        userID,
		Balance:       decimal.RequireFromString(balance),
		TotalEarnings: decimal.RequireFromString(earnings),
	}
}

func (s *memAccounts) GetAccount(_ context.Context, userID uuid.UUID) (*settlement.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return nil, settlement.ErrUserNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memAccounts) AdjustBalance(_ context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return decimal.Zero, settlement.ErrUserNotFound
	}
	next := a.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, settlement.ErrInsufficientFunds
	}
	a.Balance = next
	return next, nil
}

func (s *memAccounts) AdjustEarnings(_ context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return decimal.Zero, settlement.ErrUserNotFound
	}
	next := a.TotalEarnings.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, settlement.ErrInsufficientFunds
	}
	a.TotalEarnings = next
	return next, nil
}

func (s *memAccounts) InsertEarningLog(_ context.Context, entry *settlement.EarningLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.PurchaseID != nil {
		for _, l := range s.logs {
			if l.UserID == entry.UserID && l.PurchaseID != nil && *l.PurchaseID == *entry.PurchaseID && l.Kind == entry.Kind {
				return settlement.ErrDuplicateEntry
			}
		}
	}
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *memAccounts) InsertBalanceMovement(_ context.Context, m *settlement.BalanceMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.PurchaseID != nil {
		for _, existing := range s.movements {
			if existing.UserID == m.UserID && existing.PurchaseID != nil && *existing.PurchaseID == *m.PurchaseID && existing.Kind == m.Kind {
				return settlement.ErrDuplicateEntry
			}
		}
	}
	s.movements = append(s.movements, *m)
	return nil
}

func (s *memAccounts) ListEarningLogs(_ context.Context, userID uuid.UUID, limit, offset int) ([]settlement.EarningLog, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []settlement.EarningLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].UserID == userID {
			out = append(out, s.logs[i])
		}
	}
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (s *memAccounts) logsFor(userID uuid.UUID) []settlement.EarningLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []settlement.EarningLog
	for _, l := range s.logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out
}

func (s *memAccounts) account(userID uuid.UUID) settlement.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[userID]
}

func (s *memAccounts) movementsFor(userID uuid.UUID) []settlement.BalanceMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []settlement.BalanceMovement
	for _, m := range s.movements {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

// undoAdjust reverts an adjustment without the non-negative check.
func (s *memAccounts) undoAdjust(userID uuid.UUID, balance, earnings decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[userID]
	a.Balance = a.Balance.Sub(balance)
	a.TotalEarnings = a.TotalEarnings.Sub(earnings)
}

func (s *memAccounts) removeEntry(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.logs {
		if l.ID == id {
			s.logs = append(s.logs[:i], s.logs[i+1:]...)
			return
		}
	}
	for i, m := range s.movements {
		if m.ID == id {
			s.movements = append(s.movements[:i], s.movements[i+1:]...)
			return
		}
	}
}

// memUnitOfWork behaves like a database transaction: rows read for update
// or written stay locked until the unit ends, and a failed unit undoes its
// writes. Units touching different rows run in parallel.
type memUnitOfWork struct {
	purchases *memPurchases
	accounts  *memAccounts

	mu   sync.Mutex
	rows map[uuid.UUID]*sync.Mutex
}

func (u *memUnitOfWork) row(id uuid.UUID) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.rows == nil {
		u.rows = make(map[uuid.UUID]*sync.Mutex)
	}
	m, ok := u.rows[id]
	if !ok {
		m = &sync.Mutex{}
		u.rows[id] = m
	}
	return m
}

func (u *memUnitOfWork) Do(_ context.Context, fn func(s Scope) error) error {
	tx := &memTx{uow: u, held: make(map[uuid.UUID]bool)}
	defer tx.release()

	err := fn(Scope{
		Purchases:  &txPurchases{memPurchases: u.purchases, tx: tx},
		Settlement: settlement.NewEngine(&txAccounts{memAccounts: u.accounts, tx: tx}),
	})
	if err != nil {
		tx.rollback()
	}
	return err
}

type memTx struct {
	uow  *memUnitOfWork
	held map[uuid.UUID]bool
	undo []func()
}

func (tx *memTx) lock(id uuid.UUID) {
	if tx.held[id] {
		return
	}
	tx.uow.row(id).Lock()
	tx.held[id] = true
}

func (tx *memTx) onRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

func (tx *memTx) release() {
	for id := range tx.held {
		tx.uow.row(id).Unlock()
	}
}

// txPurchases is the purchase store seen from inside a unit of work.
type txPurchases struct {
	*memPurchases
	tx *memTx
}

func (t *txPurchases) GetForUpdate(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	t.tx.lock(id)
	return t.memPurchases.GetByID(ctx, id)
}

func (t *txPurchases) GetByReferenceForUpdate(ctx context.Context, reference string) (*Purchase, error) {
	id, ok := t.memPurchases.idByReference(reference)
	if !ok {
		return nil, ErrNotFound
	}
	return t.GetForUpdate(ctx, id)
}

func (t *txPurchases) Create(ctx context.Context, p *Purchase) error {
	t.tx.lock(p.ID)
	if err := t.memPurchases.Create(ctx, p); err != nil {
		return err
	}
	id := p.ID
	t.tx.onRollback(func() { t.memPurchases.remove(id) })
	return nil
}

func (t *txPurchases) Update(ctx context.Context, p *Purchase) error {
	t.tx.lock(p.ID)
	prev, err := t.memPurchases.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := t.memPurchases.Update(ctx, p); err != nil {
		return err
	}
	t.tx.onRollback(func() { t.memPurchases.put(prev) })
	return nil
}

func (t *txPurchases) AppendMessage(ctx context.Context, m *Message) error {
	if err := t.memPurchases.AppendMessage(ctx, m); err != nil {
		return err
	}
	id := m.ID
	t.tx.onRollback(func() { t.memPurchases.removeMessage(id) })
	return nil
}

// txAccounts is the settlement store seen from inside a unit of work. An
// adjusted user row stays locked until the unit ends.
type txAccounts struct {
	*memAccounts
	tx *memTx
}

func (t *txAccounts) AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	t.tx.lock(userID)
	next, err := t.memAccounts.AdjustBalance(ctx, userID, delta)
	if err != nil {
		return next, err
	}
	t.tx.onRollback(func() { t.memAccounts.undoAdjust(userID, delta, decimal.Zero) })
	return next, nil
}

func (t *txAccounts) AdjustEarnings(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	t.tx.lock(userID)
	next, err := t.memAccounts.AdjustEarnings(ctx, userID, delta)
	if err != nil {
		return next, err
	}
	t.tx.onRollback(func() { t.memAccounts.undoAdjust(userID, decimal.Zero, delta) })
	return next, nil
}

func (t *txAccounts) InsertEarningLog(ctx context.Context, entry *settlement.EarningLog) error {
	if err := t.memAccounts.InsertEarningLog(ctx, entry); err != nil {
		return err
	}
	id := entry.ID
	t.tx.onRollback(func() { t.memAccounts.removeEntry(id) })
	return nil
}

func (t *txAccounts) InsertBalanceMovement(ctx context.Context, m *settlement.BalanceMovement) error {
	if err := t.memAccounts.InsertBalanceMovement(ctx, m); err != nil {
		return err
	}
	id := m.ID
	t.tx.onRollback(func() { t.memAccounts.removeEntry(id) })
	return nil
}

type memProjects map[uuid.UUID]*project.Project

func (m memProjects) GetByID(_ context.Context, id uuid.UUID) (*project.Project, error) {
	p, ok := m[id]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

type memUsers map[uuid.UUID]*user.User

func (m memUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m memUsers) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*user.User, error) {
	out := make(map[uuid.UUID]*user.User, len(ids))
	for _, id := range ids {
		if u, ok := m[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fixedTax decimal.Decimal

func (f fixedTax) TaxPercent(context.Context) decimal.Decimal { return decimal.Decimal(f) }

type sentMail struct {
	To       string
	Template string
	Subject  string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Queue(to, _, templateName, subject string, _ interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Template: templateName, Subject: subject})
}

func (m *recordingMailer) templates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		out = append(out, s.Template)
	}
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) count(typ string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// fakeRedirect is a scripted hosted-page gateway.
type fakeRedirect struct {
	mu           sync.Mutex
	beginErr     error
	verification *gateway.Verification
	requests     []gateway.RedirectRequest
}

func (f *fakeRedirect) Name() string { return gateway.ProviderPayTabs }

func (f *fakeRedirect) BeginRedirectPayment(_ context.Context, req gateway.RedirectRequest) (*gateway.RedirectSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &gateway.RedirectSession{
		RedirectURL: "https://pay.example.test/page/" + req.Reference,
		GatewayTxID: "TST" + req.Reference[len(req.Reference)-8:],
	}, nil
}

func (f *fakeRedirect) VerifyTransaction(_ context.Context, txID string) (*gateway.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verification == nil {
		return nil, gateway.Unavailable(gateway.ProviderPayTabs, fmt.Errorf("no verification scripted for %s", txID))
	}
	v := *f.verification
	return &v, nil
}

type mockCardGateway struct {
	mock.Mock
}

func (m *mockCardGateway) Name() string { return gateway.ProviderMercadoPago }

func (m *mockCardGateway) BeginCardCapture(ctx context.Context, req gateway.CardRequest) (*gateway.CardResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*gateway.CardResult)
	return res, args.Error(1)
}

func (m *mockCardGateway) VerifyTransaction(ctx context.Context, txID string) (*gateway.Verification, error) {
	args := m.Called(ctx, txID)
	v, _ := args.Get(0).(*gateway.Verification)
	return v, args.Error(1)
}

type memAttachments struct {
	mu      sync.Mutex
	objects map[string]bool
}

func (m *memAttachments) PresignPut(_ context.Context, key, _ string, _ int64, _ time.Duration) (string, error) {
	return "https://upload.example.test/" + key + "?sig=1", nil
}

func (m *memAttachments) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key], nil
}

func (m *memAttachments) GetURL(key string) string {
	return "https://cdn.example.test/" + key
}

func (m *memAttachments) put(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = true
}

const (
	testMerchant = "PT-1001"
	testSecret   = "server-key-for-tests"
	projectTitle = "Portfolio Starter Kit"
)

type testEnv struct {
	svc         *Service
	purchases   *memPurchases
	accounts    *memAccounts
	mailer      *recordingMailer
	sink        *recordingSink
	redirect    *fakeRedirect
	card        *mockCardGateway
	attachments *memAttachments
	signer      *paytabs.Signer

	buyer    *user.User
	seller   *user.User
	admin    *user.User
	stranger *user.User
	project  *project.Project
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mkUser := func(email string, role user.Role) *user.User {
		return &user.User{ID: uuid.New(), Email: email, Name: email, Role: role}
	}
	env := &testEnv{
		purchases:   newMemPurchases(),
		accounts:    newMemAccounts(),
		mailer:      &recordingMailer{},
		sink:        &recordingSink{},
		redirect:    &fakeRedirect{},
		card:        &mockCardGateway{},
		attachments: &memAttachments{objects: map[string]bool{}},
		signer:      paytabs.NewSigner(testMerchant, testSecret, paytabs.HashSHA256),
		buyer:       mkUser("buyer@example.com", user.RoleUser),
		seller:      mkUser("seller@example.com", user.RoleUser),
		admin:       mkUser("admin@example.com", user.RoleAdmin),
		stranger:    mkUser("stranger@example.com", user.RoleUser),
	}
	env.project = &project.Project{
		ID:       uuid.New(),
		SellerID: env.seller.ID,
		Title:    projectTitle,
		Price:    decimal.RequireFromString("200"),
		Currency: "USD",
		Status:   project.StatusPublished,
		IsActive: true,
	}

	env.accounts.set(env.buyer.ID, "500", "0")
	env.accounts.set(env.seller.ID, "0", "0")
	env.accounts.set(env.stranger.ID, "0", "0")

	users := memUsers{}
	for _, u := range []*user.User{env.buyer, env.seller, env.admin, env.stranger} {
		users[u.ID] = u
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var tick int64
	var clockMu sync.Mutex
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	env.svc = NewService(Deps{
		UoW:       &memUnitOfWork{purchases: env.purchases, accounts: env.accounts},
		Purchases: env.purchases,
		Projects:  memProjects{env.project.ID: env.project},
		Users:     users,
		Tax:       fixedTax(decimal.NewFromInt(10)),
		Redirect:  env.redirect,
		Card:      env.card,
		Verifier:  env.signer,
		Storage:   env.attachments,
		Mailer:    env.mailer,
		Events:    env.sink,
		Config: Config{
			DefaultCurrency: "USD",
			FrontendURL:     "https://market.example.test",
			BackendURL:      "https://api.example.test",
		},
		Now: now,
	})
	return env
}

func (e *testEnv) actor(u *user.User) Actor {
	return Actor{UserID: u.ID, IsAdmin: u.Role == user.RoleAdmin}
}

func (e *testEnv) createReq(method PaymentMethod) *CreatePurchaseRequest {
	return &CreatePurchaseRequest{ProjectID: e.project.ID.String(), PaymentMethod: string(method)}
}

// signedCallback builds a callback for p signed over the given amount.
func (e *testEnv) signedCallback(t *testing.T, p *Purchase, amount, status string) CallbackInput {
	t.Helper()
	sig, err := e.signer.Sign(*p.GatewayReference, decimal.RequireFromString(amount), p.Currency)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return CallbackInput{
		Reference: *p.GatewayReference,
		TranRef:   *p.GatewayTxID,
		Status:    status,
		Amount:    amount,
		Currency:  p.Currency,
		Signature: sig,
	}
}
