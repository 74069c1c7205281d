package impl

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"meter/internal/domain/entity"
	"meter/internal/domain/repository"

	"github.com/google/uuid"
)

// memoryStore is an in-memory database. Transactions are serialized and
// rolled back by restoring a snapshot, which is enough to observe the
// atomicity and row-claim behavior the services rely on.
type memoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users         map[uuid.UUID]*entity.User
	organizations map[uuid.UUID]*entity.Organization
	refreshTokens map[uuid.UUID]*entity.RefreshToken
	products      map[string]*entity.BillingProduct
	prices        map[string]*entity.BillingPrice

	commits   int
	rollbacks int
	// userLocks counts LockByID calls per user.
	userLocks map[uuid.UUID]int
	// failOn makes the named operation fail inside transactions.
	failOn string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:         make(map[uuid.UUID]*entity.User),
		organizations: make(map[uuid.UUID]*entity.Organization),
		refreshTokens: make(map[uuid.UUID]*entity.RefreshToken),
		products:      make(map[string]*entity.BillingProduct),
		prices:        make(map[string]*entity.BillingPrice),
		userLocks:     make(map[uuid.UUID]int),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memorySnapshot struct {
	refreshTokens map[uuid.UUID]*entity.RefreshToken
	products      map[string]*entity.BillingProduct
	prices        map[string]*entity.BillingPrice
}

func (s *memoryStore) snapshot() memorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := memorySnapshot{
		refreshTokens: make(map[uuid.UUID]*entity.RefreshToken, len(s.refreshTokens)),
		products:      make(map[string]*entity.BillingProduct, len(s.products)),
		prices:        make(map[string]*entity.BillingPrice, len(s.prices)),
	}
	for id, token := range s.refreshTokens {
		copied := *token
		snap.refreshTokens[id] = &copied
	}
	for id, product := range s.products {
		copied := *product
		snap.products[id] = &copied
	}
	for id, price := range s.prices {
		copied := *price
		snap.prices[id] = &copied
	}

	return snap
}

func (s *memoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshTokens = snap.refreshTokens
	s.products = snap.products
	s.prices = snap.prices
}

// Execute implements repository.TransactionManager.
func (s *memoryStore) Execute(ctx context.Context, fn func(repository.RepositoryFactory) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		s.rollbacks++

		return err
	}
	s.commits++

	return nil
}

func (s *memoryStore) UserRepo() repository.UserRepository                 { return memoryUsers{s} }
func (s *memoryStore) OrganizationRepo() repository.OrganizationRepository { return memoryOrganizations{s} }
func (s *memoryStore) RefreshTokenRepo() repository.RefreshTokenRepository { return memoryRefreshTokens{s} }
func (s *memoryStore) ProductRepo() repository.BillingProductRepository    { return memoryProducts{s} }
func (s *memoryStore) PriceRepo() repository.BillingPriceRepository        { return memoryPrices{s} }

func (s *memoryStore) addUser(user *entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *memoryStore) deleteUser(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

func (s *memoryStore) tokensOf(userID uuid.UUID) []entity.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entity.RefreshToken
	for _, token := range s.refreshTokens {
		if token.UserID == userID {
			out = append(out, *token)
		}
	}

	return out
}

func (s *memoryStore) activeTokenCount(userID uuid.UUID, now time.Time) int {
	count := 0
	for _, token := range s.tokensOf(userID) {
		if token.IsActive(now) {
			count++
		}
	}

	return count
}

type memoryUsers struct{ s *memoryStore }

func (r memoryUsers) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user

	return &copied, nil
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, user := range r.s.users {
		if user.Email == email {
			copied := *user

			return &copied, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r memoryUsers) Create(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return repository.ErrUserAlreadyExists
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.s.users[user.ID] = user

	return nil
}

// LockByID only records the call; Execute already serializes transactions.
func (r memoryUsers) LockByID(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	r.s.userLocks[id]++

	return nil
}

func (s *memoryStore) lockCount(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.userLocks[userID]
}

type memoryOrganizations struct{ s *memoryStore }

func (r memoryOrganizations) Create(_ context.Context, org *entity.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	copied := *org
	r.s.organizations[org.ID] = &copied

	return nil
}

type memoryRefreshTokens struct{ s *memoryStore }

func (r memoryRefreshTokens) Create(_ context.Context, token *entity.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	copied := *token
	r.s.refreshTokens[token.ID] = &copied

	return nil
}

func (r memoryRefreshTokens) FindActiveByUserID(_ context.Context, userID uuid.UUID, now time.Time, limit int) ([]*entity.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var active []*entity.RefreshToken
	for _, token := range r.s.refreshTokens {
		if token.UserID == userID && token.IsActive(now) {
			copied := *token
			active = append(active, &copied)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })
	if len(active) > limit {
		active = active[:limit]
	}

	return active, nil
}

func (r memoryRefreshTokens) Revoke(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	token, ok := r.s.refreshTokens[id]
	if !ok || token.RevokedAt != nil {
		return repository.ErrRefreshTokenNotFound
	}
	revokedAt := at
	token.RevokedAt = &revokedAt

	return nil
}

func (r memoryRefreshTokens) RevokeAllByUserID(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var revoked int64
	for _, token := range r.s.refreshTokens {
		if token.UserID == userID && token.RevokedAt == nil {
			revokedAt := at
			token.RevokedAt = &revokedAt
			revoked++
		}
	}

	return revoked, nil
}

type memoryProducts struct{ s *memoryStore }

func (r memoryProducts) Upsert(_ context.Context, product *entity.BillingProduct) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.failOn == "product.upsert" {
		return errInjected
	}
	copied := *product
	copied.Metadata = maps.Clone(product.Metadata)
	r.s.products[product.ExternalID] = &copied

	return nil
}

func (r memoryProducts) DeactivateMissing(_ context.Context, keep []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return deactivateMissing(r.s.products, keep, func(p *entity.BillingProduct) *bool { return &p.Active }), nil
}

type memoryPrices struct{ s *memoryStore }

func (r memoryPrices) Upsert(_ context.Context, price *entity.BillingPrice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.failOn == "price.upsert" {
		return errInjected
	}
	copied := *price
	copied.Metadata = maps.Clone(price.Metadata)
	r.s.prices[price.ExternalID] = &copied

	return nil
}

func (r memoryPrices) DeactivateMissing(_ context.Context, keep []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return deactivateMissing(r.s.prices, keep, func(p *entity.BillingPrice) *bool { return &p.Active }), nil
}

func (r memoryPrices) ListActivePlans(_ context.Context) ([]*entity.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var plans []*entity.Plan
	for _, price := range r.s.prices {
		product, ok := r.s.products[price.ProductExternalID]
		if !price.Active || !ok {
			continue
		}
		priceCopy, productCopy := *price, *product
		plans = append(plans, &entity.Plan{Price: &priceCopy, Product: &productCopy})
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].Product.Name != plans[j].Product.Name {
			return plans[i].Product.Name < plans[j].Product.Name
		}

		return amountOf(plans[i].Price) < amountOf(plans[j].Price)
	})

	return plans, nil
}

func amountOf(price *entity.BillingPrice) int64 {
	if price.UnitAmount == nil {
		return 1<<63 - 1
	}

	return *price.UnitAmount
}

func deactivateMissing[T any](rows map[string]*T, keep []string, active func(*T) *bool) int64 {
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}

	var changed int64
	for id, row := range rows {
		if _, ok := kept[id]; ok {
			continue
		}
		if flag := active(row); *flag {
			*flag = false
			changed++
		}
	}

	return changed
}
