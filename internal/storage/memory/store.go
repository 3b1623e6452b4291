package memory

import (
	"sort"
	"sync"
	"time"

	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/storage"
)

// Store 使用内存保存账户、目标地址与规则，主要用于开发验证和测试。
//
// 所有写操作持有同一把锁，对账提交中的实体写入与账户集合更新因此是原子的。
type Store struct {
	mu sync.RWMutex

	accounts     map[string]*domain.Account // accountID -> account
	byUsername   map[string]string          // username -> accountID
	byEmail      map[string]string          // email -> accountID
	byResetToken map[string]string          // reset token hash -> accountID

	destinations  map[string]*domain.Destination // destinationID -> destination
	byDestination map[string]string              // address -> destinationID

	rules   map[string]*domain.Rule // ruleID -> rule
	byAlias map[string]string       // alias -> ruleID
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		accounts:      make(map[string]*domain.Account),
		byUsername:    make(map[string]string),
		byEmail:       make(map[string]string),
		byResetToken:  make(map[string]string),
		destinations:  make(map[string]*domain.Destination),
		byDestination: make(map[string]string),
		rules:         make(map[string]*domain.Rule),
		byAlias:       make(map[string]string),
	}
}

// ========== Account Repository ==========

// CreateAccount 保存新账户，用户名或邮箱重复时返回 storage.ErrDuplicate。
func (s *Store) CreateAccount(account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return storage.ErrDuplicate
	}
	if _, exists := s.byUsername[account.Username]; exists {
		return storage.ErrDuplicate
	}
	if _, exists := s.byEmail[account.Email]; exists {
		return storage.ErrDuplicate
	}

	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Recount()

	stored := account.Clone()
	s.accounts[stored.ID] = stored
	s.indexAccountLocked(stored)
	return nil
}

// GetAccountByID 根据 ID 获取账户。
func (s *Store) GetAccountByID(id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// GetAccountByUsername 根据用户名获取账户。
func (s *Store) GetAccountByUsername(username string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountByIndexLocked(s.byUsername, username)
}

// GetAccountByEmail 根据邮箱获取账户。
func (s *Store) GetAccountByEmail(email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountByIndexLocked(s.byEmail, email)
}

// GetAccountByResetToken 根据重置令牌摘要获取账户。
func (s *Store) GetAccountByResetToken(tokenHash string) (*domain.Account, error) {
	if tokenHash == "" {
		return nil, storage.ErrAccountNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountByIndexLocked(s.byResetToken, tokenHash)
}

// UpdateAccount 覆盖账户资料与凭证字段并刷新索引。
// 别名与目标地址集合只由 Commit* 维护，这里沿用已存储的集合并回填给调用方。
func (s *Store) UpdateAccount(account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[account.ID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	if id, taken := s.byUsername[account.Username]; taken && id != account.ID {
		return storage.ErrDuplicate
	}
	if id, taken := s.byEmail[account.Email]; taken && id != account.ID {
		return storage.ErrDuplicate
	}

	s.unindexAccountLocked(existing)
	account.Aliases = append([]domain.AliasEntry(nil), existing.Aliases...)
	account.Destinations = append([]domain.DestinationEntry(nil), existing.Destinations...)
	account.UpdatedAt = time.Now().UTC()
	account.Recount()
	stored := account.Clone()
	s.accounts[stored.ID] = stored
	s.indexAccountLocked(stored)
	return nil
}

func (s *Store) accountByIndexLocked(index map[string]string, key string) (*domain.Account, error) {
	id, ok := index[key]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	account, ok := s.accounts[id]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (s *Store) indexAccountLocked(account *domain.Account) {
	s.byUsername[account.Username] = account.ID
	s.byEmail[account.Email] = account.ID
	if account.PasswordResetToken != "" {
		s.byResetToken[account.PasswordResetToken] = account.ID
	}
}

func (s *Store) unindexAccountLocked(account *domain.Account) {
	delete(s.byUsername, account.Username)
	delete(s.byEmail, account.Email)
	if account.PasswordResetToken != "" {
		delete(s.byResetToken, account.PasswordResetToken)
	}
}

// ========== Destination Repository ==========

// GetDestination 根据 ID 获取目标地址。
func (s *Store) GetDestination(id string) (*domain.Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dst, ok := s.destinations[id]
	if !ok {
		return nil, storage.ErrDestinationNotFound
	}
	return dst.Clone(), nil
}

// GetDestinationByAddress 根据地址获取目标地址。
func (s *Store) GetDestinationByAddress(address string) (*domain.Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDestination[address]
	if !ok {
		return nil, storage.ErrDestinationNotFound
	}
	return s.destinations[id].Clone(), nil
}

// ListDestinationsByUsername 返回用户的全部目标地址，按创建时间排序。
func (s *Store) ListDestinationsByUsername(username string) ([]domain.Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Destination, 0)
	for _, dst := range s.destinations {
		if dst.Username == username {
			result = append(result, *dst.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ========== Rule Repository ==========

// GetRule 根据 ID 获取规则。
func (s *Store) GetRule(id string) (*domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, storage.ErrRuleNotFound
	}
	cp := *rule
	return &cp, nil
}

// GetRuleByAlias 根据别名获取规则。
func (s *Store) GetRuleByAlias(alias string) (*domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAlias[alias]
	if !ok {
		return nil, storage.ErrRuleNotFound
	}
	cp := *s.rules[id]
	return &cp, nil
}

// ListRulesByUsername 返回用户的全部规则，按创建时间排序。
func (s *Store) ListRulesByUsername(username string) ([]domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Rule, 0)
	for _, rule := range s.rules {
		if rule.Username == username {
			result = append(result, *rule)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ========== Routing Writer ==========

// CommitRuleCreate 写入新规则并把别名加入账户集合。
func (s *Store) CommitRuleCreate(rule *domain.Rule, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	if _, exists := s.byAlias[rule.Alias]; exists {
		return storage.ErrDuplicate
	}
	if _, exists := s.rules[rule.ID]; exists {
		return storage.ErrDuplicate
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	stored := *rule
	s.rules[stored.ID] = &stored
	s.byAlias[stored.Alias] = stored.ID

	s.touchAccountLocked(account, func(a *domain.Account) { a.AddAlias(rule.Entry()) })
	return nil
}

// CommitRuleUpdate 覆盖规则并用新条目替换账户中 previousAlias 对应的条目。
func (s *Store) CommitRuleUpdate(rule *domain.Rule, previousAlias, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	existing, ok := s.rules[rule.ID]
	if !ok {
		return storage.ErrRuleNotFound
	}
	if id, taken := s.byAlias[rule.Alias]; taken && id != rule.ID {
		return storage.ErrDuplicate
	}

	delete(s.byAlias, existing.Alias)
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()
	stored := *rule
	s.rules[stored.ID] = &stored
	s.byAlias[stored.Alias] = stored.ID

	s.touchAccountLocked(account, func(a *domain.Account) { a.ReplaceAlias(previousAlias, rule.Entry()) })
	return nil
}

// CommitRuleToggle 写入规则的启用状态并同步账户内嵌条目。
func (s *Store) CommitRuleToggle(rule *domain.Rule, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	existing, ok := s.rules[rule.ID]
	if !ok {
		return storage.ErrRuleNotFound
	}

	existing.Enabled = rule.Enabled
	existing.ProviderRuleID = rule.ProviderRuleID
	existing.UpdatedAt = time.Now().UTC()
	*rule = *existing

	s.touchAccountLocked(account, func(a *domain.Account) {
		if !a.SetAliasActive(rule.Alias, rule.Enabled) {
			a.AddAlias(rule.Entry())
		}
	})
	return nil
}

// CommitRuleDelete 删除规则并从账户集合中移除别名。
func (s *Store) CommitRuleDelete(rule *domain.Rule, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	existing, ok := s.rules[rule.ID]
	if !ok {
		return storage.ErrRuleNotFound
	}

	delete(s.rules, existing.ID)
	delete(s.byAlias, existing.Alias)

	s.touchAccountLocked(account, func(a *domain.Account) { a.RemoveAlias(existing.Alias) })
	return nil
}

// CommitDestinationCreate 写入新目标地址并加入账户集合。
func (s *Store) CommitDestinationCreate(destination *domain.Destination, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	if _, exists := s.byDestination[destination.Address]; exists {
		return storage.ErrDuplicate
	}
	if _, exists := s.destinations[destination.ID]; exists {
		return storage.ErrDuplicate
	}

	if destination.CreatedAt.IsZero() {
		destination.CreatedAt = time.Now().UTC()
	}
	if destination.ModifiedAt.IsZero() {
		destination.ModifiedAt = destination.CreatedAt
	}
	stored := destination.Clone()
	s.destinations[stored.ID] = stored
	s.byDestination[stored.Address] = stored.ID

	s.touchAccountLocked(account, func(a *domain.Account) { a.AddDestination(destination.Entry()) })
	return nil
}

// CommitDestinationVerify 写入验证时间并同步账户内嵌条目。
func (s *Store) CommitDestinationVerify(destination *domain.Destination, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	if _, ok := s.destinations[destination.ID]; !ok {
		return storage.ErrDestinationNotFound
	}

	stored := destination.Clone()
	s.destinations[stored.ID] = stored

	s.touchAccountLocked(account, func(a *domain.Account) {
		if !a.SetDestinationVerified(destination.Address, destination.IsVerified()) {
			a.AddDestination(destination.Entry())
		}
	})
	return nil
}

// CommitDestinationDelete 删除目标地址并从账户集合中移除。
func (s *Store) CommitDestinationDelete(destination *domain.Destination, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	existing, ok := s.destinations[destination.ID]
	if !ok {
		return storage.ErrDestinationNotFound
	}

	delete(s.destinations, existing.ID)
	delete(s.byDestination, existing.Address)

	s.touchAccountLocked(account, func(a *domain.Account) { a.RemoveDestination(existing.Address) })
	return nil
}

// touchAccountLocked 在锁内修改账户集合并重新计算计数
func (s *Store) touchAccountLocked(account *domain.Account, mutate func(a *domain.Account)) {
	mutate(account)
	account.Recount()
	account.UpdatedAt = time.Now().UTC()
}

// ========== 工具方法 ==========

// Close 内存存储无需释放资源。
func (s *Store) Close() error {
	return nil
}

// Health 内存存储始终可用。
func (s *Store) Health() error {
	return nil
}
