package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"mailroute/backend/internal/config"
	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/storage"
)

// Store 基于 GORM 的存储实现，支持 PostgreSQL 与 MySQL
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

// Open 按配置的数据库类型打开连接并迁移表结构
func Open(cfg config.DatabaseConfig) (*Store, error) {
	dialector, err := Dialector(cfg.Type, cfg.DSN)
	if err != nil {
		return nil, err
	}
	store, err := NewStoreWithDialector(dialector, cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Dialector 根据数据库类型返回 GORM dialector
func Dialector(dbType, dsn string) (gorm.Dialector, error) {
	switch dbType {
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", dbType)
	}
}

// DialectorFromConn 基于已打开的 database/sql 连接构造 dialector
func DialectorFromConn(dbType string, conn *sql.DB) (gorm.Dialector, error) {
	switch dbType {
	case "postgres", "postgresql":
		return postgres.New(postgres.Config{Conn: conn}), nil
	case "mysql":
		return mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true}), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", dbType)
	}
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, cfg config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &Store{db: db}, nil
}

// NewStoreFromDB 包装一个已打开的 GORM 连接
func NewStoreFromDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Models 返回需要迁移的全部模型
func Models() []any {
	return []any{
		&domain.Account{},
		&domain.Destination{},
		&domain.Rule{},
	}
}

// Migrate 自动迁移数据库表结构
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(Models()...)
}

// DropAll 按依赖的逆序删除全部表
func (s *Store) DropAll() error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := s.db.Migrator().DropTable(models[i]); err != nil {
			return err
		}
	}
	return nil
}

// translateError 把 GORM 错误映射为存储层哨兵错误
func translateError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrDuplicate
	default:
		return err
	}
}

// ========== Account Repository ==========

// CreateAccount 创建账户
func (s *Store) CreateAccount(account *domain.Account) error {
	return translateError(s.db.Create(account).Error, storage.ErrAccountNotFound)
}

// GetAccountByID 根据 ID 获取账户
func (s *Store) GetAccountByID(id string) (*domain.Account, error) {
	return s.findAccount("id = ?", id)
}

// GetAccountByUsername 根据用户名获取账户
func (s *Store) GetAccountByUsername(username string) (*domain.Account, error) {
	return s.findAccount("username = ?", username)
}

// GetAccountByEmail 根据邮箱获取账户
func (s *Store) GetAccountByEmail(email string) (*domain.Account, error) {
	return s.findAccount("email = ?", email)
}

// GetAccountByResetToken 根据重置令牌摘要获取账户
func (s *Store) GetAccountByResetToken(tokenHash string) (*domain.Account, error) {
	if tokenHash == "" {
		return nil, storage.ErrAccountNotFound
	}
	return s.findAccount("password_reset_token = ?", tokenHash)
}

// aggregateColumns 由 Commit* 在行锁内维护的账户列
var aggregateColumns = []string{"aliases", "alias_count", "destinations", "destination_count"}

// UpdateAccount 保存账户资料与凭证字段，不写别名与目标地址集合。
// 写入后从库中回填集合，调用方持有的副本与库保持一致。
func (s *Store) UpdateAccount(account *domain.Account) error {
	omit := append([]string{"created_at"}, aggregateColumns...)
	result := s.db.Model(account).Select("*").Omit(omit...).Updates(account)
	if result.Error != nil {
		return translateError(result.Error, storage.ErrAccountNotFound)
	}
	if result.RowsAffected == 0 {
		return storage.ErrAccountNotFound
	}
	err := s.db.Model(&domain.Account{}).Select(aggregateColumns).Where("id = ?", account.ID).Take(account).Error
	return translateError(err, storage.ErrAccountNotFound)
}

func (s *Store) findAccount(query string, arg any) (*domain.Account, error) {
	var account domain.Account
	if err := s.db.Where(query, arg).First(&account).Error; err != nil {
		return nil, translateError(err, storage.ErrAccountNotFound)
	}
	return &account, nil
}

// ========== Destination Repository ==========

// GetDestination 根据 ID 获取目标地址
func (s *Store) GetDestination(id string) (*domain.Destination, error) {
	var dst domain.Destination
	if err := s.db.Where("id = ?", id).First(&dst).Error; err != nil {
		return nil, translateError(err, storage.ErrDestinationNotFound)
	}
	return &dst, nil
}

// GetDestinationByAddress 根据地址获取目标地址
func (s *Store) GetDestinationByAddress(address string) (*domain.Destination, error) {
	var dst domain.Destination
	if err := s.db.Where("address = ?", address).First(&dst).Error; err != nil {
		return nil, translateError(err, storage.ErrDestinationNotFound)
	}
	return &dst, nil
}

// ListDestinationsByUsername 返回用户的全部目标地址
func (s *Store) ListDestinationsByUsername(username string) ([]domain.Destination, error) {
	destinations := make([]domain.Destination, 0)
	err := s.db.Where("username = ?", username).Order("created_at ASC").Find(&destinations).Error
	return destinations, err
}

// ========== Rule Repository ==========

// GetRule 根据 ID 获取规则
func (s *Store) GetRule(id string) (*domain.Rule, error) {
	var rule domain.Rule
	if err := s.db.Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, translateError(err, storage.ErrRuleNotFound)
	}
	return &rule, nil
}

// GetRuleByAlias 根据别名获取规则
func (s *Store) GetRuleByAlias(alias string) (*domain.Rule, error) {
	var rule domain.Rule
	if err := s.db.Where("alias = ?", alias).First(&rule).Error; err != nil {
		return nil, translateError(err, storage.ErrRuleNotFound)
	}
	return &rule, nil
}

// ListRulesByUsername 返回用户的全部规则
func (s *Store) ListRulesByUsername(username string) ([]domain.Rule, error) {
	rules := make([]domain.Rule, 0)
	err := s.db.Where("username = ?", username).Order("created_at ASC").Find(&rules).Error
	return rules, err
}

// ========== Routing Writer ==========

// withAccount 在事务中锁定账户行，执行 mutate 后保存账户。
// 计数字段由 Account.BeforeSave 在同一事务内重新计算。
func (s *Store) withAccount(accountID string, mutate func(tx *gorm.DB, account *domain.Account) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var account domain.Account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", accountID).First(&account).Error
		if err != nil {
			return translateError(err, storage.ErrAccountNotFound)
		}
		if err := mutate(tx, &account); err != nil {
			return err
		}
		return translateError(tx.Save(&account).Error, storage.ErrAccountNotFound)
	})
}

// CommitRuleCreate 写入新规则并把别名加入账户集合
func (s *Store) CommitRuleCreate(rule *domain.Rule, accountID string) error {
	return s.withAccount(accountID, func(tx *gorm.DB, account *domain.Account) error {
		if err := tx.Create(rule).Error; err != nil {
			return translateError(err, storage.ErrRuleNotFound)
		}
		account.AddAlias(rule.Entry())
		return nil
	})
}

// CommitRuleUpdate 覆盖规则并替换账户中的别名条目
func (s *Store) CommitRuleUpdate(rule *domain.Rule, previousAlias, accountID string) error {
	return s.withAccount(accountID, func(tx *gorm.DB, account *domain.Account) error {
		var existing domain.Rule
		if err := tx.Where("id = ?", rule.ID).First(&existing).Error; err != nil {
			return translateError(err, storage.ErrRuleNotFound)
		}
		rule.CreatedAt = existing.CreatedAt
		if err := tx.Save(rule).Error; err != nil {
			return translateError(err, storage.ErrRuleNotFound)
		}
		account.ReplaceAlias(previousAlias, rule.Entry())
		return nil
	})
}

// CommitRuleToggle 写入规则启用状态并同步账户内嵌条目
func (s *Store) CommitRuleToggle(rule *domain.Rule, accountID string) error {
	return s.withAccount(accountID, func(tx *gorm.DB, account *domain.Account) error {
		result := tx.Model(&domain.Rule{}).Where("id = ?", rule.ID).Updates(map[string]any{
			"enabled":          rule.Enabled,
			"provider_rule_id": rule.ProviderRuleID,
			"updated_at":       time.Now().UTC(),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrRuleNotFound
		}
		if err := tx.Where("id = ?", rule.ID).First(rule).Error; err != nil {
			return translateError(err, storage.ErrRuleNotFound)
		}
		if !account.SetAliasActive(rule.Alias, rule.Enabled) {
			account.AddAlias(rule.Entry())
		}
		return nil
	})
}

// CommitRuleDelete 删除规则并从账户集合中移除别名
func (s *Store) CommitRuleDelete(rule *domain.Rule, accountID string) error {
	return s.withAccount(accountID, func(tx *gorm.DB, account *domain.Account) error {
		var existing domain.Rule
		if err := tx.Where("id = ?", rule.ID).First(&existing).Error; err != nil {
			return translateError(err, storage.ErrRuleNotFound)
		}
		if err := tx.Delete(&existing).Error; err != nil {
			return err
		}
		account.RemoveAlias(existing.Alias)
		return nil
	})
}

// CommitDestinationCreate 写入新目标地址并加入账户集合
func (s *Store) CommitDestinationCreate(destination *domain.Destination, accountID string) error {
	return s.withAccount(accountID, func(tx *gorm.DB, account *domain.Account) error {
		if err := tx.Create(destination).Error; err != nil {
			return translateError(err, storage.ErrDestinationNotFound)
		}
		account.AddDestination(destination.Entry())
		return nil
	})
}

// CommitDestinationVerify 写入验证时间并同步账户内嵌条目
func (s *Store) CommitDestinationVerify(destination *domain.Destination, accountID string) error {
	return s.withAccount(accountID, func(tx *gorm.DB, account *domain.Account) error {
		result := tx.Model(&domain.Destination{}).Where("id = ?", destination.ID).Updates(map[string]any{
			"verified_at": destination.VerifiedAt,
			"modified_at": destination.ModifiedAt,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrDestinationNotFound
		}
		if !account.SetDestinationVerified(destination.Address, destination.IsVerified()) {
			account.AddDestination(destination.Entry())
		}
		return nil
	})
}

// CommitDestinationDelete 删除目标地址并从账户集合中移除
func (s *Store) CommitDestinationDelete(destination *domain.Destination, accountID string) error {
	return s.withAccount(accountID, func(tx *gorm.DB, account *domain.Account) error {
		var existing domain.Destination
		if err := tx.Where("id = ?", destination.ID).First(&existing).Error; err != nil {
			return translateError(err, storage.ErrDestinationNotFound)
		}
		if err := tx.Delete(&existing).Error; err != nil {
			return err
		}
		account.RemoveDestination(existing.Address)
		return nil
	})
}

// ========== 工具方法 ==========

// OpenConnections 返回当前打开的连接数
func (s *Store) OpenConnections() int {
	sqlDB, err := s.db.DB()
	if err != nil {
		return 0
	}
	return sqlDB.Stats().OpenConnections
}

// Health 检查数据库连接
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
