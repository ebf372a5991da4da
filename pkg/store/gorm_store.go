package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"storyverse/pkg/domain"
)

const migrateLockID int64 = 52105210

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations. The connection pool is
// initialized once here at process start; callers share the returned handle.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BookModel{}, &PurchaseModel{}, &MessageModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'purchase_models'
					AND constraint_name = 'purchase_models_book_id_fkey'
				) THEN
					ALTER TABLE purchase_models
					ADD CONSTRAINT purchase_models_book_id_fkey
					FOREIGN KEY (book_id) REFERENCES book_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'purchase_models'
					AND constraint_name = 'purchase_models_user_id_fkey'
				) THEN
					ALTER TABLE purchase_models
					ADD CONSTRAINT purchase_models_user_id_fkey
					FOREIGN KEY (user_id) REFERENCES user_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure purchase foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "is_member", "plan_type", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return s.userFromModel(model)
}

// GetUserByID returns a user by ID, purchased books included.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return s.userFromModel(model)
}

// UpdateUserProfile changes name and email only.
func (s *GormStore) UpdateUserProfile(id, name, email string) error {
	return s.db.Model(&UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"name":       name,
			"email":      email,
			"updated_at": time.Now().UTC(),
		}).Error
}

// AddPurchasedBook records an entitlement edge. The insert is add-if-absent:
// ON CONFLICT DO NOTHING makes concurrent duplicates converge on one row.
func (s *GormStore) AddPurchasedBook(userID, bookID string) error {
	edge := PurchaseModel{
		UserID:    userID,
		BookID:    bookID,
		CreatedAt: time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error
}

// GrantMembership sets the member flag and plan in a single update.
func (s *GormStore) GrantMembership(userID string, plan domain.PlanType) error {
	return s.db.Model(&UserModel{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"is_member":  true,
			"plan_type":  string(plan),
			"updated_at": time.Now().UTC(),
		}).Error
}

// ListPurchasedBooks returns the user's collection ordered by acquisition.
func (s *GormStore) ListPurchasedBooks(userID string) ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Model(&BookModel{}).
		Joins("JOIN purchase_models ON purchase_models.book_id = book_models.id").
		Where("purchase_models.user_id = ?", userID).
		Order("purchase_models.created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	books := make([]domain.Book, 0, len(models))
	for _, m := range models {
		books = append(books, bookFromModel(m))
	}
	return books, nil
}

// SaveBook stores or updates a catalog entry.
func (s *GormStore) SaveBook(b domain.Book) error {
	model := bookToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "author", "cover_url", "content_key", "price_minor", "is_premium", "status", "rating", "review", "attributes", "updated_at"}),
	}).Create(&model).Error
}

// ListBooks returns the catalog ordered by created_at.
func (s *GormStore) ListBooks() ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	books := make([]domain.Book, 0, len(models))
	for _, m := range models {
		books = append(books, bookFromModel(m))
	}
	return books, nil
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// UpdateBookFeedback updates rating and review.
func (s *GormStore) UpdateBookFeedback(id string, rating int, review string) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if rating > 0 {
		updates["rating"] = rating
	}
	if review != "" {
		updates["review"] = review
	}
	return s.db.Model(&BookModel{}).Where("id = ?", id).Updates(updates).Error
}

// SaveMessage records a contact message.
func (s *GormStore) SaveMessage(msg domain.Message) error {
	model := MessageModel{
		ID:        msg.ID,
		Name:      msg.Name,
		Email:     msg.Email,
		Subject:   msg.Subject,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	}
	return s.db.Create(&model).Error
}

func (s *GormStore) userFromModel(m UserModel) (domain.User, bool, error) {
	var edges []PurchaseModel
	if err := s.db.Where("user_id = ?", m.ID).Order("created_at ASC").Find(&edges).Error; err != nil {
		return domain.User{}, false, err
	}
	purchased := make([]string, 0, len(edges))
	for _, edge := range edges {
		purchased = append(purchased, edge.BookID)
	}
	plan := domain.PlanType(m.PlanType)
	if plan == "" {
		plan = domain.PlanNovice
	}
	return domain.User{
		ID:             m.ID,
		Name:           m.Name,
		Email:          m.Email,
		PasswordHash:   m.PasswordHash,
		IsMember:       m.IsMember,
		PlanType:       plan,
		PurchasedBooks: purchased,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, true, nil
}

func userToModel(u domain.User) UserModel {
	plan := u.PlanType
	if plan == "" {
		plan = domain.PlanNovice
	}
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		IsMember:     u.IsMember,
		PlanType:     string(plan),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	attrs, _ := json.Marshal(b.Attributes)
	return BookModel{
		ID:         b.ID,
		Title:      b.Title,
		Author:     b.Author,
		CoverURL:   b.CoverURL,
		ContentKey: b.ContentKey,
		PriceMinor: b.Price,
		IsPremium:  b.IsPremium,
		Status:     b.Status,
		Rating:     b.Rating,
		Review:     b.Review,
		Attributes: attrs,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	var attrs map[string]string
	if len(m.Attributes) > 0 {
		_ = json.Unmarshal(m.Attributes, &attrs)
	}
	return domain.Book{
		ID:         m.ID,
		Title:      m.Title,
		Author:     m.Author,
		CoverURL:   m.CoverURL,
		ContentKey: m.ContentKey,
		Price:      m.PriceMinor,
		IsPremium:  m.IsPremium,
		Status:     m.Status,
		Rating:     m.Rating,
		Review:     m.Review,
		Attributes: attrs,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
