// Package seed loads demo users and listings for local development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	"github.com/bookswap/bookswap-backend/pkg/logger"
)

type passwordHasher interface {
	Hash(password string) (string, error)
}

type DemoUser struct {
	Username string
	Email    string
	Password string
	Role     enums.UserRole
}

type DemoListing struct {
	SellerEmail string
	Title       string
	Author      string
	Description string
	Condition   enums.ListingCondition
	Category    enums.ListingCategory
	Price       int64
	ISBN        string
	City        string
	Phone       string
	UPIID       string
}

// Options controls a seed run. Reset wipes users, listings and carts first.
type Options struct {
	Reset    bool
	Users    []DemoUser
	Listings []DemoListing
}

type Summary struct {
	UsersCreated    int
	ListingsCreated int
}

func DefaultUsers() []DemoUser {
	return []DemoUser{
		{Username: "john_doe", Email: "john@example.com", Password: "password123", Role: enums.UserRoleUser},
		{Username: "jane_smith", Email: "jane@example.com", Password: "password123", Role: enums.UserRoleUser},
		{Username: "admin", Email: "admin@example.com", Password: "admin12345", Role: enums.UserRoleAdmin},
	}
}

func DefaultListings() []DemoListing {
	return []DemoListing{
		{
			SellerEmail: "john@example.com",
			Title:       "The Great Gatsby",
			Author:      "F. Scott Fitzgerald",
			Description: "Classic American novel in excellent condition. A timeless story of love, wealth, and the American Dream.",
			Condition:   enums.ListingConditionGood,
			Category:    enums.ListingCategoryFiction,
			Price:       299,
			ISBN:        "9780743273565",
			City:        "Mumbai",
			Phone:       "9876543210",
			UPIID:       "john@paytm",
		},
		{
			SellerEmail: "jane@example.com",
			Title:       "JavaScript: The Good Parts",
			Author:      "Douglas Crockford",
			Description: "Essential reading for JavaScript developers. Covers the best features of JavaScript and how to use them effectively.",
			Condition:   enums.ListingConditionLikeNew,
			Category:    enums.ListingCategoryAcademic,
			Price:       450,
			ISBN:        "9780596517748",
			City:        "Bangalore",
			Phone:       "9123456789",
			UPIID:       "jane@phonepe",
		},
		{
			SellerEmail: "john@example.com",
			Title:       "Harry Potter and the Philosopher's Stone",
			Author:      "J.K. Rowling",
			Description: "First book in the Harry Potter series. Perfect for young readers or adults who want to relive the magic.",
			Condition:   enums.ListingConditionGood,
			Category:    enums.ListingCategoryChildren,
			Price:       199,
			City:        "Delhi",
			Phone:       "9876543210",
			UPIID:       "john@paytm",
		},
		{
			SellerEmail: "jane@example.com",
			Title:       "Sapiens: A Brief History of Humankind",
			Author:      "Yuval Noah Harari",
			Description: "Fascinating exploration of human history and evolution. Thought-provoking and well-researched.",
			Condition:   enums.ListingConditionNew,
			Category:    enums.ListingCategoryNonFiction,
			Price:       399,
			City:        "Pune",
			Phone:       "9123456789",
			UPIID:       "jane@phonepe",
		},
	}
}

type Seeder struct {
	db     *gorm.DB
	hasher passwordHasher
	logg   *logger.Logger
}

func NewSeeder(db *gorm.DB, hasher passwordHasher, logg *logger.Logger) (*Seeder, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	return &Seeder{db: db, hasher: hasher, logg: logg}, nil
}

// Run inserts the demo data in one transaction. Existing users (by email)
// and listings (by seller, title and author) are left alone, so repeated
// runs are safe.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var summary Summary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if opts.Reset {
			if err := reset(tx); err != nil {
				return err
			}
		}

		sellers := make(map[string]*models.User, len(opts.Users))
		for _, u := range opts.Users {
			user, created, err := s.ensureUser(tx, u)
			if err != nil {
				return err
			}
			if created {
				summary.UsersCreated++
			}
			sellers[strings.ToLower(u.Email)] = user
		}

		for _, l := range opts.Listings {
			seller, ok := sellers[strings.ToLower(l.SellerEmail)]
			if !ok {
				return fmt.Errorf("listing %q references unknown seller %s", l.Title, l.SellerEmail)
			}
			created, err := ensureListing(tx, seller, l)
			if err != nil {
				return err
			}
			if created {
				summary.ListingsCreated++
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"users_created":    summary.UsersCreated,
			"listings_created": summary.ListingsCreated,
			"reset":            opts.Reset,
		}), "seed completed")
	}
	return summary, nil
}

func reset(tx *gorm.DB) error {
	all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.CartItem{}, &models.Cart{}, &models.ListingImage{}, &models.Listing{}, &models.User{}} {
		if err := all.Delete(model).Error; err != nil {
			return fmt.Errorf("reset %T: %w", model, err)
		}
	}
	return nil
}

func (s *Seeder) ensureUser(tx *gorm.DB, u DemoUser) (*models.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := s.hasher.Hash(u.Password)
	if err != nil {
		return nil, false, fmt.Errorf("hash password for %s: %w", email, err)
	}
	user := &models.User{
		Username:     u.Username,
		Email:        email,
		PasswordHash: hash,
		Role:         u.Role,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(user)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create user %s: %w", email, res.Error)
	}
	if res.RowsAffected == 1 {
		return user, true, nil
	}

	var existing models.User
	if err := tx.Where("email = ?", email).First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("load user %s: %w", email, err)
	}
	return &existing, false, nil
}

func ensureListing(tx *gorm.DB, seller *models.User, l DemoListing) (bool, error) {
	var count int64
	if err := tx.Model(&models.Listing{}).
		Where("seller_id = ? AND title = ? AND author = ?", seller.ID, l.Title, l.Author).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check listing %q: %w", l.Title, err)
	}
	if count > 0 {
		return false, nil
	}

	listing := &models.Listing{
		Title:       l.Title,
		Author:      l.Author,
		Description: l.Description,
		Condition:   l.Condition,
		Category:    l.Category,
		Price:       decimal.NewFromInt(l.Price),
		City:        l.City,
		Quantity:    1,
		SellerID:    seller.ID,
		SellerPhone: l.Phone,
		SellerEmail: seller.Email,
		UPIID:       l.UPIID,
	}
	if l.ISBN != "" {
		isbn := l.ISBN
		listing.ISBN = &isbn
	}
	if err := tx.Create(listing).Error; err != nil {
		return false, fmt.Errorf("create listing %q: %w", l.Title, err)
	}
	return true, nil
}
