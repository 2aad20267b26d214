package storage

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/dkeye/danmaku/internal/domain"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *domain.User) error {
	if err := r.db.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *UserRepository) FindByID(id domain.UserID) (*domain.User, error) {
	var u domain.User
	if err := r.db.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByAccount resolves an email or a nickname.
func (r *UserRepository) FindByAccount(account string) (*domain.User, error) {
	account = strings.TrimSpace(account)
	var u domain.User
	err := r.db.Where("email = ? OR nick_name = ?", account, account).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// EmailTaken reports whether another account than except already uses email.
func (r *UserRepository) EmailTaken(email string, except domain.UserID) (bool, error) {
	return r.taken("email = ?", email, except)
}

func (r *UserRepository) NickNameTaken(name string, except domain.UserID) (bool, error) {
	return r.taken("nick_name = ?", name, except)
}

func (r *UserRepository) taken(cond, value string, except domain.UserID) (bool, error) {
	var count int64
	err := r.db.Model(&domain.User{}).Where(cond, value).Where("id <> ?", except).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *UserRepository) Update(u *domain.User) error {
	if err := r.db.Save(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// SetFlag sets a boolean privilege column on every id and returns the ids that do not exist.
func (r *UserRepository) SetFlag(ids []domain.UserID, column string, value bool) ([]domain.UserID, error) {
	switch column {
	case "can_stream", "can_send_danmaku", "banned":
	default:
		return nil, errors.New("unknown flag column " + column)
	}
	var missing []domain.UserID
	err := r.db.Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			res := tx.Model(&domain.User{}).Where("id = ?", id).Update(column, value)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				missing = append(missing, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return missing, nil
}

func (r *UserRepository) List() ([]domain.User, error) {
	var users []domain.User
	if err := r.db.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
