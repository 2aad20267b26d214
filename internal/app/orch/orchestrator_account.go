package orch

import (
	"context"
	"errors"
	"strings"

	"github.com/dkeye/danmaku/internal/captcha"
	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/domain"
	"github.com/dkeye/danmaku/internal/storage"
)

type LoginResult struct {
	Token string          `json:"token"`
	User  *domain.Profile `json:"user,omitempty"`
}

// Login exchanges credentials for a token. Admin consoles log in with the admin
// password alone and are authorized on the spot.
func (o *Orchestrator) Login(sess *core.Session, account, password string) (LoginResult, error) {
	if sess.Role() == core.RoleAdmin {
		return o.adminLogin(sess, password)
	}
	user, err := o.Users.FindByAccount(strings.TrimSpace(account))
	if errors.Is(err, storage.ErrUserNotFound) {
		return LoginResult{}, core.WrongUserNameOrPassword
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := o.Hasher.Verify(user.PassWord, password); err != nil {
		o.audit("account", "Login", *user, "wrong password", false)
		return LoginResult{}, core.WrongUserNameOrPassword
	}
	user.LastLoginTime = o.now()
	if err := o.Users.Update(user); err != nil {
		return LoginResult{}, err
	}
	token, err := o.Tokens.IssueUser(*user)
	if err != nil {
		return LoginResult{}, err
	}
	p := user.Profile(domain.StatusOffline)
	o.audit("account", "Login", *user, "ok", true)
	return LoginResult{Token: token, User: &p}, nil
}

func (o *Orchestrator) adminLogin(sess *core.Session, password string) (LoginResult, error) {
	if o.AdminPassword == "" || password != o.AdminPassword {
		o.audit("admin", "Login", adminUser, "wrong password", false)
		return LoginResult{}, core.WrongUserNameOrPassword
	}
	token, err := o.Tokens.IssueAdmin()
	if err != nil {
		return LoginResult{}, err
	}
	sess.Authorize()
	o.Registry.AddAdmin(sess)
	o.audit("admin", "Login", adminUser, "ok", true)
	return LoginResult{Token: token}, nil
}

// Register creates an account with both privileges granted.
func (o *Orchestrator) Register(email, nickName, password string) (domain.Profile, error) {
	email, nickName = strings.TrimSpace(email), strings.TrimSpace(nickName)
	if err := domain.ValidateEmail(email); err != nil {
		return domain.Profile{}, core.EmailFormatError
	}
	if err := domain.ValidateNickName(nickName); err != nil {
		return domain.Profile{}, core.UserNameFormatError
	}
	if err := domain.ValidatePassword(password); err != nil {
		return domain.Profile{}, core.PasswordFormatError
	}
	if err := o.checkEmail(email, 0); err != nil {
		return domain.Profile{}, err
	}
	if err := o.checkNickName(nickName, 0); err != nil {
		return domain.Profile{}, err
	}
	hash, err := o.Hasher.Hash(password)
	if err != nil {
		return domain.Profile{}, err
	}
	user := domain.NewUser(email, nickName, hash, o.now())
	if err := o.Users.Create(user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return domain.Profile{}, core.DuplicateEmail
		}
		return domain.Profile{}, err
	}
	o.audit("account", "Register", *user, email, true)
	return user.Profile(domain.StatusOffline), nil
}

func (o *Orchestrator) checkEmail(email string, except domain.UserID) error {
	taken, err := o.Users.EmailTaken(email, except)
	if err != nil {
		return err
	}
	if taken {
		return core.DuplicateEmail
	}
	return nil
}

func (o *Orchestrator) checkNickName(name string, except domain.UserID) error {
	taken, err := o.Users.NickNameTaken(name, except)
	if err != nil {
		return err
	}
	if taken {
		return core.DuplicateUsername
	}
	return nil
}

// RequestCaptcha issues a code for email and hands it to the mailer.
func (o *Orchestrator) RequestCaptcha(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := domain.ValidateEmail(email); err != nil {
		return core.EmailFormatError
	}
	code, err := o.Captcha.Request(email)
	if errors.Is(err, captcha.ErrCooldown) {
		return core.CaptchaCoolDown
	}
	if err != nil {
		return err
	}
	return o.Mailer.SendCaptcha(ctx, email, code)
}

func (o *Orchestrator) VerifyCaptcha(email, code string) error {
	switch err := o.Captcha.Verify(email, code); {
	case err == nil:
		return nil
	case errors.Is(err, captcha.ErrNotFound):
		return core.CaptchaInvalid
	case errors.Is(err, captcha.ErrMismatch):
		return core.CaptchaInvalidOrWrong
	default:
		return err
	}
}

// editSelf loads the caller's stored account, applies fn, persists it and
// refreshes the cached profile.
func (o *Orchestrator) editSelf(sess *core.Session, fn func(*domain.User) error) (*domain.User, error) {
	u, err := o.current(sess)
	if err != nil {
		return nil, err
	}
	user, err := o.Users.FindByID(u.Profile.ID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, core.InvalidUser
	}
	if err != nil {
		return nil, err
	}
	if err := fn(user); err != nil {
		return nil, err
	}
	if err := o.Users.Update(user); err != nil {
		return nil, err
	}
	o.Registry.UpdateProfile(user.ID, func(p *domain.User) { *p = *user })
	return user, nil
}

func (o *Orchestrator) ChangeNickName(sess *core.Session, name string) (domain.Profile, error) {
	name = strings.TrimSpace(name)
	user, err := o.editSelf(sess, func(user *domain.User) error {
		if err := domain.ValidateNickName(name); err != nil {
			return core.UserNameFormatError
		}
		if err := o.checkNickName(name, user.ID); err != nil {
			return err
		}
		user.NickName = name
		return nil
	})
	if err != nil {
		return domain.Profile{}, err
	}
	o.audit("account", "ChangeNickName", *user, name, true)
	return o.profile(user), nil
}

func (o *Orchestrator) ChangeEmail(sess *core.Session, email string) (domain.Profile, error) {
	email = strings.TrimSpace(email)
	user, err := o.editSelf(sess, func(user *domain.User) error {
		if err := domain.ValidateEmail(email); err != nil {
			return core.EmailFormatError
		}
		if err := o.checkEmail(email, user.ID); err != nil {
			return err
		}
		user.Email = email
		return nil
	})
	if err != nil {
		return domain.Profile{}, err
	}
	o.audit("account", "ChangeEmail", *user, email, true)
	return o.profile(user), nil
}

// ChangePassword bumps the security stamp, so every other token stops working.
// The caller receives a fresh token.
func (o *Orchestrator) ChangePassword(sess *core.Session, oldPassword, newPassword string) (LoginResult, error) {
	user, err := o.editSelf(sess, func(user *domain.User) error {
		if err := o.Hasher.Verify(user.PassWord, oldPassword); err != nil {
			return core.WrongUserNameOrPassword
		}
		if oldPassword == newPassword {
			return core.OldPasswordEqualNewPassword
		}
		if err := domain.ValidatePassword(newPassword); err != nil {
			return core.PasswordFormatError
		}
		hash, err := o.Hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		user.PassWord = hash
		user.Touch(o.now())
		return nil
	})
	if err != nil {
		return LoginResult{}, err
	}
	token, err := o.Tokens.IssueUser(*user)
	if err != nil {
		return LoginResult{}, err
	}
	o.audit("account", "ChangePassword", *user, "ok", true)
	p := o.profile(user)
	return LoginResult{Token: token, User: &p}, nil
}

func (o *Orchestrator) profile(user *domain.User) domain.Profile {
	status := domain.StatusOffline
	if u, ok := o.Registry.FindByID(user.ID); ok {
		status = u.Status
	}
	return user.Profile(status)
}
