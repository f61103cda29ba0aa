package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/analytics"
	"github.com/platformplatform/account-api/internal/api/apierrors"
	"github.com/platformplatform/account-api/internal/api/mailer"
	"github.com/platformplatform/account-api/internal/api/validation"
	"github.com/platformplatform/account-api/internal/shared/db/gormdb"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/pkg/api/auth"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/platformplatform/account-api/pkg/api/request"
	"github.com/platformplatform/account-api/pkg/api/returntypes"
	uuid "github.com/satori/go.uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailInUse       = apierrors.NewNotAcceptableError("EMAIL_IN_USE")
	ErrTooManyAttempts  = apierrors.NewNotAcceptableError("TOO_MANY_ATTEMPTS").WithMessage("Too many attempts.")
	ErrCodeExpired      = apierrors.NewNotAcceptableError("CODE_EXPIRED").WithMessage("The code is no longer valid, please request a new code.")
	ErrWrongCode        = apierrors.NewNotAcceptableError("WRONG_CODE").WithMessage("The code is wrong or no longer valid.")
	ErrAlreadyCompleted = apierrors.NewNotAcceptableError("ALREADY_COMPLETED").WithMessage("The code has already been used.")
	ErrTooManyResends   = apierrors.NewNotAcceptableError("TOO_MANY_RESENDS").WithMessage("Too many resends, please start over.")
)

type EmailPayload struct {
	Email string `json:"email"`
}

func (p EmailPayload) FillLogContext(lctx logutil.Context) {
	lctx["email"] = p.Email
}

func (p *EmailPayload) validate() error {
	p.Email = validation.NormalizeEmail(p.Email)
	v := apierrors.NewValidationError()
	validation.Email(v, "email", p.Email)
	return v.OrNil()
}

type CodePayload struct {
	Code string `json:"code"`
}

func (p CodePayload) validate() error {
	v := apierrors.NewValidationError()
	validation.VerificationCode(v, "code", p.Code)
	return v.OrNil()
}

type Service interface {
	//url:/api/account/signups/start method:POST
	StartSignup(rc *request.AnonymousContext, payload *EmailPayload) (*returntypes.EmailLoginStarted, error)

	//url:/api/account/signups/{email_login_id}/complete method:POST
	CompleteSignup(rc *request.AnonymousContext, id *request.EmailLoginID, payload *CodePayload) (*returntypes.UserInfo, error)

	//url:/api/account/signups/{email_login_id}/resend-code method:POST
	ResendSignupCode(rc *request.AnonymousContext, id *request.EmailLoginID) (*returntypes.EmailLoginStarted, error)

	//url:/api/account/authentication/login/start method:POST
	StartLogin(rc *request.AnonymousContext, payload *EmailPayload) (*returntypes.EmailLoginStarted, error)

	//url:/api/account/authentication/login/{email_login_id}/complete method:POST
	CompleteLogin(rc *request.AnonymousContext, id *request.EmailLoginID, payload *CodePayload) (*returntypes.UserInfo, error)

	//url:/api/account/authentication/login/{email_login_id}/resend-code method:POST
	ResendLoginCode(rc *request.AnonymousContext, id *request.EmailLoginID) (*returntypes.EmailLoginStarted, error)

	//url:/api/account/authentication/logout method:POST
	Logout(rc *request.AuthorizedContext) error

	//url:/api/account/users/me
	Me(rc *request.AuthorizedContext) (*returntypes.UserInfo, error)
}

type BasicService struct {
	Authorizer *auth.Authorizer
	Mailer     mailer.Mailer
	Analytics  analytics.Tracker

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Now        func() time.Time
}

func (s BasicService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s BasicService) bcryptCost() int {
	if s.BcryptCost != 0 {
		return s.BcryptCost
	}
	return bcrypt.DefaultCost
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", errors.Wrap(err, "failed to generate random code")
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s BasicService) hashCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost())
	if err != nil {
		return "", errors.Wrap(err, "failed to hash code")
	}
	return string(hash), nil
}

func isEmailInUse(db *gorm.DB, email string) (bool, error) {
	var count int
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, errors.Wrapf(err, "failed to count users with email %s", email)
	}
	return count != 0, nil
}

func emailInUseError(email string) error {
	return ErrEmailInUse.WithMessage(fmt.Sprintf("The email '%s' is already in use by another account.", email))
}

func startedResponse(el *models.EmailLogin) *returntypes.EmailLoginStarted {
	return &returntypes.EmailLoginStarted{
		EmailLoginID:    el.PublicID,
		ValidForSeconds: int(models.EmailLoginValidFor / time.Second),
	}
}

func (s BasicService) sendCode(rc *request.AnonymousContext, email, code string) error {
	msg, err := mailer.VerificationCode(email, code, int(models.EmailLoginValidFor/time.Minute))
	if err != nil {
		return err
	}

	if err = s.Mailer.Send(rc.Ctx, *msg); err != nil {
		return errors.Wrap(err, "failed to send verification code")
	}

	return nil
}

func (s BasicService) startEmailLogin(rc *request.AnonymousContext, email string,
	purpose models.EmailLoginPurpose, userID *uint) (*models.EmailLogin, string, error) {

	code, err := generateCode()
	if err != nil {
		return nil, "", err
	}

	hash, err := s.hashCode(code)
	if err != nil {
		return nil, "", err
	}

	el := models.EmailLogin{
		PublicID:  uuid.NewV4().String(),
		Email:     email,
		Purpose:   purpose,
		CodeHash:  hash,
		ExpiresAt: s.now().Add(models.EmailLoginValidFor),
		UserID:    userID,
	}
	if err := rc.DB.Create(&el).Error; err != nil {
		return nil, "", errors.Wrap(err, "failed to create email login")
	}

	rc.Lctx["email_login_id"] = el.PublicID
	return &el, code, nil
}

func (s BasicService) StartSignup(rc *request.AnonymousContext, payload *EmailPayload) (*returntypes.EmailLoginStarted, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}

	inUse, err := isEmailInUse(rc.DB, payload.Email)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, emailInUseError(payload.Email)
	}

	el, code, err := s.startEmailLogin(rc, payload.Email, models.EmailLoginPurposeSignup, nil)
	if err != nil {
		return nil, err
	}

	if err = s.sendCode(rc, el.Email, code); err != nil {
		return nil, err
	}

	return startedResponse(el), nil
}

func (s BasicService) StartLogin(rc *request.AnonymousContext, payload *EmailPayload) (*returntypes.EmailLoginStarted, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}

	var user models.User
	err := rc.DB.Where("email = ?", payload.Email).First(&user).Error
	if err != nil && !gormdb.IsRecordNotFound(err) {
		return nil, errors.Wrapf(err, "failed to fetch user by email %s", payload.Email)
	}

	var userID *uint
	if err == nil {
		userID = &user.ID
	}

	// the login is created for unknown emails too: the response must not reveal registered emails
	el, code, err := s.startEmailLogin(rc, payload.Email, models.EmailLoginPurposeLogin, userID)
	if err != nil {
		return nil, err
	}

	if userID == nil {
		rc.Log.Infof("No user with email, don't send login code")
		return startedResponse(el), nil
	}

	if err = s.sendCode(rc, el.Email, code); err != nil {
		return nil, err
	}

	return startedResponse(el), nil
}

func (s BasicService) fetchEmailLogin(db *gorm.DB, id string, purpose models.EmailLoginPurpose) (*models.EmailLogin, error) {
	var el models.EmailLogin
	if err := db.Where("public_id = ? AND purpose = ?", id, purpose).First(&el).Error; err != nil {
		if gormdb.IsRecordNotFound(err) {
			return nil, errors.Wrapf(apierrors.ErrNotFound, "no email login %s", id)
		}
		return nil, errors.Wrapf(err, "failed to fetch email login %s", id)
	}

	return &el, nil
}

// completeEmailLogin checks the code and marks the login completed.
func (s BasicService) completeEmailLogin(rc *request.AnonymousContext, id string,
	purpose models.EmailLoginPurpose, code string) (*models.EmailLogin, error) {

	el, err := s.fetchEmailLogin(rc.DB, id, purpose)
	if err != nil {
		return nil, err
	}

	if el.Completed {
		return nil, ErrAlreadyCompleted
	}

	if !el.HasRetriesLeft() {
		return nil, ErrTooManyAttempts
	}

	if el.IsExpired(s.now()) {
		return nil, ErrCodeExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(el.CodeHash), []byte(code)) != nil {
		err = rc.DB.Model(&models.EmailLogin{}).Where("id = ?", el.ID).
			UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
		if err != nil {
			return nil, errors.Wrap(err, "failed to increment retry count")
		}

		rc.Log.Infof("Wrong code, attempt %d", el.RetryCount+1)
		return nil, ErrWrongCode
	}

	res := rc.DB.Model(&models.EmailLogin{}).Where("id = ? AND completed = ?", el.ID, false).
		UpdateColumn("completed", true)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to complete email login")
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyCompleted
	}

	el.Completed = true
	return el, nil
}

func (s BasicService) CompleteSignup(rc *request.AnonymousContext, id *request.EmailLoginID,
	payload *CodePayload) (*returntypes.UserInfo, error) {

	if err := payload.validate(); err != nil {
		return nil, err
	}

	el, err := s.completeEmailLogin(rc, id.EmailLoginID, models.EmailLoginPurposeSignup, payload.Code)
	if err != nil {
		return nil, err
	}

	user, err := s.createTenant(rc, el.Email)
	if err != nil {
		return nil, err
	}

	if err = s.Authorizer.CreateAuthorization(rc.SessCtx, user); err != nil {
		return nil, errors.Wrap(err, "failed to create authorization")
	}

	s.Analytics.Track(user.TenantID, analytics.EventSignedUp, map[string]interface{}{
		"email": user.Email,
	})

	ret := returntypes.NewUserInfo(user)
	return &ret, nil
}

// createTenant makes tenant with the owner and the free subscription.
func (s BasicService) createTenant(rc *request.AnonymousContext, email string) (user *models.User, retErr error) {
	tx, finishTx, err := gormdb.StartTx(rc.DB)
	if err != nil {
		return nil, err
	}
	defer finishTx(&retErr)

	inUse, err := isEmailInUse(tx, email)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, emailInUseError(email)
	}

	tenant := models.Tenant{
		State: models.TenantStateActive,
	}
	if err = tx.Create(&tenant).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create tenant")
	}

	now := s.now()
	user = &models.User{
		TenantID:       tenant.ID,
		Email:          email,
		Role:           models.UserRoleOwner,
		EmailConfirmed: true,
		LastSeenAt:     &now,
	}
	if err = tx.Create(user).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to create owner of tenant %d", tenant.ID)
	}

	sub := models.Subscription{
		TenantID: tenant.ID,
		Plan:     models.PlanBasis,
	}
	if err = tx.Create(&sub).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to create subscription of tenant %d", tenant.ID)
	}

	rc.Lctx["tenant_id"] = tenant.ID
	rc.Log.Infof("Created tenant with owner %d", user.ID)
	return user, nil
}

func (s BasicService) CompleteLogin(rc *request.AnonymousContext, id *request.EmailLoginID,
	payload *CodePayload) (*returntypes.UserInfo, error) {

	if err := payload.validate(); err != nil {
		return nil, err
	}

	el, err := s.completeEmailLogin(rc, id.EmailLoginID, models.EmailLoginPurposeLogin, payload.Code)
	if err != nil {
		return nil, err
	}

	if el.UserID == nil {
		return nil, ErrWrongCode
	}

	var user models.User
	if err = rc.DB.Where("id = ?", *el.UserID).First(&user).Error; err != nil {
		if gormdb.IsRecordNotFound(err) {
			return nil, errors.Wrapf(apierrors.ErrNotFound, "user %d was deleted", *el.UserID)
		}
		return nil, errors.Wrapf(err, "failed to fetch user %d", *el.UserID)
	}

	now := s.now()
	err = rc.DB.Model(&user).UpdateColumns(map[string]interface{}{
		"email_confirmed": true,
		"last_seen_at":    now,
	}).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to update user %d on login", user.ID)
	}
	user.EmailConfirmed = true
	user.LastSeenAt = &now

	if err = s.Authorizer.CreateAuthorization(rc.SessCtx, &user); err != nil {
		return nil, errors.Wrap(err, "failed to create authorization")
	}

	ret := returntypes.NewUserInfo(&user)
	return &ret, nil
}

func (s BasicService) resendCode(rc *request.AnonymousContext, id string,
	purpose models.EmailLoginPurpose) (*returntypes.EmailLoginStarted, error) {

	el, err := s.fetchEmailLogin(rc.DB, id, purpose)
	if err != nil {
		return nil, err
	}

	if el.Completed {
		return nil, ErrAlreadyCompleted
	}
	if el.ResendCount >= models.EmailLoginMaxResends {
		return nil, ErrTooManyResends
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	hash, err := s.hashCode(code)
	if err != nil {
		return nil, err
	}

	res := rc.DB.Model(&models.EmailLogin{}).Where("id = ? AND resend_count = ?", el.ID, el.ResendCount).
		UpdateColumns(map[string]interface{}{
			"code_hash":    hash,
			"retry_count":  0,
			"resend_count": el.ResendCount + 1,
			"expires_at":   s.now().Add(models.EmailLoginValidFor),
		})
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to update email login")
	}
	if res.RowsAffected == 0 {
		return nil, ErrTooManyResends
	}

	if purpose == models.EmailLoginPurposeSignup || el.UserID != nil {
		if err = s.sendCode(rc, el.Email, code); err != nil {
			return nil, err
		}
	}

	return startedResponse(el), nil
}

func (s BasicService) ResendSignupCode(rc *request.AnonymousContext, id *request.EmailLoginID) (*returntypes.EmailLoginStarted, error) {
	return s.resendCode(rc, id.EmailLoginID, models.EmailLoginPurposeSignup)
}

func (s BasicService) ResendLoginCode(rc *request.AnonymousContext, id *request.EmailLoginID) (*returntypes.EmailLoginStarted, error) {
	return s.resendCode(rc, id.EmailLoginID, models.EmailLoginPurposeLogin)
}

func (s BasicService) Logout(rc *request.AuthorizedContext) error {
	rc.AuthSess.Delete()
	return nil
}

func (s BasicService) Me(rc *request.AuthorizedContext) (*returntypes.UserInfo, error) {
	ret := returntypes.NewUserInfo(rc.User)
	return &ret, nil
}
