package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"farmtrace/internal/cache"
	apperrors "farmtrace/internal/errors"
	"farmtrace/internal/ledger"
	"farmtrace/internal/logger"
	"farmtrace/internal/model"
	"farmtrace/internal/mq"
	"farmtrace/internal/repository"
	"farmtrace/internal/wallet"
)

const (
	bcryptCost        = 10
	minPasswordLength = 6
	userCacheTTL      = 5 * time.Minute
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Phone    string
	Name     string
	Location string
	Role     string
	Password string
}

// UserService manages stakeholder accounts and their custodial wallets.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, model.LedgerResult, error)
	Verify(ctx context.Context, id uuid.UUID) (*model.User, model.LedgerResult, error)
	SyncVerification(ctx context.Context, id uuid.UUID) (*model.User, error)
	Authenticate(ctx context.Context, phone, password string) (*model.User, error)
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	List(ctx context.Context, role model.Role, offset, limit int) ([]model.User, error)
	ExportPrivateKey(ctx context.Context, id uuid.UUID, password string) (string, error)
}

type userService struct {
	users     repository.UserRepository
	wallets   *wallet.Manager
	mirror    *LedgerMirror
	publisher *mq.Publisher
	cache     *cache.Client
	log       *logger.Logger
}

// NewUserService builds a UserService.
func NewUserService(
	users repository.UserRepository,
	wallets *wallet.Manager,
	mirror *LedgerMirror,
	publisher *mq.Publisher,
	cache *cache.Client,
	log *logger.Logger,
) UserService {
	return &userService{
		users:     users,
		wallets:   wallets,
		mirror:    mirror,
		publisher: publisher,
		cache:     cache,
		log:       log,
	}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return "user:" + id.String()
}

func validateRegistration(in RegisterInput) (RegisterInput, model.Role, error) {
	in.Phone = strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", "")
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)

	if !phonePattern.MatchString(in.Phone) {
		return in, "", apperrors.NewValidationError("phone", "must be 7 to 15 digits with an optional leading +")
	}
	if in.Name == "" {
		return in, "", apperrors.NewValidationError("name", "is required")
	}
	if len(in.Name) > 255 {
		return in, "", apperrors.NewValidationError("name", "is too long")
	}
	role, ok := model.ParseRole(strings.ToLower(strings.TrimSpace(in.Role)))
	if !ok {
		return in, "", apperrors.NewValidationError("role", "must be one of farmer, distributor, retailer, consumer")
	}
	if len(in.Password) < minPasswordLength {
		return in, "", apperrors.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	return in, role, nil
}

// Register creates an account with a fresh custodial wallet and announces it
// on the ledger, signed by the new wallet.
func (s *userService) Register(ctx context.Context, in RegisterInput) (*model.User, model.LedgerResult, error) {
	in, role, err := validateRegistration(in)
	if err != nil {
		return nil, model.LedgerResult{}, err
	}

	existing, err := s.users.FindByPhone(ctx, in.Phone)
	if err == nil && existing != nil {
		return nil, model.LedgerResult{}, apperrors.ErrDuplicateUser
	}
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, model.LedgerResult{}, fmt.Errorf("check user existence: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, model.LedgerResult{}, fmt.Errorf("hash password: %w", err)
	}

	w, err := s.wallets.Generate()
	if err != nil {
		return nil, model.LedgerResult{}, err
	}
	sealed, err := s.wallets.Encrypt(w.PrivateKey, in.Password)
	if err != nil {
		return nil, model.LedgerResult{}, fmt.Errorf("encrypt wallet: %w", err)
	}

	user := &model.User{
		Phone:               in.Phone,
		Name:                in.Name,
		Location:            in.Location,
		Role:                role,
		PasswordHash:        string(hashedPassword),
		WalletAddress:       w.Address,
		EncryptedPrivateKey: sealed.Ciphertext,
		KeyIV:               sealed.IV,
		KeySalt:             sealed.Salt,
		LedgerStatus:        model.LedgerStatusSkipped,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, model.LedgerResult{}, err
	}
	s.log.Info("User service: user registered", "user_id", user.ID, "role", user.Role, "wallet", user.WalletAddress)

	key, err := wallet.ParsePrivateKey(w.PrivateKey)
	if err != nil {
		return nil, model.LedgerResult{}, err
	}
	res := s.mirror.Submit(ctx, key, ledger.RegisterUser(role.Code()))
	logResult(s.log, "User service: registration mirrored", res, "user_id", user.ID)

	user.LedgerStatus = res.Status
	user.LedgerTxHash = res.TxHash
	if err := s.users.UpdateLedger(ctx, user.ID, res.Status, res.TxHash); err != nil {
		s.log.Error("User service: failed to record ledger outcome", "user_id", user.ID, "error", err)
	}

	s.publisher.Publish(ctx, mq.EventUserRegistered, map[string]any{
		"user_id":        user.ID,
		"role":           user.Role,
		"wallet_address": user.WalletAddress,
	})

	return user, res, nil
}

// Verify sets the verification flag. Verifying an already verified user
// succeeds without change. The flag is mirrored with the operator key; a
// repeat call only submits again when the contract does not hold the flag,
// so it doubles as the retry of a failed mirror.
func (s *userService) Verify(ctx context.Context, id uuid.UUID) (*model.User, model.LedgerResult, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, model.LedgerResult{}, fmt.Errorf("user %s: %w", id, err)
	}

	if user.Verified {
		if res, done := s.verifiedOnChain(ctx, user); done {
			return user, res, nil
		}
	} else {
		if err := s.users.MarkVerified(ctx, id); err != nil {
			return nil, model.LedgerResult{}, err
		}
		user.Verified = true
		_ = s.cache.Delete(ctx, s.cacheKey(id))
		s.log.Info("User service: user verified", "user_id", id)
		s.publisher.Publish(ctx, mq.EventUserVerified, map[string]any{"user_id": id})
	}

	res := s.mirror.SubmitAsOperator(ctx, ledger.VerifyUser(user.WalletAddress))
	logResult(s.log, "User service: verification mirrored", res, "user_id", id)

	return user, res, nil
}

// verifiedOnChain decides whether a repeat verification can skip the
// transaction. It returns false only when the contract lacks the flag.
func (s *userService) verifiedOnChain(ctx context.Context, user *model.User) (model.LedgerResult, bool) {
	if !s.mirror.HasOperator() {
		return model.LedgerResult{Status: model.LedgerStatusSkipped}, true
	}
	onChain, err := s.mirror.IsVerified(ctx, user.WalletAddress)
	switch {
	case errors.Is(err, ledger.ErrLedgerDisabled):
		return model.LedgerResult{Status: model.LedgerStatusDisabled}, true
	case err != nil:
		s.log.Warn("User service: verification lookup failed", "user_id", user.ID, "error", err)
		return model.NewLedgerFailure(err), true
	case onChain:
		return model.LedgerResult{Status: model.LedgerStatusSkipped}, true
	}
	return model.LedgerResult{}, false
}

// SyncVerification copies a positive on-chain verification flag into the database.
func (s *userService) SyncVerification(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}

	verified, err := s.mirror.IsVerified(ctx, user.WalletAddress)
	if err != nil {
		s.log.Warn("User service: failed to read verification from ledger", "user_id", id, "error", err)
		return nil, err
	}

	if verified && !user.Verified {
		if err := s.users.MarkVerified(ctx, id); err != nil {
			return nil, err
		}
		user.Verified = true
		_ = s.cache.Delete(ctx, s.cacheKey(id))
		s.log.Info("User service: verification synced from ledger", "user_id", id)
	}
	return user, nil
}

// Authenticate checks a phone and password pair.
func (s *userService) Authenticate(ctx context.Context, phone, password string) (*model.User, error) {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrAuthentication
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrAuthentication
	}
	return user, nil
}

func (s *userService) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var cached model.User
	if s.cache.GetJSON(ctx, s.cacheKey(id), &cached) {
		return &cached, nil
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	s.cache.SetJSON(ctx, s.cacheKey(id), user, userCacheTTL)
	return user, nil
}

func (s *userService) List(ctx context.Context, role model.Role, offset, limit int) ([]model.User, error) {
	if offset < 0 {
		return nil, apperrors.NewValidationError("offset", "must not be negative")
	}
	return s.users.List(ctx, role, offset, limit)
}

// ExportPrivateKey returns the decrypted wallet key to its owner.
func (s *userService) ExportPrivateKey(ctx context.Context, id uuid.UUID, password string) (string, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("user %s: %w", id, err)
	}
	key, err := s.wallets.Decrypt(encryptedKeyOf(user), password)
	if err != nil {
		return "", err
	}
	s.log.Warn("User service: private key exported", "user_id", id)
	return "0x" + key, nil
}
