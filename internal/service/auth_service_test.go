package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus-tutor-go/internal/model"
	"campus-tutor-go/internal/repository"
	"campus-tutor-go/pkg/token"
)

// fakeCredentialRepo 是 CredentialRepository 的内存实现，
// 可注入错误以模拟存储故障。
type fakeCredentialRepo struct {
	whitelist map[string]bool
	admins    map[string]bool
	codes     map[string]model.VerificationCode

	whitelistErr error
	adminErr     error
	saveErr      error
	getErr       error
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{
		whitelist: make(map[string]bool),
		admins:    make(map[string]bool),
		codes:     make(map[string]model.VerificationCode),
	}
}

func (f *fakeCredentialRepo) IsWhitelisted(ctx context.Context, identity string) (bool, error) {
	if f.whitelistErr != nil {
		return false, f.whitelistErr
	}
	return f.whitelist[identity], nil
}

func (f *fakeCredentialRepo) AddToWhitelist(ctx context.Context, identity string) error {
	f.whitelist[identity] = true
	return nil
}

func (f *fakeCredentialRepo) RemoveFromWhitelist(ctx context.Context, identity string) error {
	delete(f.whitelist, identity)
	return nil
}

func (f *fakeCredentialRepo) Whitelist(ctx context.Context) ([]string, error) {
	var out []string
	for id := range f.whitelist {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeCredentialRepo) IsAdmin(ctx context.Context, identity string) (bool, error) {
	if f.adminErr != nil {
		return false, f.adminErr
	}
	return f.admins[identity], nil
}

func (f *fakeCredentialRepo) AddAdmin(ctx context.Context, identity string) error {
	f.admins[identity] = true
	return nil
}

func (f *fakeCredentialRepo) RemoveAdmin(ctx context.Context, identity string) error {
	delete(f.admins, identity)
	return nil
}

func (f *fakeCredentialRepo) Admins(ctx context.Context) ([]string, error) {
	var out []string
	for id := range f.admins {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeCredentialRepo) SaveCode(ctx context.Context, identity string, record model.VerificationCode, ttl time.Duration) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.codes[identity] = record
	return nil
}

func (f *fakeCredentialRepo) GetCode(ctx context.Context, identity string) (*model.VerificationCode, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	record, ok := f.codes[identity]
	if !ok {
		return nil, repository.ErrCodeNotFound
	}
	return &record, nil
}

func (f *fakeCredentialRepo) DeleteCode(ctx context.Context, identity string) error {
	delete(f.codes, identity)
	return nil
}

// fakeMailer 记录投递的验证码，可配置为投递失败。
type fakeMailer struct {
	sentTo   []string
	lastCode string
	sendErr  error
}

func (f *fakeMailer) SendCode(identity, code string) error {
	f.lastCode = code
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentTo = append(f.sentTo, identity)
	return nil
}

func newTestAuthService() (AuthService, *fakeCredentialRepo, *fakeMailer) {
	repo := newFakeCredentialRepo()
	mail := &fakeMailer{}
	jwtManager := token.NewJWTManager("test-secret", 24)
	return NewAuthService(repo, mail, jwtManager), repo, mail
}

func TestVerificationFlow(t *testing.T) {
	ctx := context.Background()
	svc, repo, mail := newTestAuthService()
	repo.whitelist["student@example.edu"] = true

	// 申请验证码
	if err := svc.RequestVerification(ctx, "student@example.edu"); err != nil {
		t.Fatalf("RequestVerification: %v", err)
	}
	if len(mail.sentTo) != 1 || mail.sentTo[0] != "student@example.edu" {
		t.Fatalf("code not delivered, sentTo = %v", mail.sentTo)
	}
	if len(mail.lastCode) != 6 {
		t.Fatalf("code length = %d, want 6", len(mail.lastCode))
	}

	// 校验并签发令牌
	tokenString, claims, err := svc.VerifyCode(ctx, "student@example.edu", mail.lastCode)
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if tokenString == "" {
		t.Fatal("empty session token")
	}
	if claims.Identity != "student@example.edu" {
		t.Errorf("claims.Identity = %q", claims.Identity)
	}
	if claims.Role != token.RoleUser {
		t.Errorf("claims.Role = %q, want %q", claims.Role, token.RoleUser)
	}

	// 会话令牌可以被无状态地校验
	verified, err := svc.VerifyToken(tokenString)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if verified.Identity != claims.Identity {
		t.Errorf("verified identity = %q", verified.Identity)
	}

	// 单次使用：同一验证码不能再次消费
	if _, _, err := svc.VerifyCode(ctx, "student@example.edu", mail.lastCode); !errors.Is(err, ErrNoCodeFound) {
		t.Errorf("second VerifyCode err = %v, want ErrNoCodeFound", err)
	}
}

func TestRequestVerificationNotWhitelisted(t *testing.T) {
	ctx := context.Background()
	svc, _, mail := newTestAuthService()

	err := svc.RequestVerification(ctx, "stranger@example.edu")
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
	if len(mail.sentTo) != 0 {
		t.Errorf("code delivered to non-whitelisted identity")
	}
}

func TestRequestVerificationStoreUnavailable(t *testing.T) {
	// 白名单校验是 fail-closed 的：存储故障时拒绝
	ctx := context.Background()
	svc, repo, mail := newTestAuthService()
	repo.whitelist["student@example.edu"] = true
	repo.whitelistErr = errors.New("connection refused")

	if err := svc.RequestVerification(ctx, "student@example.edu"); err == nil {
		t.Fatal("expected error when whitelist store is unavailable")
	}
	if len(mail.sentTo) != 0 {
		t.Errorf("code delivered despite store failure")
	}
}

func TestRequestVerificationDeliveryFailure(t *testing.T) {
	// 投递失败时验证码保持有效，之后仍可校验
	ctx := context.Background()
	svc, repo, mail := newTestAuthService()
	repo.whitelist["student@example.edu"] = true
	mail.sendErr = errors.New("smtp timeout")

	err := svc.RequestVerification(ctx, "student@example.edu")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("err = %v, want ErrDeliveryFailed", err)
	}
	if _, ok := repo.codes["student@example.edu"]; !ok {
		t.Fatal("code record discarded after delivery failure")
	}

	if _, _, err := svc.VerifyCode(ctx, "student@example.edu", mail.lastCode); err != nil {
		t.Errorf("VerifyCode after delivery failure: %v", err)
	}
}

func TestVerifyCodeMismatchKeepsRecord(t *testing.T) {
	ctx := context.Background()
	svc, repo, mail := newTestAuthService()
	repo.whitelist["student@example.edu"] = true
	if err := svc.RequestVerification(ctx, "student@example.edu"); err != nil {
		t.Fatalf("RequestVerification: %v", err)
	}

	if _, _, err := svc.VerifyCode(ctx, "student@example.edu", "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("err = %v, want ErrInvalidCode", err)
	}

	// 有效期内可以重试
	if _, _, err := svc.VerifyCode(ctx, "student@example.edu", mail.lastCode); err != nil {
		t.Errorf("retry with correct code: %v", err)
	}
}

func TestVerifyCodeExpired(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestAuthService()
	repo.codes["student@example.edu"] = model.VerificationCode{
		CodeHash:  "$2a$10$irrelevant",
		ExpiresAt: time.Now().Add(-time.Minute),
	}

	if _, _, err := svc.VerifyCode(ctx, "student@example.edu", "123456"); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("err = %v, want ErrCodeExpired", err)
	}

	// 过期记录在命中时删除，再次校验报无验证码
	if _, _, err := svc.VerifyCode(ctx, "student@example.edu", "123456"); !errors.Is(err, ErrNoCodeFound) {
		t.Errorf("err = %v, want ErrNoCodeFound after expiry cleanup", err)
	}
}

func TestVerifyCodeNoPendingCode(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestAuthService()
	if _, _, err := svc.VerifyCode(ctx, "student@example.edu", "123456"); !errors.Is(err, ErrNoCodeFound) {
		t.Fatalf("err = %v, want ErrNoCodeFound", err)
	}
}

func TestVerifyCodeAdminRole(t *testing.T) {
	ctx := context.Background()
	svc, repo, mail := newTestAuthService()
	repo.whitelist["ta@example.edu"] = true
	repo.admins["ta@example.edu"] = true

	if err := svc.RequestVerification(ctx, "ta@example.edu"); err != nil {
		t.Fatalf("RequestVerification: %v", err)
	}
	_, claims, err := svc.VerifyCode(ctx, "ta@example.edu", mail.lastCode)
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if claims.Role != token.RoleAdmin {
		t.Errorf("claims.Role = %q, want %q", claims.Role, token.RoleAdmin)
	}
}

func TestVerifyCodeAdminLookupFailure(t *testing.T) {
	// 无法确认管理员身份时按普通用户签发
	ctx := context.Background()
	svc, repo, mail := newTestAuthService()
	repo.whitelist["ta@example.edu"] = true
	repo.admins["ta@example.edu"] = true
	if err := svc.RequestVerification(ctx, "ta@example.edu"); err != nil {
		t.Fatalf("RequestVerification: %v", err)
	}
	repo.adminErr = errors.New("connection refused")

	_, claims, err := svc.VerifyCode(ctx, "ta@example.edu", mail.lastCode)
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if claims.Role != token.RoleUser {
		t.Errorf("claims.Role = %q, want %q on admin lookup failure", claims.Role, token.RoleUser)
	}
}

func TestVerifyTokenInvalid(t *testing.T) {
	svc, _, _ := newTestAuthService()
	if _, err := svc.VerifyToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
