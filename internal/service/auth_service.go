// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"campus-tutor-go/internal/model"
	"campus-tutor-go/internal/repository"
	"campus-tutor-go/pkg/hash"
	"campus-tutor-go/pkg/log"
	"campus-tutor-go/pkg/mailer"
	"campus-tutor-go/pkg/token"
)

// 认证流程的错误分类。对外响应时统一折叠为一条笼统的拒绝信息，
// 不暴露具体失败原因。
var (
	ErrNotAuthorized  = errors.New("身份不在白名单中")
	ErrDeliveryFailed = errors.New("验证码投递失败")
	ErrNoCodeFound    = errors.New("没有待验证的验证码")
	ErrCodeExpired    = errors.New("验证码已过期")
	ErrInvalidCode    = errors.New("验证码不正确")
	ErrInvalidToken   = errors.New("无效或已过期的会话令牌")
)

// codeTTL 是验证码自签发起的有效时长。
const codeTTL = 10 * time.Minute

// AuthService 定义了邮件验证码认证流程的接口。
type AuthService interface {
	// RequestVerification 为白名单内的身份生成并投递一个一次性验证码。
	RequestVerification(ctx context.Context, identity string) error
	// VerifyCode 校验验证码，成功时消费记录并签发会话令牌。
	VerifyCode(ctx context.Context, identity, code string) (string, *token.CustomClaims, error)
	// VerifyToken 无状态地校验会话令牌并返回其中的声明。
	VerifyToken(tokenString string) (*token.CustomClaims, error)
}

type authService struct {
	credentialRepo repository.CredentialRepository
	mail           mailer.Mailer
	jwtManager     *token.JWTManager
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(credentialRepo repository.CredentialRepository, mail mailer.Mailer, jwtManager *token.JWTManager) AuthService {
	return &authService{
		credentialRepo: credentialRepo,
		mail:           mail,
		jwtManager:     jwtManager,
	}
}

// RequestVerification 处理验证码申请。
// 白名单校验是 fail-closed 的：存储不可用时拒绝而不是放行。
// 新申请会覆盖该身份此前未使用的验证码。
func (s *authService) RequestVerification(ctx context.Context, identity string) error {
	ok, err := s.credentialRepo.IsWhitelisted(ctx, identity)
	if err != nil {
		return fmt.Errorf("白名单校验失败: %w", err)
	}
	if !ok {
		return ErrNotAuthorized
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("生成验证码失败: %w", err)
	}
	hashed, err := hash.HashCode(code)
	if err != nil {
		return fmt.Errorf("散列验证码失败: %w", err)
	}

	record := model.VerificationCode{
		CodeHash:  hashed,
		ExpiresAt: time.Now().Add(codeTTL),
	}
	if err := s.credentialRepo.SaveCode(ctx, identity, record, codeTTL); err != nil {
		return fmt.Errorf("保存验证码失败: %w", err)
	}

	// 投递失败时验证码保持有效，调用方可以重新发起申请
	if err := s.mail.SendCode(identity, code); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	log.Infof("[AuthService] 验证码已签发, identity: %s", identity)
	return nil
}

// VerifyCode 处理验证码校验。
// 过期记录在命中时删除；散列不匹配时记录保留，允许在有效期内重试；
// 校验成功即删除记录（单次使用），并按身份是否为管理员签发对应角色的令牌。
func (s *authService) VerifyCode(ctx context.Context, identity, code string) (string, *token.CustomClaims, error) {
	record, err := s.credentialRepo.GetCode(ctx, identity)
	if errors.Is(err, repository.ErrCodeNotFound) {
		return "", nil, ErrNoCodeFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("读取验证码失败: %w", err)
	}

	if time.Now().After(record.ExpiresAt) {
		if delErr := s.credentialRepo.DeleteCode(ctx, identity); delErr != nil {
			log.Warnf("[AuthService] 删除过期验证码失败, identity: %s, err: %v", identity, delErr)
		}
		return "", nil, ErrCodeExpired
	}

	if !hash.CheckCode(code, record.CodeHash) {
		return "", nil, ErrInvalidCode
	}

	// 单次使用：成功即删除
	if err := s.credentialRepo.DeleteCode(ctx, identity); err != nil {
		log.Warnf("[AuthService] 删除已消费验证码失败, identity: %s, err: %v", identity, err)
	}

	role := token.RoleUser
	isAdmin, err := s.credentialRepo.IsAdmin(ctx, identity)
	if err != nil {
		// 无法确认管理员身份时按普通用户签发
		log.Warnf("[AuthService] 管理员集合查询失败, identity: %s, err: %v", identity, err)
	} else if isAdmin {
		role = token.RoleAdmin
	}

	tokenString, err := s.jwtManager.GenerateToken(identity, role)
	if err != nil {
		return "", nil, fmt.Errorf("签发会话令牌失败: %w", err)
	}

	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return "", nil, fmt.Errorf("校验刚签发的令牌失败: %w", err)
	}

	log.Infof("[AuthService] 验证通过, identity: %s, role: %s", identity, role)
	return tokenString, claims, nil
}

// VerifyToken 校验会话令牌，签名错误和过期统一映射为 ErrInvalidToken。
func (s *authService) VerifyToken(tokenString string) (*token.CustomClaims, error) {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// generateCode 生成 [100000, 999999] 上均匀分布的 6 位数字验证码。
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
