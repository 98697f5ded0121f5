// Package mailer 提供了验证码邮件的发送能力。
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"campus-tutor-go/internal/config"
	"campus-tutor-go/pkg/log"
)

// Mailer defines the interface for out-of-band code delivery.
type Mailer interface {
	SendCode(identity, code string) error
}

type smtpMailer struct {
	cfg config.SMTPConfig
}

// NewMailer 创建一个基于 SMTP 的 Mailer 实例。
func NewMailer(cfg config.SMTPConfig) Mailer {
	return &smtpMailer{cfg: cfg}
}

// SendCode 通过 SMTP 将明文验证码投递到 identity 邮箱。
func (m *smtpMailer) SendCode(identity, code string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	subject := m.cfg.Subject
	if subject == "" {
		subject = "课程助教登录验证码"
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", identity))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(fmt.Sprintf("您的验证码是 %s，10 分钟内有效。请勿转发给他人。\r\n", code))

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{identity}, []byte(msg.String())); err != nil {
		log.Errorf("[Mailer] 发送验证码邮件失败, to: %s, error: %v", identity, err)
		return fmt.Errorf("发送验证码邮件失败: %w", err)
	}

	log.Infof("[Mailer] 验证码邮件已发送, to: %s", identity)
	return nil
}
