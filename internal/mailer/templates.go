package mailer

import (
	"fmt"
	"html"
	"time"
)

// OTPEmail renders the message carrying a one-time code. purpose is
// "activation" or "reset".
func OTPEmail(to, name, code, purpose string, ttl time.Duration) Message {
	subject := "Your account activation code"
	action := "activate your account"
	if purpose == "reset" {
		subject = "Your password reset code"
		action = "reset your password"
	}
	minutes := int(ttl.Minutes())

	text := fmt.Sprintf("Hi %s,\n\nUse the code %s to %s. It expires in %d minutes.\n\nIf you did not request this, ignore this email.\n",
		name, code, action, minutes)
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Use the code <strong style="font-size: 24px;">%s</strong> to %s.</p>
<p>It expires in %d minutes.</p>
<p>If you did not request this, ignore this email.</p>`,
		html.EscapeString(name), code, action, minutes)

	return Message{
		To:      to,
		ToName:  name,
		Subject: subject,
		Text:    text,
		HTML:    body,
	}
}
