package smtp

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/finance-tracker/internal/domain"
)

type purposeCopy struct {
	Subject string
	Heading string
	Intro   string
}

var copies = map[domain.Purpose]purposeCopy{
	domain.PurposeRegistration: {
		Subject: "Verify Your Email - Finance Tracker Registration",
		Heading: "Verify Your Email Address",
		Intro:   "Thank you for registering with Finance Tracker! To complete your registration, please use the following one-time password:",
	},
	domain.PurposeEmailChange: {
		Subject: "Confirm Your New Email - Finance Tracker",
		Heading: "Confirm Your New Email Address",
		Intro:   "You asked to move your Finance Tracker account to this address. To confirm the change, please use the following one-time password:",
	},
	domain.PurposeAccountDeletion: {
		Subject: "Confirm Account Deletion - Finance Tracker",
		Heading: "Confirm Account Deletion",
		Intro:   "We received a request to permanently delete your Finance Tracker account and all of its transactions. To confirm, please use the following one-time password:",
	},
}

var otpHTML = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 0;">
<div style="max-width: 600px; margin: 50px auto; background: #ffffff; border-radius: 10px;">
<div style="background: #667eea; color: #ffffff; padding: 30px; text-align: center;">
<h1 style="margin: 0;">Finance Tracker</h1>
</div>
<div style="padding: 40px 30px; text-align: center;">
<h2 style="color: #333333;">{{.Heading}}</h2>
<p style="color: #666666;">{{.Intro}}</p>
<div style="font-size: 32px; font-weight: bold; letter-spacing: 8px; color: #667eea;">
{{.Code}}
</div>
<p style="color: #666666;">This code is valid for <strong>{{.Minutes}} minutes</strong>.
Please do not share it with anyone.</p>
<p style="color: #856404;">If you didn't request this code, please ignore this email.</p>
</div>
<div style="padding: 20px; text-align: center; color: #999999; font-size: 12px;">
This is an automated email. Please do not reply.
</div>
</div>
</body>
</html>
`))

type otpView struct {
	purposeCopy
	Code    string
	Minutes int
}

func subjectFor(p domain.Purpose) string {
	return copies[p].Subject
}

func renderHTML(code string, p domain.Purpose, expiry time.Duration) (string, error) {
	var buf bytes.Buffer
	err := otpHTML.Execute(&buf, otpView{purposeCopy: copies[p], Code: code, Minutes: int(expiry.Minutes())})
	if err != nil {
		return "", fmt.Errorf("render otp email: %w", err)
	}
	return buf.String(), nil
}

func renderText(code string, expiry time.Duration) string {
	return fmt.Sprintf("Your Finance Tracker verification code is %s\n\n"+
		"This code is valid for %d minutes.\n"+
		"If you didn't request this code, please ignore this email.\n", code, int(expiry.Minutes()))
}
