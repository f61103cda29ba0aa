package mailer

import (
	"bytes"
	"text/template"

	"github.com/pkg/errors"
)

var (
	verificationCodeTmpl = template.Must(template.New("code").Parse(
		`Your verification code is {{.Code}}.

The code is valid for {{.ValidForMinutes}} minutes.
`))

	invitationTmpl = template.Must(template.New("invite").Parse(
		`You were invited to join {{.TenantName}}.

Log in with {{.Email}} to get started.
`))

	paymentFailedTmpl = template.Must(template.New("payment_failed").Parse(
		`We couldn't process the latest payment for {{.TenantName}}.

Please update your payment method before {{.SuspendAt}} to keep your account active.
`))

	suspendedTmpl = template.Must(template.New("suspended").Parse(
		`The account {{.TenantName}} was suspended: {{.Reason}}.

Update your payment method or subscription to reactivate it.
`))
)

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "failed to render %s mail", tmpl.Name())
	}
	return buf.String(), nil
}

func VerificationCode(to, code string, validForMinutes int) (*Message, error) {
	body, err := render(verificationCodeTmpl, map[string]interface{}{
		"Code":            code,
		"ValidForMinutes": validForMinutes,
	})
	if err != nil {
		return nil, err
	}

	return &Message{To: []string{to}, Subject: "Your verification code", Body: body}, nil
}

func Invitation(to, tenantName string) (*Message, error) {
	body, err := render(invitationTmpl, map[string]interface{}{
		"TenantName": tenantName,
		"Email":      to,
	})
	if err != nil {
		return nil, err
	}

	return &Message{To: []string{to}, Subject: "You were invited to " + tenantName, Body: body}, nil
}

func PaymentFailed(to []string, tenantName, suspendAt string) (*Message, error) {
	body, err := render(paymentFailedTmpl, map[string]interface{}{
		"TenantName": tenantName,
		"SuspendAt":  suspendAt,
	})
	if err != nil {
		return nil, err
	}

	return &Message{To: to, Subject: "Payment failed", Body: body}, nil
}

func Suspended(to []string, tenantName, reason string) (*Message, error) {
	body, err := render(suspendedTmpl, map[string]interface{}{
		"TenantName": tenantName,
		"Reason":     reason,
	})
	if err != nil {
		return nil, err
	}

	return &Message{To: to, Subject: "Your account was suspended", Body: body}, nil
}
