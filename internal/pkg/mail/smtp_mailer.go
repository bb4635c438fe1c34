package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/env"
)

// SendMail sends an HTML email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendOrderConfirmation mails the order summary after a successful order.
func SendOrderConfirmation(to, orderID, invoiceID string, total float64, currency string) error {
	subject := fmt.Sprintf("Order %s confirmed", orderID)
	body := fmt.Sprintf(
		"<h2>Thank you for your order</h2>"+
			"<p>Order number: <strong>%s</strong></p>"+
			"<p>Invoice number: <strong>%s</strong></p>"+
			"<p>Total: <strong>%.2f %s</strong></p>"+
			"<p>You can pay the invoice from your customer dashboard.</p>",
		orderID, invoiceID, total, currency,
	)
	return SendMail(to, subject, body)
}

// SendPaymentReceipt mails the payment confirmation once an invoice is paid.
func SendPaymentReceipt(to, invoiceID string, amount float64, currency string) error {
	subject := fmt.Sprintf("Payment received for invoice %s", invoiceID)
	body := fmt.Sprintf(
		"<h2>Payment received</h2>"+
			"<p>Invoice <strong>%s</strong> has been paid.</p>"+
			"<p>Amount: <strong>%.2f %s</strong></p>",
		invoiceID, amount, currency,
	)
	return SendMail(to, subject, body)
}
