package mail

import "fmt"

func displayName(username string) string {
	if username == "" {
		return "User"
	}
	return username
}

// VerificationEmail builds the signup verification message.
func VerificationEmail(username, token, verifyLink string) Message {
	name := displayName(username)
	text := fmt.Sprintf(
		"Hello %s,\n\nWelcome to InkaWebAI! Please verify your email to activate your account.\n\n"+
			"Verification Token: %s\n\nOr click this link: %s\n\n"+
			"If you did not sign up, please ignore this message.",
		name, token, verifyLink,
	)
	html := fmt.Sprintf(
		`<h2>Welcome, %s!</h2>`+
			`<p>Thanks for signing up with InkaWebAI. Please verify your email address to activate your account.</p>`+
			`<p>Your verification code: <strong><code>%s</code></strong></p>`+
			`<p>Or click this link: <a href="%s">%s</a></p>`+
			`<p>If you did not sign up, please ignore this message.</p>`,
		name, token, verifyLink, verifyLink,
	)
	return Message{
		Subject:  "Verify your email — InkaWebAI",
		Text:     text,
		HTML:     html,
		Category: "Verification",
	}
}

// WelcomeEmail builds the post-verification welcome message.
func WelcomeEmail(username string) Message {
	name := displayName(username)
	text := fmt.Sprintf(
		"Hello %s,\n\nThank you for verifying your email and joining InkaWebAI! We're excited to have you on board.\n\n"+
			"Feel free to explore the platform and let us know if you have any questions.\n\n"+
			"Best regards,\nThe InkaWebAI Team",
		name,
	)
	html := fmt.Sprintf(
		`<h2>Welcome, %s!</h2>`+
			`<p>Thank you for verifying your email and becoming part of the InkaWebAI community.</p>`+
			`<p>If you need any assistance, just reply to this email or reach out through our support channels.</p>`,
		name,
	)
	return Message{
		Subject:  "Welcome to InkaWebAI!",
		Text:     text,
		HTML:     html,
		Category: "Welcome",
	}
}

// ForgotPasswordEmail builds the password reset link message.
func ForgotPasswordEmail(username, resetLink string) Message {
	name := displayName(username)
	text := fmt.Sprintf(
		"Hello %s,\n\nWe received a request to reset your password. Click the link below to create a new password:\n\n"+
			"%s\n\nThis link expires in 1 hour.\n\n"+
			"If you didn't request a password reset, please ignore this email.\n\n"+
			"Best regards,\nThe InkaWebAI Team",
		name, resetLink,
	)
	html := fmt.Sprintf(
		`<h2>Password Reset Request</h2>`+
			`<p>Hello %s, we received a request to reset your password.</p>`+
			`<p><a href="%s">Reset Password</a></p>`+
			`<p>This link expires in 1 hour. If you didn't request a password reset, please ignore this email.</p>`,
		name, resetLink,
	)
	return Message{
		Subject:  "Reset your InkaWebAI password",
		Text:     text,
		HTML:     html,
		Category: "Password Reset",
	}
}

// PasswordResetConfirmationEmail builds the reset confirmation message.
func PasswordResetConfirmationEmail(username string) Message {
	name := displayName(username)
	text := fmt.Sprintf(
		"Hello %s,\n\nYour password has been successfully reset.\n\n"+
			"If you did not perform this action, please contact our support team immediately at support@inkawebai.com\n\n"+
			"Best regards,\nThe InkaWebAI Security Team",
		name,
	)
	html := fmt.Sprintf(
		`<h2>Password Reset Confirmation</h2>`+
			`<p>Hello %s, your password has been successfully reset.</p>`+
			`<p>If you did not perform this action, please <strong>contact our support team immediately</strong>.</p>`,
		name,
	)
	return Message{
		Subject:  "Your password has been reset — InkaWebAI",
		Text:     text,
		HTML:     html,
		Category: "Password Reset",
	}
}

// RequirementsEmail builds the collected-requirements digest message.
func RequirementsEmail(projectName, requirements string) Message {
	return Message{
		Subject:  "Requirements: " + projectName,
		Text:     requirements,
		Category: "Requirements",
	}
}
