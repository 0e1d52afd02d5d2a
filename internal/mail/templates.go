package mail

import "fmt"

func passwordResetHTML(link string) string {
	return fmt.Sprintf(`
    <div style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: Arial, sans-serif;">
      <h1 style="color: #333; text-align: center;">Reset Your Password</h1>
      <p style="color: #666; line-height: 1.6;">
        We received a request to reset the password for your account. Click the button below to choose a new password:
      </p>
      <div style="text-align: center; margin: 30px 0;">
        <a href="%s"
           style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; display: inline-block;">
          Reset Password
        </a>
      </div>
      <p style="color: #666; line-height: 1.6;">
        If you did not request a password reset, you can safely ignore this email.
      </p>
      <p style="color: #666; line-height: 1.6;">
        This link will expire in 1 hour and can only be used once.
      </p>
    </div>
  `, link)
}

func verificationHTML(link string) string {
	return fmt.Sprintf(`
    <div style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: Arial, sans-serif;">
      <h1 style="color: #333; text-align: center;">Verify Your Email</h1>
      <p style="color: #666; line-height: 1.6;">
        Thank you for signing up! Please verify your email address by clicking the button below:
      </p>
      <div style="text-align: center; margin: 30px 0;">
        <a href="%s"
           style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; display: inline-block;">
          Verify Email
        </a>
      </div>
      <p style="color: #666; line-height: 1.6;">
        If you did not create an account, you can safely ignore this email.
      </p>
      <p style="color: #666; line-height: 1.6;">
        This link will expire in 24 hours.
      </p>
    </div>
  `, link)
}
