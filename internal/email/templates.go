package email

import (
	"fmt"
	"html"
	"time"
)

// AdminLoginSubject returns the subject line of the admin login notification.
func AdminLoginSubject(appName string) string {
	return fmt.Sprintf("🔐 Admin Login Alert - %s", appName)
}

// AdminLoginEmailHTML returns the HTML body of the admin login notification.
func AdminLoginEmailHTML(appName, accountEmail, ipAddress string, at time.Time) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Admin login notification</title>
</head>
<body style="margin:0;padding:0;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Helvetica,Arial,sans-serif;background-color:#f4f5f7;">
<table width="100%%" cellpadding="0" cellspacing="0" style="background-color:#f4f5f7;padding:40px 0;">
<tr><td align="center">
<table width="480" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:8px;overflow:hidden;box-shadow:0 2px 8px rgba(0,0,0,0.08);">
  <tr><td style="padding:32px 40px 16px;text-align:center;">
    <h1 style="margin:0;font-size:22px;color:#1a1a2e;">Admin Login Notification</h1>
  </td></tr>
  <tr><td style="padding:0 40px 24px;">
    <p style="margin:0 0 8px;font-size:15px;color:#4a4a68;"><strong>Time:</strong> %s</p>
    <p style="margin:0 0 8px;font-size:15px;color:#4a4a68;"><strong>User:</strong> %s</p>
    <p style="margin:0 0 8px;font-size:15px;color:#4a4a68;"><strong>IP Address:</strong> %s</p>
    <p style="margin:0;font-size:15px;color:#4a4a68;"><strong>Platform:</strong> %s</p>
  </td></tr>
  <tr><td style="padding:16px 40px;background-color:#f9f9fc;border-top:1px solid #eeeef2;">
    <p style="margin:0;font-size:12px;color:#aaaabc;text-align:center;">
      This is an automated security notification. If this login was not you, revoke the admin session immediately.
    </p>
  </td></tr>
</table>
</td></tr>
</table>
</body>
</html>`,
		at.UTC().Format("2006-01-02 15:04:05 UTC"),
		html.EscapeString(accountEmail),
		html.EscapeString(ipAddress),
		html.EscapeString(appName),
	)
}

// AdminLoginEmailText returns the plain-text body of the admin login notification.
func AdminLoginEmailText(appName, accountEmail, ipAddress string, at time.Time) string {
	return fmt.Sprintf(`Admin Login Notification

Time: %s
User: %s
IP Address: %s
Platform: %s

This is an automated security notification. If this login was not you, revoke the admin session immediately.`,
		at.UTC().Format("2006-01-02 15:04:05 UTC"), accountEmail, ipAddress, appName)
}
